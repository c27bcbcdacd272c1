package api

import (
	"net/http"
	"strconv"

	"github.com/okian/taskrouter/internal/adapters/repository"
	"github.com/okian/taskrouter/internal/domain/model"
)

type assignRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// TasksHandler serves stored tasks.
type TasksHandler struct {
	deps Dependencies
}

// NewTasksHandler creates a new tasks handler.
func NewTasksHandler(deps Dependencies) *TasksHandler {
	return &TasksHandler{deps: deps}
}

// HandleList handles GET /tasks?limit=N&offset=M&team_id=T&status=S&priority=P.
func (h *TasksHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_tasks"
	q := r.URL.Query()

	f := repository.ListFilter{
		TeamID:   q.Get("team_id"),
		Status:   model.TaskStatus(q.Get("status")),
		Priority: model.Priority(q.Get("priority")),
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	switch f.Status {
	case "", model.TaskPending, model.TaskAssigned:
	default:
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	if f.Priority != "" && !f.Priority.Valid() {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}

	tasks, err := h.deps.Tasks(r.Context(), f)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// HandleGet handles GET /tasks/{id}.
func (h *TasksHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_task"
	task, err := h.deps.Task(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleAssign handles POST /tasks/{id}/assign.
func (h *TasksHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	const op = "api.assign_task"
	var req assignRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(w, err)
		return
	}
	task, err := h.deps.Assign(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
