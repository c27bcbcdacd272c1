// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/taskrouter/internal/adapters/repository"
	service "github.com/okian/taskrouter/internal/app"
	"github.com/okian/taskrouter/internal/domain/detect"
	"github.com/okian/taskrouter/internal/domain/model"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit queues a chat message for asynchronous processing.
	Submit(ctx context.Context, msg model.Message) service.SubmitStatus

	Detect(ctx context.Context, text string, opts ...detect.CallOption) (model.DetectionResult, error)
	Rank(ctx context.Context, taskText string, requiredSkills []string,
		candidates []model.Candidate, catalog []model.Skill) ([]model.AssigneeScore, error)
	CandidatePool(ctx context.Context, teamID, excludeUserID string) ([]model.Candidate, error)

	Skills(ctx context.Context) ([]model.Skill, error)
	Tasks(ctx context.Context, f repository.ListFilter) ([]model.Task, error)
	Task(ctx context.Context, id string) (model.Task, error)
	Assign(ctx context.Context, taskID, userID string) (model.Task, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	engine        *EngineHandler
	messages      *MessagesHandler
	tasks         *TasksHandler
	directory     *DirectoryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		engine:        NewEngineHandler(deps),
		messages:      NewMessagesHandler(deps),
		tasks:         NewTasksHandler(deps),
		directory:     NewDirectoryHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /detect", MetricsMiddleware(s.engine.HandleDetect, "detect"))
	mux.HandleFunc("POST /rank", MetricsMiddleware(s.engine.HandleRank, "rank"))
	mux.HandleFunc("POST /messages", MetricsMiddleware(s.messages.HandlePostMessage, "messages"))

	mux.HandleFunc("GET /tasks", MetricsMiddleware(s.tasks.HandleList, "tasks"))
	mux.HandleFunc("GET /tasks/{id}", MetricsMiddleware(s.tasks.HandleGet, "task"))
	mux.HandleFunc("POST /tasks/{id}/assign", MetricsMiddleware(s.tasks.HandleAssign, "assign"))

	mux.HandleFunc("GET /skills", MetricsMiddleware(s.directory.HandleSkills, "skills"))
	mux.HandleFunc("GET /teams/{id}/candidates", MetricsMiddleware(s.directory.HandleCandidates, "candidates"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var validate = newValidator()

// newValidator reports field errors by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, op string, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return WrapKind(op, ErrBadRequest, fmt.Errorf("invalid JSON body: %w", err))
	}
	if err := validate.Struct(dst); err != nil {
		return WrapKind(op, ErrBadRequest, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps an error to its HTTP status and writes it.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict), errors.Is(err, service.ErrNotMember):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	}
	return http.StatusInternalServerError, "internal_error"
}
