package api

import (
	"net/http"
	"time"

	service "github.com/okian/taskrouter/internal/app"
	"github.com/okian/taskrouter/internal/domain/model"
)

// messageRequest mirrors the OpenAPI schema for POST /messages.
type messageRequest struct {
	ID        string `json:"id" validate:"required"`
	TeamID    string `json:"team_id" validate:"required"`
	SenderID  string `json:"sender_id" validate:"required"`
	Channel   string `json:"channel"`
	Text      string `json:"text" validate:"required"`
	Automated bool   `json:"automated"`
	TS        string `json:"ts" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func (m messageRequest) message() model.Message {
	msg := model.Message{
		ID:        m.ID,
		TeamID:    m.TeamID,
		SenderID:  m.SenderID,
		Channel:   m.Channel,
		Text:      m.Text,
		Automated: m.Automated,
	}
	if ts, err := time.Parse(time.RFC3339, m.TS); err == nil {
		msg.TS = ts
	}
	return msg
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// MessagesHandler handles chat message intake.
type MessagesHandler struct {
	deps Dependencies
}

// NewMessagesHandler creates a new messages handler.
func NewMessagesHandler(deps Dependencies) *MessagesHandler {
	return &MessagesHandler{deps: deps}
}

// HandlePostMessage handles POST /messages requests.
func (h *MessagesHandler) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_message"
	var req messageRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(w, err)
		return
	}

	status := h.deps.Submit(r.Context(), req.message())
	switch status {
	case service.StatusAccepted:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: string(status)})
	case service.StatusDuplicate:
		writeJSON(w, http.StatusOK, ackResponse{Status: string(status), Duplicate: true})
	case service.StatusIgnored:
		writeJSON(w, http.StatusOK, ackResponse{Status: string(status)})
	default:
		writeFailure(w, NewKind(op, ErrBackpressure))
	}
}
