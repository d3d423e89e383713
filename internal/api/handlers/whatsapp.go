package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"plotwatch/internal/core"
	"plotwatch/internal/types"
)

// SessionController is the part of messaging.Manager the session routes use.
type SessionController interface {
	Connect(ctx context.Context, operatorID int64) (types.SessionStatus, error)
	Status(operatorID int64) types.SessionStatus
	Disconnect(ctx context.Context, operatorID int64) error
}

// OperatorChecker confirms an id belongs to an operator.
type OperatorChecker interface {
	IsOperator(ctx context.Context, userID int64) (bool, error)
}

// WhatsAppHandler serves the per-operator session routes.
type WhatsAppHandler struct {
	sessions  SessionController
	operators OperatorChecker
	logger    *slog.Logger
}

// NewWhatsAppHandler creates a WhatsAppHandler. A nil operators checker
// skips the operator lookup.
func NewWhatsAppHandler(sessions SessionController, operators OperatorChecker, logger *slog.Logger) *WhatsAppHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WhatsAppHandler{sessions: sessions, operators: operators, logger: logger}
}

// RegisterRoutes mounts the session routes.
func (h *WhatsAppHandler) RegisterRoutes(r chi.Router) {
	r.Route("/operators/{operatorID}/whatsapp", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Post("/connect", h.Connect)
		r.Post("/disconnect", h.Disconnect)
	})
}

// Status reports the session state and, while pairing, the pairing code.
func (h *WhatsAppHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "operatorID")
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, h.sessions.Status(id))
}

// Connect starts (or keeps) the operator's session.
func (h *WhatsAppHandler) Connect(w http.ResponseWriter, r *http.Request) {
	id, ok := h.operatorID(w, r)
	if !ok {
		return
	}
	st, err := h.sessions.Connect(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "whatsapp connect failed", "operator_id", id, "error", err)
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, st)
}

// Disconnect tears the operator's session down.
func (h *WhatsAppHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id, ok := h.operatorID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Disconnect(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, h.sessions.Status(id))
}

// operatorID parses the path id and confirms it names an operator. It
// writes the error response itself when it returns false.
func (h *WhatsAppHandler) operatorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r, "operatorID")
	if err != nil {
		core.Error(w, r, err)
		return 0, false
	}
	if h.operators == nil {
		return id, true
	}
	isOp, err := h.operators.IsOperator(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return 0, false
	}
	if !isOp {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundOperator, fmt.Sprintf("operator %d not found", id), nil))
		return 0, false
	}
	return id, true
}
