package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"plotwatch/internal/core"
	"plotwatch/internal/messaging"
	"plotwatch/internal/security"
	"plotwatch/internal/types"
)

// maxEventBodySize caps bridge event payloads; pairing images are the
// largest thing they carry.
const maxEventBodySize = 256 * 1024

// EventRouter hands an inbound transport event to its session.
type EventRouter interface {
	HandleEvent(operatorID int64, ev types.SessionEvent) error
}

// TransportEventHandler receives lifecycle events from the messaging bridge.
// It is unauthenticated; the bridge signs every payload with the shared
// secret.
type TransportEventHandler struct {
	router  EventRouter
	secrets []string
	clock   types.Clock
	logger  *slog.Logger
}

// NewTransportEventHandler creates a TransportEventHandler. Extra secrets are
// accepted while a rotation is in progress.
func NewTransportEventHandler(router EventRouter, clock types.Clock, logger *slog.Logger, secrets ...string) *TransportEventHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransportEventHandler{router: router, secrets: secrets, clock: clock, logger: logger}
}

// RegisterRoutes mounts the webhook at the root router.
func (h *TransportEventHandler) RegisterRoutes(r chi.Router) {
	r.Post("/internal/transport/events/{operatorID}", h.Handle)
}

// Handle verifies, decodes and routes one event. The event is applied
// asynchronously by the session, so 202 means queued, not applied.
func (h *TransportEventHandler) Handle(w http.ResponseWriter, r *http.Request) {
	operatorID, err := pathID(r, "operatorID")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEventBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidJSON, "failed to read event body", err))
		return
	}

	if err := security.Verify(payload, r.Header.Get(security.SignatureHeader), h.clock.Now(), security.DefaultTolerance, h.secrets...); err != nil {
		h.logger.WarnContext(r.Context(), "rejected transport event", "operator_id", operatorID, "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSignatureInvalid, "invalid event signature", err))
		return
	}

	var ev types.SessionEvent
	if err := decodeEvent(payload, &ev); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := types.ValidateStruct(ev, types.ErrCodeValidationInvalidEvent); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.router.HandleEvent(operatorID, ev); err != nil {
		switch {
		case errors.Is(err, messaging.ErrUnknownSession):
			core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundOperator,
				fmt.Sprintf("no session for operator %d", operatorID), err))
		case errors.Is(err, messaging.ErrStaleSession):
			core.Error(w, r, types.NewAppError(types.ErrCodeSessionStale,
				fmt.Sprintf("session %s is no longer current for operator %d", ev.SessionID, operatorID), err))
		default:
			core.Error(w, r, err)
		}
		return
	}
	core.Data(w, r, http.StatusAccepted, map[string]string{"status": "queued"})
}
