package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"plotwatch/internal/core"
	"plotwatch/internal/monitoring"
	"plotwatch/internal/types"
)

// AlertCreator creates operator alerts.
type AlertCreator interface {
	CreateAlert(ctx context.Context, in monitoring.CreateAlertInput) (*types.Alert, error)
}

// AlertLister lists a plot's alerts.
type AlertLister interface {
	ListByPlot(ctx context.Context, plotID int64, status types.AlertStatus) ([]*types.Alert, error)
}

// AlertHandler serves the alert routes.
type AlertHandler struct {
	creator AlertCreator
	lister  AlertLister
	logger  *slog.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(creator AlertCreator, lister AlertLister, logger *slog.Logger) *AlertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertHandler{creator: creator, lister: lister, logger: logger}
}

// RegisterRoutes mounts the alert routes.
func (h *AlertHandler) RegisterRoutes(r chi.Router) {
	r.Post("/alerts", h.Create)
	r.Get("/plots/{plotID}/alerts", h.ListByPlot)
}

// Create stores an alert, dispatching it now unless it is scheduled.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in monitoring.CreateAlertInput
	if err := core.DecodeJSON(w, r, &in); err != nil {
		core.Error(w, r, err)
		return
	}
	alert, err := h.creator.CreateAlert(r.Context(), in)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusCreated, alert)
}

// ListByPlot lists a plot's alerts newest first, optionally filtered by
// ?status=.
func (h *AlertHandler) ListByPlot(w http.ResponseWriter, r *http.Request) {
	plotID, err := pathID(r, "plotID")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	status := types.AlertStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidEnum,
			"status must be one of pending, active, sent",
			nil,
			map[string]any{"status": string(status)},
		))
		return
	}

	alerts, err := h.lister.ListByPlot(r.Context(), plotID, status)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, alerts)
}
