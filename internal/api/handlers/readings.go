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

// ReadingService is the part of the monitoring engine the reading routes use.
type ReadingService interface {
	EvaluateReading(reading types.SensorReading, species string) (monitoring.Evaluation, error)
	RecordReading(ctx context.Context, reading types.SensorReading) (*monitoring.RecordResult, error)
}

// EvaluateReadingRequest is a reading plus the optional crop species used
// for the watering recommendation.
type EvaluateReadingRequest struct {
	types.SensorReading
	Species string `json:"species,omitempty"`
}

// ReadingHandler serves the reading routes.
type ReadingHandler struct {
	service ReadingService
	logger  *slog.Logger
}

// NewReadingHandler creates a ReadingHandler.
func NewReadingHandler(service ReadingService, logger *slog.Logger) *ReadingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the reading routes.
func (h *ReadingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/readings/evaluate", h.Evaluate)
	r.Post("/readings", h.Record)
}

// Evaluate scores a reading and lists the alerts it would raise, without
// storing anything.
func (h *ReadingHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateReadingRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	eval, err := h.service.EvaluateReading(req.SensorReading, req.Species)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, eval)
}

// Record stores a reading and dispatches the alerts it raises.
func (h *ReadingHandler) Record(w http.ResponseWriter, r *http.Request) {
	var reading types.SensorReading
	if err := core.DecodeJSON(w, r, &reading); err != nil {
		core.Error(w, r, err)
		return
	}
	res, err := h.service.RecordReading(r.Context(), reading)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeInternalDB {
			h.logger.ErrorContext(r.Context(), "failed to record reading", "plot_id", reading.PlotID, "error", err)
		}
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusCreated, res)
}
