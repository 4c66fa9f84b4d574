package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/price-reconciler/internal/delivery/http/response"
	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/repository"
	"github.com/user/price-reconciler/internal/usecase"
)

// RunTrigger starts a reconciliation run in the background.
type RunTrigger interface {
	Trigger(ctx context.Context) (string, error)
}

// RunReader reads the run history.
type RunReader interface {
	Latest(ctx context.Context) (*entity.Run, error)
	Results(ctx context.Context, runID string) ([]usecase.ResultView, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	trigger RunTrigger
	runs    RunReader
	checks  map[string]HealthCheck
	logger  *zap.Logger
}

func NewHandler(trigger RunTrigger, runs RunReader, checks map[string]HealthCheck, logger *zap.Logger) *Handler {
	return &Handler{
		trigger: trigger,
		runs:    runs,
		checks:  checks,
		logger:  logger,
	}
}

func (h *Handler) HandleTriggerRun(w http.ResponseWriter, r *http.Request) {
	runID, err := h.trigger.Trigger(r.Context())
	if err != nil {
		if errors.Is(err, repository.ErrRunInProgress) {
			h.writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("failed to trigger run", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := response.TriggerRunResponse{
		Status:  "accepted",
		Message: "Reconciliation run started",
		RunID:   runID,
	}
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) HandleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Latest(r.Context())
	if err != nil {
		h.writeQueryError(w, err, "No run has been recorded yet")
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewRunResponse(run))
}

func (h *Handler) HandleRunResults(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		h.writeJSONError(w, "Run id is required", http.StatusBadRequest)
		return
	}

	results, err := h.runs.Results(r.Context(), runID)
	if err != nil {
		h.writeQueryError(w, err, "Run not found")
		return
	}

	resp := response.RunResultsResponse{
		RunID:   runID,
		Count:   len(results),
		Results: results,
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"status": "ok"}
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			healthy = false
			healthStatus[name] = "unhealthy"
			h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		healthStatus[name] = "healthy"
	}

	if !healthy {
		healthStatus["status"] = "degraded"
		h.writeJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	h.writeJSON(w, http.StatusOK, healthStatus)
}

func (h *Handler) writeQueryError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.writeJSONError(w, notFound, http.StatusNotFound)
	case errors.Is(err, usecase.ErrHistoryDisabled):
		h.writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Error("failed to read run history", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
