package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/saan-system/routeplanner/internal/dynamic"
	"github.com/saan-system/routeplanner/internal/events"
	"github.com/saan-system/routeplanner/internal/planerr"
	"github.com/saan-system/routeplanner/internal/planning"
	"github.com/saan-system/routeplanner/internal/store"
	"github.com/saan-system/routeplanner/pkg/logger"
)

// Handler wires the Planning Engine and Dynamic Update Handler to
// HTTP.
type Handler struct {
	planning  *planning.Engine
	dynamic   *dynamic.Handler
	store     store.Store
	publisher *events.Publisher
	log       logger.Logger
}

// NewHandler constructs the HTTP handler. publisher may be nil, in
// which case plan lifecycle events are simply not emitted.
func NewHandler(planningEngine *planning.Engine, dynamicHandler *dynamic.Handler, st store.Store, publisher *events.Publisher, log logger.Logger) *Handler {
	return &Handler{planning: planningEngine, dynamic: dynamicHandler, store: st, publisher: publisher, log: log}
}

// PlanRoute handles POST /api/v1/plans.
func (h *Handler) PlanRoute(w http.ResponseWriter, r *http.Request) {
	var req planning.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "invalid request body: "+err.Error())
		return
	}

	plan, err := h.planning.PlanRoute(r.Context(), req)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if h.publisher != nil {
		if err := h.publisher.PublishPlanCreated(r.Context(), plan); err != nil {
			h.log.WithPlanID(plan.PlanID).Warnf("failed to publish plan.created: %v", err)
		}
	}
	writeJSON(w, r, http.StatusCreated, plan)
}

// GetPlan handles GET /api/v1/plans/{id}.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["id"]
	plan, err := h.store.GetPlan(r.Context(), planID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, plan)
}

// ActivatePlan handles POST /api/v1/plans/{id}/activate.
func (h *Handler) ActivatePlan(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["id"]
	if err := h.store.Activate(r.Context(), planID); err != nil {
		writeEngineError(w, r, err)
		return
	}
	if h.publisher != nil {
		plan, err := h.store.GetPlan(r.Context(), planID)
		if err == nil {
			if err := h.publisher.PublishPlanActivated(r.Context(), planID, plan.DriverID); err != nil {
				h.log.WithPlanID(planID).Warnf("failed to publish plan.activated: %v", err)
			}
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"plan_id": planID, "status": "active"})
}

// UpdatePlan handles POST /api/v1/plans/{id}/updates.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["id"]

	var body struct {
		UpdateType  string               `json:"update_type"`
		TriggerData json.RawMessage      `json:"trigger_data"`
		TriggeredBy string               `json:"triggered_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, r, "invalid request body: "+err.Error())
		return
	}

	var triggerData dynamicTriggerData
	if len(body.TriggerData) > 0 {
		if err := json.Unmarshal(body.TriggerData, &triggerData); err != nil {
			writeBadRequest(w, r, "invalid trigger_data: "+err.Error())
			return
		}
	}

	req := dynamic.UpdateRequest{
		PlanID:      planID,
		UpdateType:  triggerKind(body.UpdateType),
		TriggerData: triggerData.toDomain(),
		TriggeredBy: body.TriggeredBy,
	}

	result, err := h.dynamic.UpdatePlan(r.Context(), req)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if h.publisher != nil {
		if err := h.publisher.PublishPlanUpdate(r.Context(), result.Update); err != nil {
			h.log.WithPlanID(planID).Warnf("failed to publish plan update event: %v", err)
		}
	}
	writeJSON(w, r, http.StatusOK, result)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", message, "")
}

// writeEngineError maps a planerr.Kind onto the matching HTTP status.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *planerr.Error
	if errors.As(err, &pe) {
		switch pe.Kind {
		case planerr.InvalidInput:
			writeError(w, r, http.StatusBadRequest, string(pe.Kind), pe.Msg, "")
		case planerr.StorePreconditionFailure:
			writeError(w, r, http.StatusConflict, string(pe.Kind), pe.Msg, "")
		case planerr.ConcurrencyConflict:
			writeError(w, r, http.StatusConflict, string(pe.Kind), pe.Msg, "")
		case planerr.InsufficientData, planerr.ProviderFailure:
			writeError(w, r, http.StatusUnprocessableEntity, string(pe.Kind), pe.Msg, "")
		default:
			writeError(w, r, http.StatusInternalServerError, string(pe.Kind), pe.Msg, "")
		}
		return
	}
	writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err.Error())
}

// HealthHandler serves the process health/readiness surface.
type HealthHandler struct {
	startTime time.Time
	ready     func() map[string]string
}

// NewHealthHandler constructs a HealthHandler; ready reports the
// health of each dependency (store, cache, events) by name.
func NewHealthHandler(ready func() map[string]string) *HealthHandler {
	return &HealthHandler{startTime: time.Now(), ready: ready}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startTime).String(),
	})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	components := h.ready()
	status := "ready"
	for _, v := range components {
		if v != "ok" {
			status = "not_ready"
			break
		}
	}
	code := http.StatusOK
	if status != "ready" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     status,
		"components": components,
	})
}
