package httpapi

import (
	"github.com/gorilla/mux"
)

// NewRouter wires the routeplanner HTTP surface onto a gorilla/mux
// router.
func NewRouter(h *Handler, health *HealthHandler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", health.Health).Methods("GET")
	router.HandleFunc("/ready", health.Ready).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	plans := api.PathPrefix("/plans").Subrouter()
	plans.HandleFunc("", h.PlanRoute).Methods("POST")
	plans.HandleFunc("/{id}", h.GetPlan).Methods("GET")
	plans.HandleFunc("/{id}/activate", h.ActivatePlan).Methods("POST")
	plans.HandleFunc("/{id}/updates", h.UpdatePlan).Methods("POST")

	return router
}
