package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/saan-system/routeplanner/internal/config"
	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/dynamic"
	"github.com/saan-system/routeplanner/internal/hos"
	"github.com/saan-system/routeplanner/internal/planning"
	"github.com/saan-system/routeplanner/internal/providers"
	"github.com/saan-system/routeplanner/internal/restopt"
	"github.com/saan-system/routeplanner/internal/simulate"
	"github.com/saan-system/routeplanner/internal/store"
	"github.com/saan-system/routeplanner/internal/tsp"
	"github.com/saan-system/routeplanner/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRouter wires the full stack against a MemoryStore, the HTTP
// analog of planning.testEngine: no publisher, so these tests exercise
// request decoding, engine wiring, and error-mapping only.
func testRouter(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	cfg := config.Load()
	dist := providers.NewHaversineDistanceProvider(
		cfg.Simulation.DefaultAvgSpeedMPH,
		cfg.Simulation.HighwaySpeedMPH,
		cfg.Simulation.InterstateSpeedMPH,
		cfg.Simulation.CitySpeedMPH,
	)
	restA := providers.NewStaticRestAreaProvider(nil)
	fuelP := providers.NewStaticFuelStopProvider(cfg.Simulation.FuelStationSearchRadiusMi, nil)
	seq := tsp.New(tsp.Config{Max2OptIterations: cfg.Simulation.Max2OptIterations, DistanceFallbackMiles: cfg.Simulation.DistanceFallbackMiles})
	hosEng := hos.New(cfg.HOS)
	restOpt := restopt.New(cfg.HOS, hosEng)
	sim := simulate.New(cfg.HOS, cfg.Simulation, dist, restA, fuelP, restOpt)
	st := store.NewMemoryStore()
	log := logger.NewLogger("error", "text")

	planningEngine := planning.New(dist, seq, sim, st, log, cfg.Simulation.DistanceFallbackMiles)
	dynamicHandler := dynamic.New(cfg.Trigger, planningEngine, st, log)

	handler := NewHandler(planningEngine, dynamicHandler, st, nil, log)
	health := NewHealthHandler(func() map[string]string { return map[string]string{"database": "ok"} })
	return NewRouter(handler, health), st
}

func planRouteBody() planning.Request {
	return planning.Request{
		DriverID:     "drv-1",
		VehicleID:    "veh-1",
		VehicleState: domain.VehicleState{FuelCapacityGal: 300, CurrentFuelGal: 300, MPG: 6.5},
		Stops: []domain.Stop{
			{ID: "o", IsOrigin: true, Lat: 41.0, Lon: -95.0},
			{ID: "b", Lat: 41.2, Lon: -95.2},
			{ID: "c", IsDestination: true, Lat: 41.4, Lon: -95.4},
		},
		OptimizationPriority: domain.PriorityBalance,
	}
}

func TestHealthAndReady(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlanRoute_CreatesDraftPlan(t *testing.T) {
	router, _ := testRouter(t)
	body, err := json.Marshal(planRouteBody())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestPlanRoute_InvalidBodyReturns400(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPlan_RoundTripsAfterPlanRoute(t *testing.T) {
	router, _ := testRouter(t)
	body, err := json.Marshal(planRouteBody())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created APIResponse
	var plan domain.RoutePlan
	created.Data = &plan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/plans/"+plan.PlanID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetPlan_MissingReturns409(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestActivatePlan_TransitionsToActive(t *testing.T) {
	router, st := testRouter(t)
	plan := &domain.RoutePlan{PlanID: "plan-http-1", DriverID: "drv-1", Status: domain.PlanDraft}
	require.NoError(t, st.CreatePlan(context.Background(), plan))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans/plan-http-1/activate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := st.GetPlan(context.Background(), "plan-http-1")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestUpdatePlan_ClassifiesAndReturnsResult(t *testing.T) {
	router, st := testRouter(t)
	plan := &domain.RoutePlan{
		PlanID:   "plan-http-2",
		DriverID: "drv-2",
		Status:   domain.PlanDraft,
		Segments: []domain.RouteSegment{{
			SequenceOrder: 1,
			Kind:          domain.SegmentDrive,
			Status:        domain.SegmentPlanned,
			Drive:         &domain.DriveDetail{From: "o", To: "d", DistanceMiles: 50, DriveTimeH: 1},
			HOSStateAfter: domain.HOSState{HoursDriven: 1, OnDutyTime: 1, HoursSinceBreak: 1},
		}},
	}
	require.NoError(t, st.CreatePlan(context.Background(), plan))

	payload := map[string]interface{}{
		"update_type":  "traffic_delay",
		"triggered_by": "telematics",
		"trigger_data": map[string]interface{}{
			"traffic_delay": map[string]interface{}{"delay_minutes": 10, "segment_index": 0},
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans/plan-http-2/updates", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
}
