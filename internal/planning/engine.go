// Package planning implements the Planning Engine: the
// orchestration glue that composes the Distance Provider, TSP
// Sequencer, and Route Simulator into one PlanRoute operation, then
// persists the result through the Plan Store.
package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/planerr"
	"github.com/saan-system/routeplanner/internal/providers"
	"github.com/saan-system/routeplanner/internal/simulate"
	"github.com/saan-system/routeplanner/internal/store"
	"github.com/saan-system/routeplanner/internal/tsp"
	"github.com/saan-system/routeplanner/pkg/logger"
)

// Request is the PlanRoute request contract.
type Request struct {
	DriverID             string
	VehicleID            string
	DriverState          domain.HOSState
	VehicleState         domain.VehicleState
	Stops                []domain.Stop
	OptimizationPriority domain.OptimizationPriority
}

// Engine composes the leaf subsystems into a single planning operation,
// in dependency order: Providers → HOS Engine → Rest Optimizer → TSP
// Sequencer → Route Simulator → Planning Engine.
type Engine struct {
	dist                  providers.DistanceProvider
	seq                   *tsp.Engine
	sim                   *simulate.Engine
	store                 store.Store
	log                   logger.Logger
	distanceFallbackMiles float64
}

// New constructs a Planning Engine from its already-constructed leaf
// dependencies. distanceFallbackMiles matches config.SimulationConfig's
// value and is used only when classifying leg demand over a pair
// missing from the distance matrix, the same fallback Simulate itself
// applies.
func New(dist providers.DistanceProvider, seq *tsp.Engine, sim *simulate.Engine, st store.Store, log logger.Logger, distanceFallbackMiles float64) *Engine {
	return &Engine{dist: dist, seq: seq, sim: sim, store: st, log: log, distanceFallbackMiles: distanceFallbackMiles}
}

// PlanRoute runs the full orchestration:
//  1. build the distance matrix,
//  2. sequence the stops via the TSP Sequencer,
//  3. simulate the sequence via the Route Simulator,
//  4. assemble a draft RoutePlan and persist it.
func (e *Engine) PlanRoute(ctx context.Context, req Request) (*domain.RoutePlan, error) {
	if err := domain.ValidateStopSet(req.Stops); err != nil {
		return nil, planerr.Wrap(planerr.InvalidInput, "", "plan_route: invalid stop set", err)
	}
	if err := req.DriverState.Validate(); err != nil {
		return nil, planerr.Wrap(planerr.InvalidInput, "", "plan_route: invalid driver HOS state", err)
	}
	if err := req.VehicleState.Validate(); err != nil {
		return nil, planerr.Wrap(planerr.InvalidInput, "", "plan_route: invalid vehicle state", err)
	}

	matrix := providers.BuildMatrix(ctx, e.dist, req.Stops)

	sequenced, err := e.seq.Sequence(req.Stops, matrix)
	if err != nil {
		return nil, planerr.Wrap(planerr.InvalidInput, "", "plan_route: sequencing failed", err)
	}

	legDemands := providers.BuildDemandMatrix(ctx, e.dist, sequenced.Stops, matrix, e.distanceFallbackMiles)

	simResult, err := e.sim.Simulate(ctx, sequenced.Stops, matrix, req.DriverState, req.VehicleState, time.Now())
	if err != nil {
		return nil, planerr.Wrap(planerr.Fatal, "", "plan_route: simulation failed", err)
	}

	plan := &domain.RoutePlan{
		DriverID:             req.DriverID,
		VehicleID:            req.VehicleID,
		Version:              1,
		IsActive:             false,
		Status:               domain.PlanDraft,
		Totals:               simResult.Totals,
		IsFeasible:           simResult.IsFeasible,
		FeasibilityIssues:    simResult.FeasibilityIssues,
		ComplianceReport:     simResult.ComplianceReport,
		OptimizationPriority: req.OptimizationPriority,
		Segments:             simResult.Segments,
		DataSources:          domain.DefaultDataSources,
		LegDemands:           legDemands,
	}

	if err := e.store.CreatePlan(ctx, plan); err != nil {
		return nil, planerr.Wrap(planerr.Fatal, plan.PlanID, "plan_route: persist plan", err)
	}

	e.log.WithPlanID(plan.PlanID).
		WithDriverID(plan.DriverID).
		WithField("is_feasible", plan.IsFeasible).
		Info("route planned")

	return plan, nil
}

// RePlan re-invokes the orchestration with an updated driver/vehicle
// state and a remaining-stops list, for use by the Dynamic Update
// Handler's replan protocol. It does not persist — the caller writes
// the result's segments, the version bump and the PlanUpdate record
// as separate store calls.
func (e *Engine) RePlan(ctx context.Context, remainingStops []domain.Stop, driverState domain.HOSState, vehicleState domain.VehicleState) (simulate.Result, error) {
	if err := domain.ValidateStopSet(remainingStops); err != nil {
		return simulate.Result{}, planerr.Wrap(planerr.InvalidInput, "", "replan: invalid remaining stop set", err)
	}
	matrix := providers.BuildMatrix(ctx, e.dist, remainingStops)

	sequenced, err := e.seq.Sequence(remainingStops, matrix)
	if err != nil {
		return simulate.Result{}, planerr.Wrap(planerr.InvalidInput, "", "replan: sequencing failed", err)
	}

	result, err := e.sim.Simulate(ctx, sequenced.Stops, matrix, driverState, vehicleState, time.Now())
	if err != nil {
		return simulate.Result{}, planerr.Wrap(planerr.Fatal, "", "replan: simulation failed", fmt.Errorf("%w", err))
	}
	return result, nil
}
