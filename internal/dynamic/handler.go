// Package dynamic implements the Dynamic Update Handler: classify a
// runtime trigger against a known plan, decide between
// NO_ACTION/UPDATE_ETAS/REPLAN, and on REPLAN run the replan protocol
// through the Planning Engine. The replan's store writes run under the
// per-driver lock but not inside one store transaction: if a later
// write fails, the earlier ones stay in place.
package dynamic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saan-system/routeplanner/internal/config"
	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/planerr"
	"github.com/saan-system/routeplanner/internal/planning"
	"github.com/saan-system/routeplanner/internal/store"
	"github.com/saan-system/routeplanner/pkg/logger"
)

const (
	defaultVehicleCapacityGal = 300.0
	defaultVehicleMPG         = 6.5
)

// Classification is the handler's decision for one trigger.
type Classification struct {
	Priority domain.TriggerPriority
	Action   domain.UpdateAction
	Replan   bool
	Reason   string
}

// UpdateRequest is the UpdatePlan request contract.
type UpdateRequest struct {
	PlanID      string
	UpdateType  domain.TriggerKind
	TriggerData domain.TriggerData
	TriggeredBy string
}

// UpdateResult is the UpdatePlan response contract.
type UpdateResult struct {
	UpdateID        string
	ReplanTriggered bool
	NewPlan         *domain.RoutePlan
	Update          domain.PlanUpdate
}

// Handler classifies triggers and drives the replan protocol. It
// serializes updates per driver_id using a per-driver mutex rather
// than a database-level advisory lock.
type Handler struct {
	cfg      config.TriggerConfig
	planning *planning.Engine
	store    store.Store
	log      logger.Logger

	driverLocks   map[string]*sync.Mutex
	driverLocksMu sync.Mutex
}

// New constructs a Dynamic Update Handler.
func New(cfg config.TriggerConfig, planningEngine *planning.Engine, st store.Store, log logger.Logger) *Handler {
	return &Handler{
		cfg:         cfg,
		planning:    planningEngine,
		store:       st,
		log:         log,
		driverLocks: make(map[string]*sync.Mutex),
	}
}

func (h *Handler) lockFor(driverID string) *sync.Mutex {
	h.driverLocksMu.Lock()
	defer h.driverLocksMu.Unlock()
	m, ok := h.driverLocks[driverID]
	if !ok {
		m = &sync.Mutex{}
		h.driverLocks[driverID] = m
	}
	return m
}

// Classify applies the trigger table and decision rule. Missing or
// partial trigger data falls back to UPDATE_ETAS rather than an error.
func (h *Handler) Classify(req UpdateRequest) Classification {
	switch req.UpdateType {
	case domain.TriggerTrafficDelay:
		d := req.TriggerData.TrafficDelay
		if d == nil {
			return fallback("traffic_delay: missing trigger data")
		}
		thresholdMin := h.cfg.HighPriorityImpactHoursThreshold * 60
		if d.DelayMinutes > thresholdMin {
			return Classification{domain.PriorityHigh, decideHigh(true), true, fmt.Sprintf("traffic delay exceeds %.0f min", thresholdMin)}
		}
		return Classification{domain.PriorityMedium, domain.ActionUpdateETAs, false, "traffic delay under HIGH threshold"}

	case domain.TriggerDockTimeChange:
		d := req.TriggerData.DockTimeChange
		if d == nil {
			return fallback("dock_time_change: missing trigger data")
		}
		variance := d.ActualHours - d.EstimatedHours
		if variance < 0 {
			variance = -variance
		}
		// CRITICAL always replans decision rule,
		// regardless of whether variance crosses the threshold.
		return Classification{domain.PriorityCritical, domain.ActionInsertRestOrSkipStops, true,
			fmt.Sprintf("dock time variance %.2fh (threshold %.2fh)", variance, h.cfg.DockVarianceThresholdH)}

	case domain.TriggerLoadAdded:
		return Classification{domain.PriorityHigh, domain.ActionResequenceStops, true, "load added, resequencing required"}

	case domain.TriggerLoadCancelled:
		return Classification{domain.PriorityHigh, domain.ActionResequenceStops, true, "load cancelled, resequencing required"}

	case domain.TriggerDriverRestRequest:
		return Classification{domain.PriorityHigh, domain.ActionUpdateHOSAndReplan, true, "driver rest request is a safety override"}

	case domain.TriggerHOSDriveApproaching, domain.TriggerHOSDutyApproaching:
		d := req.TriggerData.HOSLimitApproach
		if d == nil {
			return fallback("hos_limit_approaching: missing trigger data")
		}
		needed := d.NeededHours > d.RemainingHours
		return Classification{domain.PriorityHigh, domain.ActionInsertRestStop, needed,
			fmt.Sprintf("needed %.2fh vs remaining %.2fh", d.NeededHours, d.RemainingHours)}

	case domain.TriggerBreakRequiredSoon:
		return Classification{domain.PriorityMedium, domain.ActionInsertBreak, false, "break required soon"}

	case domain.TriggerHOSViolation:
		return Classification{domain.PriorityCritical, domain.ActionMandatoryRestImmediate, true, "HOS violation requires mandatory rest"}

	case domain.TriggerRestDurationChanged:
		d := req.TriggerData.RestDurationChange
		if d == nil {
			return fallback("rest_duration_changed: missing trigger data")
		}
		v := d.VarianceHours
		if v < 0 {
			v = -v
		}
		return Classification{domain.PriorityMedium, domain.ActionUpdateHOSReplanRemaining, false,
			fmt.Sprintf("rest duration variance %.2fh", v)}

	case domain.TriggerFuelLow:
		d := req.TriggerData.FuelLow
		if d == nil {
			return fallback("fuel_low: missing trigger data")
		}
		critical := d.CurrentFuelGal < d.NeededGal
		priority := domain.PriorityHigh
		if critical {
			priority = domain.PriorityCritical
		}
		return Classification{priority, domain.ActionInsertFuelStop, true,
			fmt.Sprintf("fuel %.1fgal vs needed %.1fgal", d.CurrentFuelGal, d.NeededGal)}

	case domain.TriggerSpeedDeviation:
		d := req.TriggerData.SpeedDeviation
		if d == nil {
			return fallback("speed_deviation: missing trigger data")
		}
		return Classification{domain.PriorityMedium, domain.ActionUpdateETAs, false,
			fmt.Sprintf("speed deviation %.2f", d.DeviationFraction)}

	case domain.TriggerAppointmentChanged:
		d := req.TriggerData.AppointmentChange
		if d == nil {
			return fallback("appointment_changed: missing trigger data")
		}
		delta := d.DeltaHours
		if delta < 0 {
			delta = -delta
		}
		return Classification{domain.PriorityMedium, domain.ActionAdjustStopSequence, false,
			fmt.Sprintf("appointment delta %.2fh", delta)}

	case domain.TriggerDockUnavailable:
		return Classification{domain.PriorityHigh, domain.ActionSkipOrRescheduleStop, true, "dock unavailable"}

	default:
		return fallback(fmt.Sprintf("unrecognized trigger kind %q", req.UpdateType))
	}
}

func fallback(reason string) Classification {
	return Classification{domain.PriorityLow, domain.ActionUpdateETAs, false, reason}
}

// decideHigh applies the HIGH decision rule: REPLAN if
// the trigger crosses its own replan threshold, else UPDATE_ETAS.
func decideHigh(crossesThreshold bool) domain.UpdateAction {
	if crossesThreshold {
		return domain.ActionReplan
	}
	return domain.ActionUpdateETAs
}

// UpdatePlan classifies req and, when the classification calls for a
// replan, runs the full protocol: load the plan and its remaining
// segments, mutate driver/vehicle state per the trigger, re-derive the
// remaining-stops list, re-invoke the Planning Engine, then commit the
// new segments, bump the version, and append a PlanUpdate record — all
// inside the per-driver critical section.
func (h *Handler) UpdatePlan(ctx context.Context, req UpdateRequest) (UpdateResult, error) {
	plan, err := h.store.GetPlan(ctx, req.PlanID)
	if err != nil {
		return UpdateResult{}, planerr.Wrap(planerr.StorePreconditionFailure, req.PlanID, "update_plan: plan not found", err)
	}

	lock := h.lockFor(plan.DriverID)
	lock.Lock()
	defer lock.Unlock()

	classification := h.Classify(req)

	update := domain.PlanUpdate{
		UpdateID:        uuid.NewString(),
		PlanID:          req.PlanID,
		Type:            req.UpdateType,
		TriggeredAt:     time.Now(),
		TriggeredBy:     req.TriggeredBy,
		TriggerData:     req.TriggerData,
		ReplanTriggered: classification.Replan,
		ReplanReason:    classification.Reason,
		PreviousVersion: plan.Version,
	}

	if !classification.Replan {
		if err := h.store.AppendUpdate(ctx, update); err != nil {
			return UpdateResult{}, planerr.Wrap(planerr.Fatal, req.PlanID, "update_plan: append update", err)
		}
		return UpdateResult{UpdateID: update.UpdateID, ReplanTriggered: false, Update: update}, nil
	}

	remaining, err := h.store.RemainingSegments(ctx, req.PlanID)
	if err != nil {
		return UpdateResult{}, planerr.Wrap(planerr.Fatal, req.PlanID, "update_plan: load remaining segments", err)
	}

	driverState, vehicleState := h.applyTriggerMutation(req, lastHOSState(plan, remaining))
	remainingStops := applyLoadChange(req, remainingStopsFromSegments(remaining))

	result, err := h.planning.RePlan(ctx, remainingStops, driverState, vehicleState)
	if err != nil {
		return UpdateResult{}, err
	}

	for _, seg := range remaining {
		if err := h.store.SetSegmentStatus(ctx, req.PlanID, seg.SequenceOrder, domain.SegmentCancelled); err != nil {
			return UpdateResult{}, planerr.Wrap(planerr.Fatal, req.PlanID, "update_plan: cancel prior segment", err)
		}
	}

	nextSeq := plan.NextSequence()
	for i := range result.Segments {
		result.Segments[i].SequenceOrder = nextSeq + i
		if err := h.store.AppendSegment(ctx, req.PlanID, result.Segments[i]); err != nil {
			return UpdateResult{}, planerr.Wrap(planerr.Fatal, req.PlanID, "update_plan: append new segment", err)
		}
	}

	newVersion := plan.Version + 1
	update.NewVersion = &newVersion
	update.ImpactSummary = domain.ImpactSummary{
		SegmentsAdded:   len(result.Segments),
		SegmentsRemoved: len(remaining),
		Notes:           classification.Reason,
	}
	if err := h.store.SetVersion(ctx, req.PlanID, newVersion); err != nil {
		return UpdateResult{}, planerr.Wrap(planerr.Fatal, req.PlanID, "update_plan: persist new version", err)
	}
	if err := h.store.AppendUpdate(ctx, update); err != nil {
		return UpdateResult{}, planerr.Wrap(planerr.Fatal, req.PlanID, "update_plan: append update record", err)
	}

	newPlan, err := h.store.GetPlan(ctx, req.PlanID)
	if err != nil {
		return UpdateResult{}, planerr.Wrap(planerr.Fatal, req.PlanID, "update_plan: reload plan", err)
	}

	h.log.WithPlanID(req.PlanID).WithField("new_version", newVersion).Info("plan replanned")

	return UpdateResult{UpdateID: update.UpdateID, ReplanTriggered: true, NewPlan: newPlan, Update: update}, nil
}

// lastHOSState returns the HOS state to resume from: the first
// remaining segment's recorded state, or the plan's last segment
// overall if none remain.
func lastHOSState(plan *domain.RoutePlan, remaining []domain.RouteSegment) domain.HOSState {
	if len(remaining) > 0 {
		return remaining[0].HOSStateAfter
	}
	if len(plan.Segments) > 0 {
		return plan.Segments[len(plan.Segments)-1].HOSStateAfter
	}
	return domain.HOSState{}
}

// applyTriggerMutation applies the driver/vehicle state mutations
// implied by the trigger (e.g. dock_time_change adds variance to
// on_duty_time; driver_rest_request zeros all HOS counters).
func (h *Handler) applyTriggerMutation(req UpdateRequest, base domain.HOSState) (domain.HOSState, domain.VehicleState) {
	hosState := base
	// The Plan Store does not snapshot vehicle fuel state per segment
	// , so a replan
	// resumes assuming a full tank unless the trigger itself reports
	// fuel state (fuel_low). This is an explicit Open Question
	// decision, see DESIGN.md.
	vehicleState := domain.VehicleState{FuelCapacityGal: defaultVehicleCapacityGal, CurrentFuelGal: defaultVehicleCapacityGal, MPG: defaultVehicleMPG}
	if d := req.TriggerData.FuelLow; d != nil {
		vehicleState.CurrentFuelGal = d.CurrentFuelGal
	}

	switch req.UpdateType {
	case domain.TriggerDockTimeChange:
		if d := req.TriggerData.DockTimeChange; d != nil {
			hosState = hosState.ApplyOnDuty(d.ActualHours - d.EstimatedHours)
		}
	case domain.TriggerDriverRestRequest:
		hosState = domain.HOSState{}
	case domain.TriggerRestDurationChanged:
		if d := req.TriggerData.RestDurationChange; d != nil {
			hosState = hosState.ApplyPartialRest(d.VarianceHours)
		}
	}
	return hosState, vehicleState
}

// remainingStopsFromSegments re-derives a remaining-stops list from
// the tail of the current plan. Rest and fuel segments do not carry a
// Stop to resume through; drive segments anchor the stop list by their
// From/To fields, and a dock segment only sets the dock hours of the
// stop before it.
func remainingStopsFromSegments(remaining []domain.RouteSegment) []domain.Stop {
	var stops []domain.Stop
	first := true
	for _, seg := range remaining {
		switch seg.Kind {
		case domain.SegmentDrive:
			if first {
				stops = append(stops, domain.Stop{ID: seg.Drive.From, IsOrigin: true})
				first = false
			}
			stops = append(stops, domain.Stop{ID: seg.Drive.To})
		case domain.SegmentDock:
			if len(stops) > 0 {
				stops[len(stops)-1].EstimatedDockHours = seg.Dock.DurationH
			}
		}
	}
	if len(stops) > 0 {
		stops[len(stops)-1].IsDestination = true
	}
	return stops
}

// applyLoadChange folds a load_added/load_cancelled trigger's stop
// list into the remaining-stops list before resequencing: load_added
// inserts the new stops ahead of the destination, load_cancelled
// removes any stop matching one of the cancelled load's stop IDs
// except the origin and the destination, which are always kept.
func applyLoadChange(req UpdateRequest, stops []domain.Stop) []domain.Stop {
	d := req.TriggerData.LoadChange
	if d == nil || len(d.Stops) == 0 {
		return stops
	}

	switch req.UpdateType {
	case domain.TriggerLoadAdded:
		if len(stops) == 0 {
			return append([]domain.Stop{}, d.Stops...)
		}
		dest := stops[len(stops)-1]
		out := append([]domain.Stop{}, stops[:len(stops)-1]...)
		out = append(out, d.Stops...)
		out = append(out, dest)
		return out

	case domain.TriggerLoadCancelled:
		cancelled := make(map[string]bool, len(d.Stops))
		for _, s := range d.Stops {
			cancelled[s.ID] = true
		}
		var out []domain.Stop
		for _, s := range stops {
			if s.IsOrigin || s.IsDestination || !cancelled[s.ID] {
				out = append(out, s)
			}
		}
		return out
	}
	return stops
}
