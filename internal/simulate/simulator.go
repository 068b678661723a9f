// Package simulate implements the Route Simulator, the
// core algorithm: forward simulation over an ordered stop sequence
// that inserts fuel and rest segments wherever the running HOS/fuel
// state requires them, producing a feasible (or documented-infeasible)
// list of RouteSegments.
package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/saan-system/routeplanner/internal/config"
	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/money"
	"github.com/saan-system/routeplanner/internal/planerr"
	"github.com/saan-system/routeplanner/internal/providers"
	"github.com/saan-system/routeplanner/internal/restopt"
)

// Result is the full output of a simulation run.
type Result struct {
	Segments          []domain.RouteSegment
	Totals            domain.PlanTotals
	ComplianceReport  domain.ComplianceReport
	IsFeasible        bool
	FeasibilityIssues []string
}

// Engine runs forward simulation over a sequenced stop list. Its only
// suspension points are the three providers.
type Engine struct {
	hosCfg  config.HOSConfig
	simCfg  config.SimulationConfig
	dist    providers.DistanceProvider
	restA   providers.RestAreaProvider
	fuelP   providers.FuelStopProvider
	restOpt *restopt.Engine
}

// New constructs a simulator bound to its configuration and providers.
// restOpt drives the rest-insertion decision: the simulator decides
// when a rest is due and asks the Rest Optimization Engine what kind,
// taking a full rest instead whenever the recommended one would not
// bring the next leg within the drive limit.
func New(hosCfg config.HOSConfig, simCfg config.SimulationConfig, dist providers.DistanceProvider, restA providers.RestAreaProvider, fuelP providers.FuelStopProvider, restOpt *restopt.Engine) *Engine {
	return &Engine{hosCfg: hosCfg, simCfg: simCfg, dist: dist, restA: restA, fuelP: fuelP, restOpt: restOpt}
}

// Simulate walks sequence in order, inserting fuel and rest segments as
// the HOS/fuel invariants require.
//
// Testable property 3: when the result reports no feasibility issues, no
// drive segment leaves hos_state_after.hours_driven > MAX_DRIVE_H.
// Testable property 4: a fuel segment is inserted whenever
// cur_fuel would otherwise fall below the buffered requirement. Testable
// property 5: segment sequence_order is dense 1..N.
func (e *Engine) Simulate(ctx context.Context, sequence []domain.Stop, matrix providers.Matrix, initialHOS domain.HOSState, initialVehicle domain.VehicleState, startTime time.Time) (Result, error) {
	if err := initialHOS.Validate(); err != nil {
		return Result{}, planerr.Wrap(planerr.InvalidInput, "", "invalid initial HOS state", err)
	}
	if err := initialVehicle.Validate(); err != nil {
		return Result{}, planerr.Wrap(planerr.InvalidInput, "", "invalid initial vehicle state", err)
	}

	var segments []domain.RouteSegment
	var issues []string
	var fuelCosts []float64

	curHOS := initialHOS
	curVehicle := initialVehicle
	curTime := startTime
	maxDriveUsed := curHOS.HoursDriven
	maxDutyUsed := curHOS.OnDutyTime
	maxSinceBreakObserved := curHOS.HoursSinceBreak

	appendSegment := func(kind domain.SegmentKind, drive *domain.DriveDetail, rest *domain.RestDetail, fuel *domain.FuelDetail, dock *domain.DockDetail, duration float64) {
		departure := curTime
		curTime = curTime.Add(time.Duration(duration * float64(time.Hour)))
		seg := domain.RouteSegment{
			SequenceOrder:      len(segments) + 1,
			Kind:               kind,
			Drive:              drive,
			Rest:               rest,
			Fuel:               fuel,
			Dock:               dock,
			HOSStateAfter:      curHOS,
			EstimatedDeparture: departure,
			EstimatedArrival:   curTime,
			Status:             domain.SegmentPlanned,
		}
		segments = append(segments, seg)
	}

	for i := 0; i+1 < len(sequence); i++ {
		a, b := sequence[i], sequence[i+1]

		distMiles, ok := matrix.Get(a.ID, b.ID)
		if !ok {
			distMiles = e.simCfg.DistanceFallbackMiles
			issues = append(issues, fmt.Sprintf("distance %s->%s missing from matrix, used %.0f mi fallback", a.ID, b.ID, distMiles))
		}
		driveTime, err := e.dist.DriveTime(ctx, distMiles, providers.RoadClass(""))
		if err != nil {
			driveTime = distMiles / e.simCfg.DefaultAvgSpeedMPH
		}

		// 2. Fuel check.
		gallonsNeeded := distMiles / curVehicle.MPG
		if curVehicle.CurrentFuelGal < gallonsNeeded*(1+e.simCfg.FuelBuffer) {
			result, err := e.fuelP.Optimize(ctx, a, curVehicle.CurrentFuelGal, curVehicle.FuelCapacityGal, curVehicle.MPG)
			if err == nil && result.Station != nil {
				curHOS = curHOS.ApplyOnDuty(0.25)
				curVehicle = curVehicle.Refilled()
				fuelCosts = append(fuelCosts, result.EstimatedCost)
				appendSegment(domain.SegmentFuel, nil, nil, &domain.FuelDetail{
					Gallons:      result.GallonsNeeded,
					CostEstimate: result.EstimatedCost,
					Station:      result.Station.ID,
				}, nil, 0.25)
				maxDutyUsed = max64(maxDutyUsed, curHOS.OnDutyTime)
				maxSinceBreakObserved = max64(maxSinceBreakObserved, curHOS.HoursSinceBreak)
			} else {
				issues = append(issues, fmt.Sprintf("low fuel approaching %s but no fuel station found within range", b.ID))
			}
		}

		// 3. HOS check: when the next leg would exceed the drive limit,
		// ask the Rest Optimization Engine what kind of rest to take,
		// falling back to a full rest when its choice is not enough.
		if curHOS.HoursDriven+driveTime > e.hosCfg.MaxDriveH {
			restStop, err := e.restA.FindAlongRoute(ctx, a, b)
			if err != nil || restStop == nil {
				issues = append(issues, "HOS limit reached but no rest stop found")
			} else {
				trips := remainingTripRequirements(ctx, e.dist, e.simCfg, matrix, sequence, i+1)
				rec, recErr := e.restOpt.Recommend(curHOS, b.EstimatedDockHours, trips)
				if recErr != nil {
					issues = append(issues, fmt.Sprintf("rest optimizer error: %v", recErr))
				} else {
					// A recommended rest that would still leave the next leg
					// over the drive limit is replaced by a full rest; the
					// snapshot keeps the optimizer's own recommendation.
					applied := rec
					if applyRecommendedRest(curHOS, rec).HoursDriven+driveTime > e.hosCfg.MaxDriveH {
						applied.Recommendation = restopt.RecommendFullRest
						applied.DurationH = e.hosCfg.MinRestH
					}
					restType, duration := restTypeAndDuration(applied)
					before := curHOS
					curHOS = applyRecommendedRest(curHOS, applied)
					appendSegment(domain.SegmentRest, nil, &domain.RestDetail{
						RestType:  restType,
						DurationH: duration,
						Reason:    "drive-limit reached before next stop",
						Recommendation: &domain.RestRecommendation{
							Recommendation:                  string(rec.Recommendation),
							Confidence:                      rec.Confidence,
							DriverCanDecline:                rec.DriverCanDecline,
							OpportunityScore:                rec.Opportunity.Score,
							HoursDrivenAtRecommendation:     before.HoursDriven,
							OnDutyAtRecommendation:          before.OnDutyTime,
							HoursSinceBreakAtRecommendation: before.HoursSinceBreak,
						},
					}, nil, nil, duration)
					maxSinceBreakObserved = max64(maxSinceBreakObserved, curHOS.HoursSinceBreak)
				}
			}
		}

		// 4. Drive.
		curHOS = curHOS.ApplyDrive(driveTime)
		curVehicle = curVehicle.Consume(distMiles)
		appendSegment(domain.SegmentDrive, &domain.DriveDetail{
			DistanceMiles: distMiles,
			DriveTimeH:    driveTime,
			From:          a.ID,
			To:            b.ID,
		}, nil, nil, nil, driveTime)
		maxDriveUsed = max64(maxDriveUsed, curHOS.HoursDriven)
		maxDutyUsed = max64(maxDutyUsed, curHOS.OnDutyTime)
		maxSinceBreakObserved = max64(maxSinceBreakObserved, curHOS.HoursSinceBreak)

		// 5. Dock.
		if b.EstimatedDockHours > 0 {
			curHOS = curHOS.ApplyOnDuty(b.EstimatedDockHours)
			appendSegment(domain.SegmentDock, nil, nil, nil, &domain.DockDetail{
				DurationH: b.EstimatedDockHours,
				Customer:  b.ID,
			}, b.EstimatedDockHours)
			maxDutyUsed = max64(maxDutyUsed, curHOS.OnDutyTime)
			maxSinceBreakObserved = max64(maxSinceBreakObserved, curHOS.HoursSinceBreak)
		}
	}

	totals := domain.PlanTotals{
		TotalCostEstimate: money.Sum(fuelCosts...),
	}
	breaksPlanned := 0
	for _, s := range segments {
		if s.Kind == domain.SegmentDrive {
			totals.TotalDistanceMiles += s.Drive.DistanceMiles
			totals.TotalDriveTimeH += s.Drive.DriveTimeH
			totals.TotalOnDutyTimeH += s.Drive.DriveTimeH
		}
		if s.Kind == domain.SegmentDock {
			totals.TotalOnDutyTimeH += s.Dock.DurationH
		}
		if s.Kind == domain.SegmentFuel {
			totals.TotalOnDutyTimeH += 0.25
		}
		if s.Kind == domain.SegmentRest {
			breaksPlanned++
		}
	}

	report := domain.ComplianceReport{
		MaxDriveHoursUsed: maxDriveUsed,
		MaxDutyHoursUsed:  maxDutyUsed,
		BreaksRequired:    int(maxSinceBreakObserved / e.hosCfg.BreakTriggerH),
		BreaksPlanned:     breaksPlanned,
		Violations:        issues,
	}

	return Result{
		Segments:          segments,
		Totals:            totals,
		ComplianceReport:  report,
		IsFeasible:        len(issues) == 0,
		FeasibilityIssues: issues,
	}, nil
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// remainingTripRequirements builds the []domain.TripRequirement the
// Rest Optimization Engine's feasibility analysis needs: one trip per
// remaining leg of sequence from fromIndex onward, pairing each leg's
// drive time with the arriving stop's dock time.
func remainingTripRequirements(ctx context.Context, dist providers.DistanceProvider, simCfg config.SimulationConfig, matrix providers.Matrix, sequence []domain.Stop, fromIndex int) []domain.TripRequirement {
	var trips []domain.TripRequirement
	for i := fromIndex; i+1 < len(sequence); i++ {
		a, b := sequence[i], sequence[i+1]
		miles, ok := matrix.Get(a.ID, b.ID)
		if !ok {
			miles = simCfg.DistanceFallbackMiles
		}
		driveTime, err := dist.DriveTime(ctx, miles, providers.RoadClass(""))
		if err != nil {
			driveTime = miles / simCfg.DefaultAvgSpeedMPH
		}
		trips = append(trips, domain.TripRequirement{
			DriveTimeH: driveTime,
			DockTimeH:  b.EstimatedDockHours,
			Location:   b.ID,
		})
	}
	return trips
}

// restTypeAndDuration maps a restopt.Result onto the domain.RestType
// and segment duration the simulator records.
func restTypeAndDuration(rec restopt.Result) (domain.RestType, float64) {
	switch rec.Recommendation {
	case restopt.RecommendPartial73:
		return domain.RestPartial73, rec.DurationH
	case restopt.RecommendPartial82:
		return domain.RestPartial82, rec.DurationH
	case restopt.RecommendBreak:
		return domain.RestBreak, rec.DurationH
	default:
		return domain.RestFullRest, rec.DurationH
	}
}

// applyRecommendedRest advances current by whichever rest
// restopt.Recommend chose, mirroring restopt's own applyRest so the
// simulator's running HOS state matches the HOS state the
// recommendation was computed against.
func applyRecommendedRest(current domain.HOSState, rec restopt.Result) domain.HOSState {
	switch rec.Recommendation {
	case restopt.RecommendPartial73, restopt.RecommendPartial82:
		return current.ApplyPartialRest(rec.DurationH)
	case restopt.RecommendBreak:
		return current.ApplyBreak()
	default:
		return current.ApplyFullRest()
	}
}
