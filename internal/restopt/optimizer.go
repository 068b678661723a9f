// Package restopt implements the Rest Optimization Engine: given
// upcoming trips and the driver's current HOS state, it recommends
// whether and how long to rest. Like hos.Engine it never blocks and
// has no repository dependency; its constructor still takes its
// config dependency explicitly and each public method returns a
// single result value and a wrapped error.
package restopt

import (
	"github.com/saan-system/routeplanner/internal/config"
	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/hos"
	"github.com/saan-system/routeplanner/internal/planerr"
)

// Recommendation is the recommended rest action.
type Recommendation string

const (
	RecommendFullRest Recommendation = "FULL_REST"
	RecommendPartial73 Recommendation = "PARTIAL_REST_7_3"
	RecommendPartial82 Recommendation = "PARTIAL_REST_8_2"
	RecommendBreak     Recommendation = "BREAK"
	RecommendNoRest    Recommendation = "NO_REST"
)

// LimitingFactor names which of the two ceilings is tighter when a
// trip horizon is infeasible.
type LimitingFactor string

const (
	LimitDrive LimitingFactor = "drive_limit"
	LimitDuty  LimitingFactor = "duty_window"
)

// Feasibility is analysis (a).
type Feasibility struct {
	Feasible         bool           `json:"feasible"`
	TotalDriveNeeded float64        `json:"total_drive_needed"`
	TotalDutyNeeded  float64        `json:"total_on_duty_needed"`
	DriveMargin      float64        `json:"drive_margin"`
	DutyMargin       float64        `json:"duty_margin"`
	LimitingFactor   LimitingFactor `json:"limiting_factor,omitempty"`
	Shortfall        float64        `json:"shortfall"`
}

// Opportunity is analysis (b): a 0-100 composite score.
type Opportunity struct {
	Score            float64 `json:"score"`
	DockScore        float64 `json:"dock_score"`
	HoursGainable    float64 `json:"hours_gainable_score"`
	CriticalityScore float64 `json:"criticality_score"`
}

// Cost is analysis (c): extra wait time beyond dock time.
type Cost struct {
	FullExtension    float64 `json:"full_extension"`
	PartialExtension float64 `json:"partial_extension"`
}

// Result is the full output of Recommend.
type Result struct {
	Recommendation   Recommendation `json:"recommendation"`
	DurationH        float64        `json:"duration_h"`
	Confidence       int            `json:"confidence"`
	DriverCanDecline bool           `json:"driver_can_decline"`

	Feasibility Feasibility `json:"feasibility"`
	Opportunity Opportunity `json:"opportunity"`
	Cost        Cost        `json:"cost"`

	PostLoadDriveFeasible bool          `json:"post_load_drive_feasible"`
	HoursAfterRestDrive   float64       `json:"hours_after_rest_drive"`
	HoursAfterRestDuty    float64       `json:"hours_after_rest_duty"`
	HOSStateAfterRest     domain.HOSState `json:"hos_state_after_rest"`
}

// Engine computes rest recommendations.
type Engine struct {
	cfg    config.HOSConfig
	hosEng *hos.Engine
}

// New constructs a rest optimizer bound to cfg and an HOS engine built
// from the same configuration, matching the overall construction
// order: Providers -> HOS Engine -> Rest Optimizer -> ...
func New(cfg config.HOSConfig, hosEng *hos.Engine) *Engine {
	return &Engine{cfg: cfg, hosEng: hosEng}
}

// Recommend runs the three analyses in order and applies the decision
// lattice.
func (e *Engine) Recommend(current domain.HOSState, dockHours float64, trips []domain.TripRequirement) (Result, error) {
	if err := current.Validate(); err != nil {
		return Result{}, planerr.Wrap(planerr.InvalidInput, "", "invalid HOS state", err)
	}
	if dockHours < 0 {
		return Result{}, planerr.New(planerr.InvalidInput, "", "dock_duration_hours cannot be negative")
	}

	feas := e.feasibility(current, trips)
	opp := e.opportunity(current, dockHours, feas)
	cost := e.cost(dockHours)

	rec, duration, confidence, decline := e.decide(current, feas, opp, cost)

	stateAfter := applyRest(current, rec, duration)
	hoursAfterDrive := e.cfg.MaxDriveH - stateAfter.HoursDriven
	hoursAfterDuty := e.cfg.MaxDutyH - stateAfter.OnDutyTime

	postFeas := e.feasibility(stateAfter, trips)

	return Result{
		Recommendation:   rec,
		DurationH:        duration,
		Confidence:       confidence,
		DriverCanDecline: decline,
		Feasibility:      feas,
		Opportunity:      opp,
		Cost:             cost,

		PostLoadDriveFeasible: postFeas.Feasible,
		HoursAfterRestDrive:   hoursAfterDrive,
		HoursAfterRestDuty:    hoursAfterDuty,
		HOSStateAfterRest:     stateAfter,
	}, nil
}

// feasibility is analysis (a).
func (e *Engine) feasibility(current domain.HOSState, trips []domain.TripRequirement) Feasibility {
	var totalDrive, totalDock float64
	for _, t := range trips {
		totalDrive += t.DriveTimeH
		totalDock += t.DockTimeH
	}

	sinceBreak := current.HoursSinceBreak
	breakPenalty := 0.0
	if sinceBreak+totalDrive >= e.cfg.BreakTriggerH {
		breakPenalty = 0.5
	}
	totalDutyNeeded := totalDrive + totalDock + breakPenalty

	driveRemaining := e.cfg.MaxDriveH - current.HoursDriven
	dutyRemaining := e.cfg.MaxDutyH - current.OnDutyTime

	driveMargin := driveRemaining - totalDrive
	dutyMargin := dutyRemaining - totalDutyNeeded

	feasible := totalDrive <= driveRemaining && totalDutyNeeded <= dutyRemaining

	var limiting LimitingFactor
	shortfall := 0.0
	if !feasible {
		driveShortfall := totalDrive - driveRemaining
		dutyShortfall := totalDutyNeeded - dutyRemaining
		if dutyShortfall > driveShortfall {
			limiting = LimitDuty
			shortfall = dutyShortfall
		} else {
			limiting = LimitDrive
			shortfall = driveShortfall
		}
		if shortfall < 0 {
			shortfall = 0
		}
	}

	return Feasibility{
		Feasible:         feasible,
		TotalDriveNeeded: totalDrive,
		TotalDutyNeeded:  totalDutyNeeded,
		DriveMargin:      driveMargin,
		DutyMargin:       dutyMargin,
		LimitingFactor:   limiting,
		Shortfall:        shortfall,
	}
}

// opportunity is analysis (b).
func (e *Engine) opportunity(current domain.HOSState, dockHours float64, feas Feasibility) Opportunity {
	dockScore := 0.0
	switch {
	case dockHours >= e.cfg.MinRestH:
		dockScore = 30
	case dockHours >= 8:
		dockScore = 20
	case dockHours >= 2:
		dockScore = 10
	}

	gainableScore := 0.0
	if dockHours >= 2 || dockHours >= e.cfg.MinRestH {
		// gainable = max(MAX_DRIVE_H - drive_remaining, MAX_DUTY_H - duty_remaining)
		// = max(hours_driven, on_duty_time), since drive_remaining = MAX_DRIVE_H -
		// hours_driven and duty_remaining = MAX_DUTY_H - on_duty_time.
		gainable := max(current.HoursDriven, current.OnDutyTime)
		gainableScore = min(30, gainable/e.cfg.MaxDriveH*30)
	}

	criticality := max(current.HoursDriven/e.cfg.MaxDriveH, current.OnDutyTime/e.cfg.MaxDutyH)
	criticalityScore := 5.0
	switch {
	case criticality >= 0.90:
		criticalityScore = 40
	case criticality >= 0.75:
		criticalityScore = 30
	case criticality >= 0.50:
		criticalityScore = 15
	}

	total := dockScore + gainableScore + criticalityScore
	if total > 100 {
		total = 100
	}

	return Opportunity{
		Score:            total,
		DockScore:        dockScore,
		HoursGainable:    gainableScore,
		CriticalityScore: criticalityScore,
	}
}

// cost is analysis (c).
func (e *Engine) cost(dockHours float64) Cost {
	full := e.cfg.MinRestH - dockHours
	if full < 0 {
		full = 0
	}
	partial := 7 - dockHours
	if partial < 0 {
		partial = 0
	}
	return Cost{FullExtension: full, PartialExtension: partial}
}

// decide applies the decision lattice: first matching
// rule wins.
func (e *Engine) decide(current domain.HOSState, feas Feasibility, opp Opportunity, cost Cost) (Recommendation, float64, int, bool) {
	if !feas.Feasible {
		return RecommendFullRest, e.cfg.MinRestH, 100, false
	}

	if current.HoursSinceBreak >= e.cfg.BreakTriggerH {
		return RecommendBreak, 0.5, 100, false
	}

	const marginalThreshold = 2.0
	marginal := feas.DriveMargin < marginalThreshold || feas.DutyMargin < marginalThreshold

	if marginal {
		switch {
		case opp.Score >= 50 && cost.FullExtension <= 5:
			return RecommendFullRest, e.cfg.MinRestH, 75, true
		case opp.Score >= 40 && cost.PartialExtension <= 3 && opp.DockScore >= 20:
			return RecommendPartial82, 8, 65, true
		case opp.Score >= 40 && cost.PartialExtension <= 3:
			return RecommendPartial73, 7, 65, true
		default:
			return RecommendNoRest, 0, 60, true
		}
	}

	// Comfortable: both margins >= 2.
	if opp.Score >= 60 && cost.FullExtension <= 5 {
		return RecommendFullRest, e.cfg.MinRestH, 55, true
	}
	return RecommendNoRest, 0, 80, true
}

// applyRest computes the HOSState after applying rec.
func applyRest(current domain.HOSState, rec Recommendation, duration float64) domain.HOSState {
	switch rec {
	case RecommendFullRest:
		return current.ApplyFullRest()
	case RecommendPartial73, RecommendPartial82:
		return current.ApplyPartialRest(duration)
	case RecommendBreak:
		return current.ApplyBreak()
	default:
		return current
	}
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
