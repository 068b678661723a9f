package domain

import (
	"errors"
	"time"
)

// SegmentKind discriminates the four segment variants.
type SegmentKind string

const (
	SegmentDrive SegmentKind = "drive"
	SegmentRest  SegmentKind = "rest"
	SegmentFuel  SegmentKind = "fuel"
	SegmentDock  SegmentKind = "dock"
)

// RestType enumerates the rest-optimization recommendation space minus
// NO_REST, which never produces a segment.
type RestType string

const (
	RestFullRest       RestType = "full_rest"
	RestPartial73      RestType = "partial_rest_7_3"
	RestPartial82      RestType = "partial_rest_8_2"
	RestBreak          RestType = "break"
)

// SegmentStatus is the lifecycle state of a RouteSegment.
type SegmentStatus string

const (
	SegmentPlanned    SegmentStatus = "planned"
	SegmentInProgress SegmentStatus = "in_progress"
	SegmentCompleted  SegmentStatus = "completed"
	SegmentSkipped    SegmentStatus = "skipped"
	SegmentCancelled  SegmentStatus = "cancelled"
)

// DriveDetail carries the fields unique to a drive segment.
type DriveDetail struct {
	DistanceMiles float64 `json:"distance_miles"`
	DriveTimeH    float64 `json:"drive_time_h"`
	From          string  `json:"from"`
	To            string  `json:"to"`
}

// RestDetail carries the fields unique to a rest segment.
type RestDetail struct {
	RestType   RestType `json:"rest_type"`
	DurationH  float64  `json:"duration_h"`
	Reason     string   `json:"reason"`

	// Recommendation is the Rest Optimization Engine's analysis behind
	// this segment, carried through for audit and for the
	// acceptance-tracking fields below. Nil for a rest segment inserted
	// before the optimizer was wired in (e.g. a hand-seeded test plan).
	Recommendation *RestRecommendation `json:"recommendation,omitempty"`
}

// RestRecommendation snapshots the Rest Optimization Engine's decision
// inputs at the moment a rest segment was inserted, plus the
// after-the-fact outcome a dispatcher can record without re-running
// the optimizer.
type RestRecommendation struct {
	Recommendation   string  `json:"recommendation"`
	Confidence       int     `json:"confidence"`
	DriverCanDecline bool    `json:"driver_can_decline"`
	OpportunityScore float64 `json:"opportunity_score"`

	HoursDrivenAtRecommendation     float64 `json:"hours_driven_at_recommendation"`
	OnDutyAtRecommendation         float64 `json:"on_duty_at_recommendation"`
	HoursSinceBreakAtRecommendation float64 `json:"hours_since_break_at_recommendation"`

	// Accepted and ActualAction are unset until a dispatcher closes the
	// loop on the recommendation; both are nil/empty on a freshly
	// simulated plan.
	Accepted     *bool  `json:"accepted,omitempty"`
	ActualAction string `json:"actual_action,omitempty"`
}

// FuelDetail carries the fields unique to a fuel segment.
type FuelDetail struct {
	Gallons      float64 `json:"gallons"`
	CostEstimate float64 `json:"cost_estimate"`
	Station      string  `json:"station"`
}

// DockDetail carries the fields unique to a dock segment.
type DockDetail struct {
	DurationH float64 `json:"duration_h"`
	Customer  string  `json:"customer"`
}

// RouteSegment is the common envelope for every step of a route:
// shared fields live here, and exactly one of the *Detail pointers is
// non-nil according to Kind. This is a sum type rather than a single
// struct with many optional fields, so a segment's kind and its data
// can never disagree.
type RouteSegment struct {
	SequenceOrder int           `json:"sequence_order"`
	Kind          SegmentKind   `json:"kind"`
	Drive         *DriveDetail  `json:"drive,omitempty"`
	Rest          *RestDetail   `json:"rest,omitempty"`
	Fuel          *FuelDetail   `json:"fuel,omitempty"`
	Dock          *DockDetail   `json:"dock,omitempty"`

	HOSStateAfter     HOSState      `json:"hos_state_after"`
	EstimatedArrival  time.Time     `json:"estimated_arrival"`
	EstimatedDeparture time.Time    `json:"estimated_departure"`
	Status            SegmentStatus `json:"status"`
}

var (
	ErrSegmentBadKind       = errors.New("segment kind does not match its populated detail")
	ErrSegmentIllegalStatus = errors.New("illegal segment status transition")
)

// Validate checks that exactly the detail matching Kind is populated.
func (s RouteSegment) Validate() error {
	count := 0
	if s.Drive != nil {
		count++
	}
	if s.Rest != nil {
		count++
	}
	if s.Fuel != nil {
		count++
	}
	if s.Dock != nil {
		count++
	}
	if count != 1 {
		return ErrSegmentBadKind
	}
	switch s.Kind {
	case SegmentDrive:
		if s.Drive == nil {
			return ErrSegmentBadKind
		}
	case SegmentRest:
		if s.Rest == nil {
			return ErrSegmentBadKind
		}
	case SegmentFuel:
		if s.Fuel == nil {
			return ErrSegmentBadKind
		}
	case SegmentDock:
		if s.Dock == nil {
			return ErrSegmentBadKind
		}
	default:
		return ErrSegmentBadKind
	}
	return nil
}

// segmentTransitions enumerates legal status transitions.
var segmentTransitions = map[SegmentStatus][]SegmentStatus{
	SegmentPlanned:    {SegmentInProgress, SegmentSkipped, SegmentCancelled},
	SegmentInProgress: {SegmentCompleted, SegmentSkipped, SegmentCancelled},
}

// CanTransitionTo reports whether moving from the current status to
// next is legal.
func (s RouteSegment) CanTransitionTo(next SegmentStatus) bool {
	for _, allowed := range segmentTransitions[s.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// WithStatus returns a copy of the segment transitioned to next, or an
// error if the transition is illegal.
func (s RouteSegment) WithStatus(next SegmentStatus) (RouteSegment, error) {
	if !s.CanTransitionTo(next) {
		return s, ErrSegmentIllegalStatus
	}
	s.Status = next
	return s, nil
}

// DurationHours returns the segment's own time contribution, used by
// the simulator to advance cur_time.
func (s RouteSegment) DurationHours() float64 {
	switch s.Kind {
	case SegmentDrive:
		return s.Drive.DriveTimeH
	case SegmentRest:
		return s.Rest.DurationH
	case SegmentFuel:
		return 0.25
	case SegmentDock:
		return s.Dock.DurationH
	default:
		return 0
	}
}
