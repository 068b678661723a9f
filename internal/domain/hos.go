package domain

import "errors"

// HOSState is an immutable snapshot of a driver's Hours-of-Service
// counters within the current duty period. Values are always hours,
// never shared-mutable: every operation that "applies" time to a
// state returns a new value.
type HOSState struct {
	HoursDriven     float64 `json:"hours_driven"`
	OnDutyTime      float64 `json:"on_duty_time"`
	HoursSinceBreak float64 `json:"hours_since_break"`
}

// Domain errors for HOS state validation.
var (
	ErrHOSOutOfRange  = errors.New("hos hours must be within [0, 24]")
	ErrHOSDriveGTDuty = errors.New("hours_driven cannot exceed on_duty_time")
)

// Validate checks the range and cross-field invariant of a HOSState.
func (h HOSState) Validate() error {
	for _, v := range []float64{h.HoursDriven, h.OnDutyTime, h.HoursSinceBreak} {
		if v < 0 || v > 24 {
			return ErrHOSOutOfRange
		}
	}
	if h.HoursDriven > h.OnDutyTime {
		return ErrHOSDriveGTDuty
	}
	return nil
}

// Zero returns the HOSState immediately after a full rest: every
// counter reset.
func Zero() HOSState {
	return HOSState{}
}

// ApplyDrive returns the state after driving for driveHours, with
// on-duty and since-break counters advanced the same amount.
func (h HOSState) ApplyDrive(driveHours float64) HOSState {
	return HOSState{
		HoursDriven:     h.HoursDriven + driveHours,
		OnDutyTime:      h.OnDutyTime + driveHours,
		HoursSinceBreak: h.HoursSinceBreak + driveHours,
	}
}

// ApplyOnDuty returns the state after non-driving on-duty time (dock,
// fueling): on-duty and since-break advance, driving does not.
func (h HOSState) ApplyOnDuty(hours float64) HOSState {
	return HOSState{
		HoursDriven:     h.HoursDriven,
		OnDutyTime:      h.OnDutyTime + hours,
		HoursSinceBreak: h.HoursSinceBreak + hours,
	}
}

// ApplyBreak zeroes hours_since_break only.
func (h HOSState) ApplyBreak() HOSState {
	return HOSState{
		HoursDriven:     h.HoursDriven,
		OnDutyTime:      h.OnDutyTime,
		HoursSinceBreak: 0,
	}
}

// ApplyFullRest resets all three counters, per the 10-consecutive-hour
// off-duty provision.
func (h HOSState) ApplyFullRest() HOSState {
	return Zero()
}

// ApplyPartialRest approximates the sleeper-berth recovery as
// +0.5*duration added back to drive and duty remaining (i.e.
// subtracted from hours_driven and on_duty_time). This is a
// deliberate simplification of the 7/3 and 8/2 split rules — see
// DESIGN.md Open Question #1.
func (h HOSState) ApplyPartialRest(durationHours float64) HOSState {
	recovered := 0.5 * durationHours
	drivenAfter := h.HoursDriven - recovered
	if drivenAfter < 0 {
		drivenAfter = 0
	}
	dutyAfter := h.OnDutyTime - recovered
	if dutyAfter < 0 {
		dutyAfter = 0
	}
	if drivenAfter > dutyAfter {
		drivenAfter = dutyAfter
	}
	return HOSState{
		HoursDriven:     drivenAfter,
		OnDutyTime:      dutyAfter,
		HoursSinceBreak: h.HoursSinceBreak,
	}
}
