// Package hos implements the pure, stateless FMCSA 11/14/8 rule
// evaluator. It never blocks and never mutates shared state: each
// check takes a value-type HOSState and returns a fresh verdict
// rather than mutating a persisted entity in place.
package hos

import (
	"fmt"

	"github.com/saan-system/routeplanner/internal/config"
	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/planerr"
)

// ComplianceStatus is the overall verdict of a ComplianceResult.
type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "compliant"
	StatusWarning      ComplianceStatus = "warning"
	StatusNonCompliant ComplianceStatus = "non_compliant"
)

// Check is one of the three independent rule evaluations.
type Check struct {
	Compliant bool    `json:"compliant"`
	Current   float64 `json:"current"`
	Limit     float64 `json:"limit"`
	Remaining float64 `json:"remaining"`
	Message   string  `json:"message"`
}

// ComplianceResult is the full output of Validate.
type ComplianceResult struct {
	Status     ComplianceStatus `json:"status"`
	IsCompliant bool            `json:"is_compliant"`

	DriveLimit Check `json:"drive_limit"`
	DutyWindow Check `json:"duty_window"`
	Break      Check `json:"break"`

	HoursRemainingToDrive  float64 `json:"hours_remaining_to_drive"`
	HoursRemainingOnDuty   float64 `json:"hours_remaining_on_duty"`
	BreakRequired          bool    `json:"break_required"`
	RestRequired           bool    `json:"rest_required"`
}

// Engine evaluates HOSState against a fixed, immutable-after-startup
// set of rule constants.
type Engine struct {
	cfg config.HOSConfig
}

// New constructs an Engine bound to cfg. cfg is read once at process
// init and never mutated: there are no module-level singletons — the
// engine is constructed explicitly and passed in.
func New(cfg config.HOSConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Validate evaluates the 11/14/8 rules against hos and returns the
// three independent checks plus derived fields.
//
// Testable property 1: HoursRemainingToDrive == max(0, MaxDriveH -
// HoursDriven). Testable property 2: IsCompliant iff all three checks
// compliant. Property 9: calling Validate twice on the same input
// returns an equal result (Engine holds no mutable state).
func (e *Engine) Validate(h domain.HOSState) (ComplianceResult, error) {
	if err := h.Validate(); err != nil {
		return ComplianceResult{}, planerr.Wrap(planerr.InvalidInput, "", fmt.Sprintf("invalid HOS state: %v", err), err)
	}

	driveRemaining := max0(e.cfg.MaxDriveH - h.HoursDriven)
	dutyRemaining := max0(e.cfg.MaxDutyH - h.OnDutyTime)

	driveCheck := Check{
		Compliant: h.HoursDriven <= e.cfg.MaxDriveH,
		Current:   h.HoursDriven,
		Limit:     e.cfg.MaxDriveH,
		Remaining: driveRemaining,
	}
	if !driveCheck.Compliant {
		driveCheck.Message = fmt.Sprintf("drive limit exceeded: %.2fh driven against an %.2fh limit", h.HoursDriven, e.cfg.MaxDriveH)
	} else {
		driveCheck.Message = fmt.Sprintf("%.2fh remaining to drive", driveRemaining)
	}

	dutyCheck := Check{
		Compliant: h.OnDutyTime <= e.cfg.MaxDutyH,
		Current:   h.OnDutyTime,
		Limit:     e.cfg.MaxDutyH,
		Remaining: dutyRemaining,
	}
	if !dutyCheck.Compliant {
		dutyCheck.Message = fmt.Sprintf("duty window exceeded: %.2fh on duty against a %.2fh window", h.OnDutyTime, e.cfg.MaxDutyH)
	} else {
		dutyCheck.Message = fmt.Sprintf("%.2fh remaining in duty window", dutyRemaining)
	}

	breakRequired := h.HoursSinceBreak >= e.cfg.BreakTriggerH
	breakCheck := Check{
		Compliant: !breakRequired,
		Current:   h.HoursSinceBreak,
		Limit:     e.cfg.BreakTriggerH,
		Remaining: max0(e.cfg.BreakTriggerH - h.HoursSinceBreak),
	}
	if breakRequired {
		breakCheck.Message = fmt.Sprintf("%.2fh driven without a qualifying break, trigger is %.2fh", h.HoursSinceBreak, e.cfg.BreakTriggerH)
	} else {
		breakCheck.Message = fmt.Sprintf("%.2fh until a break is required", breakCheck.Remaining)
	}

	isCompliant := driveCheck.Compliant && dutyCheck.Compliant && breakCheck.Compliant

	status := StatusNonCompliant
	switch {
	case isCompliant && (driveCheck.Remaining <= 1.0 || dutyCheck.Remaining <= 1.0):
		status = StatusWarning
	case isCompliant:
		status = StatusCompliant
	}

	return ComplianceResult{
		Status:      status,
		IsCompliant: isCompliant,
		DriveLimit:  driveCheck,
		DutyWindow:  dutyCheck,
		Break:       breakCheck,

		HoursRemainingToDrive: driveRemaining,
		HoursRemainingOnDuty:  dutyRemaining,
		BreakRequired:         breakRequired,
		RestRequired:          h.HoursDriven >= e.cfg.MaxDriveH || h.OnDutyTime >= e.cfg.MaxDutyH,
	}, nil
}

// Violations collects the human-readable messages of any failing
// check, for use in a plan's ComplianceReport.Violations.
func (r ComplianceResult) Violations() []string {
	var out []string
	if !r.DriveLimit.Compliant {
		out = append(out, r.DriveLimit.Message)
	}
	if !r.DutyWindow.Compliant {
		out = append(out, r.DutyWindow.Message)
	}
	if !r.Break.Compliant {
		out = append(out, r.Break.Message)
	}
	return out
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
