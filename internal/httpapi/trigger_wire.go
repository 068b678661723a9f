package httpapi

import "github.com/saan-system/routeplanner/internal/domain"

// triggerKind maps the wire-format update_type string onto the
// TriggerKind tagged-union discriminant.
func triggerKind(s string) domain.TriggerKind {
	return domain.TriggerKind(s)
}

// dynamicTriggerData mirrors domain.TriggerData's shape for JSON
// decoding off the wire; UpdatePlan only needs the one field matching
// update_type populated, same tagged-union discipline as the domain
// type itself.
type dynamicTriggerData struct {
	TrafficDelay       *domain.TrafficDelayData       `json:"traffic_delay,omitempty"`
	DockTimeChange     *domain.DockTimeChangeData     `json:"dock_time_change,omitempty"`
	DriverRestRequest  *domain.DriverRestRequestData  `json:"driver_rest_request,omitempty"`
	HOSLimitApproach   *domain.HOSLimitApproachData   `json:"hos_limit_approach,omitempty"`
	HOSViolation       *domain.HOSViolationData       `json:"hos_violation,omitempty"`
	RestDurationChange *domain.RestDurationChangeData `json:"rest_duration_change,omitempty"`
	FuelLow            *domain.FuelLowData            `json:"fuel_low,omitempty"`
	SpeedDeviation     *domain.SpeedDeviationData      `json:"speed_deviation,omitempty"`
	AppointmentChange  *domain.AppointmentChangeData   `json:"appointment_change,omitempty"`
	DockUnavailable    *domain.DockUnavailableData     `json:"dock_unavailable,omitempty"`
	LoadChange         *domain.LoadChangeData          `json:"load_change,omitempty"`
}

func (d dynamicTriggerData) toDomain() domain.TriggerData {
	return domain.TriggerData{
		TrafficDelay:       d.TrafficDelay,
		DockTimeChange:     d.DockTimeChange,
		DriverRestRequest:  d.DriverRestRequest,
		HOSLimitApproach:   d.HOSLimitApproach,
		HOSViolation:       d.HOSViolation,
		RestDurationChange: d.RestDurationChange,
		FuelLow:            d.FuelLow,
		SpeedDeviation:     d.SpeedDeviation,
		AppointmentChange:  d.AppointmentChange,
		DockUnavailable:    d.DockUnavailable,
		LoadChange:         d.LoadChange,
	}
}
