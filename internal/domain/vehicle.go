package domain

import "errors"

// VehicleState is the fuel-relevant state of the tractor pulling the
// load: the narrow slice the simulator needs, not a full fleet-asset
// record (license plate, maintenance schedule, driver assignment).
type VehicleState struct {
	FuelCapacityGal float64 `json:"fuel_capacity_gal"`
	CurrentFuelGal  float64 `json:"current_fuel_gal"`
	MPG             float64 `json:"mpg"`
}

var (
	ErrVehicleFuelRange  = errors.New("current_fuel must be within [0, fuel_capacity]")
	ErrVehicleBadMPG     = errors.New("mpg must be positive")
	ErrVehicleBadCapacity = errors.New("fuel_capacity must be positive")
)

// Validate enforces the vehicle state invariants.
func (v VehicleState) Validate() error {
	if v.FuelCapacityGal <= 0 {
		return ErrVehicleBadCapacity
	}
	if v.CurrentFuelGal < 0 || v.CurrentFuelGal > v.FuelCapacityGal {
		return ErrVehicleFuelRange
	}
	if v.MPG <= 0 {
		return ErrVehicleBadMPG
	}
	return nil
}

// Refilled returns the vehicle state after a full refill to capacity.
func (v VehicleState) Refilled() VehicleState {
	v.CurrentFuelGal = v.FuelCapacityGal
	return v
}

// Consume returns the vehicle state after burning fuel for the given
// distance at the vehicle's mpg.
func (v VehicleState) Consume(distanceMiles float64) VehicleState {
	v.CurrentFuelGal -= distanceMiles / v.MPG
	if v.CurrentFuelGal < 0 {
		v.CurrentFuelGal = 0
	}
	return v
}

// GallonsNeeded is the fuel required to cover distanceMiles.
func (v VehicleState) GallonsNeeded(distanceMiles float64) float64 {
	return distanceMiles / v.MPG
}
