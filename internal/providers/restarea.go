package providers

import (
	"context"
	"math"

	"github.com/saan-system/routeplanner/internal/domain"
)

// RestAreaProvider locates truck stops and service areas suitable for
// a full rest.
type RestAreaProvider interface {
	// FindAlongRoute returns a rest stop near the midpoint of a->b, or
	// nil if none is known.
	FindAlongRoute(ctx context.Context, a, b domain.Stop) (*domain.Stop, error)
	// FindNear returns every known rest stop within radiusMi of
	// (lat, lon).
	FindNear(ctx context.Context, lat, lon, radiusMi float64) ([]domain.Stop, error)
}

// StaticRestAreaProvider serves a small hardcoded catalog of major
// truck stops, standing in for a real truck-stop API integration.
type StaticRestAreaProvider struct {
	stops []domain.Stop
}

// NewStaticRestAreaProvider builds a provider over a fixed set of
// truck-stop locations. Passing nil uses a small built-in sample set.
func NewStaticRestAreaProvider(stops []domain.Stop) *StaticRestAreaProvider {
	if stops == nil {
		stops = defaultTruckStops()
	}
	return &StaticRestAreaProvider{stops: stops}
}

func defaultTruckStops() []domain.Stop {
	return []domain.Stop{
		{ID: "ts_i80_exit_123", Name: "Pilot Travel Center - I-80 Exit 123", Lat: 41.2565, Lon: -95.9345, Kind: domain.StopTruckStop},
		{ID: "ts_i80_exit_145", Name: "Love's Travel Stop - I-80 Exit 145", Lat: 41.1234, Lon: -96.1234, Kind: domain.StopTruckStop},
		{ID: "ts_i5_exit_200", Name: "TA Travel Center - I-5 Exit 200", Lat: 34.0522, Lon: -118.2437, Kind: domain.StopTruckStop},
		{ID: "ts_i95_exit_50", Name: "Petro Stopping Center - I-95 Exit 50", Lat: 39.7392, Lon: -104.9903, Kind: domain.StopServiceArea},
	}
}

// FindAlongRoute returns the catalog stop nearest the midpoint of a->b.
func (p *StaticRestAreaProvider) FindAlongRoute(_ context.Context, a, b domain.Stop) (*domain.Stop, error) {
	if len(p.stops) == 0 {
		return nil, nil
	}
	midLat := (a.Lat + b.Lat) / 2
	midLon := (a.Lon + b.Lon) / 2

	best := p.stops[0]
	bestDist := haversineMiles(midLat, midLon, best.Lat, best.Lon)
	for _, s := range p.stops[1:] {
		d := haversineMiles(midLat, midLon, s.Lat, s.Lon)
		if d < bestDist {
			best, bestDist = s, d
		}
	}
	found := best
	return &found, nil
}

// FindNear returns every catalog stop within radiusMi of (lat, lon).
func (p *StaticRestAreaProvider) FindNear(_ context.Context, lat, lon, radiusMi float64) ([]domain.Stop, error) {
	var out []domain.Stop
	for _, s := range p.stops {
		if haversineMiles(lat, lon, s.Lat, s.Lon) <= math.Abs(radiusMi) {
			out = append(out, s)
		}
	}
	return out, nil
}
