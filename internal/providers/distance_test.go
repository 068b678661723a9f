package providers

import (
	"context"
	"testing"

	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineDistanceProvider_ZeroDistanceForSamePoint(t *testing.T) {
	p := NewHaversineDistanceProvider(55, 50, 60, 30)
	omaha := domain.Stop{ID: "a", Lat: 41.2565, Lon: -95.9345}

	miles, err := p.Distance(context.Background(), omaha, omaha)
	require.NoError(t, err)
	assert.InDelta(t, 0, miles, 1e-9)
}

func TestHaversineDistanceProvider_KnownPair(t *testing.T) {
	p := NewHaversineDistanceProvider(55, 50, 60, 30)
	omaha := domain.Stop{ID: "a", Lat: 41.2565, Lon: -95.9345}
	denver := domain.Stop{ID: "b", Lat: 39.7392, Lon: -104.9903}

	miles, err := p.Distance(context.Background(), omaha, denver)
	require.NoError(t, err)
	assert.Greater(t, miles, 400.0)
	assert.Less(t, miles, 700.0)
}

func TestHaversineDistanceProvider_DriveTimeByRoadClass(t *testing.T) {
	p := NewHaversineDistanceProvider(55, 50, 60, 30)

	highway, err := p.DriveTime(context.Background(), 100, RoadHighway)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, highway, 1e-9)

	interstate, err := p.DriveTime(context.Background(), 120, RoadInterstate)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, interstate, 1e-9)

	unspecified, err := p.DriveTime(context.Background(), 55, RoadClass(""))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, unspecified, 1e-9)
}

func TestBuildMatrix_CoversEveryOrderedPair(t *testing.T) {
	p := NewHaversineDistanceProvider(55, 50, 60, 30)
	stops := []domain.Stop{
		{ID: "o", Lat: 41.2565, Lon: -95.9345},
		{ID: "b", Lat: 39.7392, Lon: -104.9903},
		{ID: "c", Lat: 34.0522, Lon: -118.2437},
	}

	m := BuildMatrix(context.Background(), p, stops)

	for _, a := range stops {
		for _, b := range stops {
			d, ok := m.Get(a.ID, b.ID)
			require.True(t, ok, "missing pair %s->%s", a.ID, b.ID)
			if a.ID == b.ID {
				assert.Zero(t, d)
			} else {
				assert.Greater(t, d, 0.0)
			}
		}
	}
}

func TestStaticRestAreaProvider_FindAlongRouteReturnsNearestStop(t *testing.T) {
	p := NewStaticRestAreaProvider(nil)
	a := domain.Stop{ID: "a", Lat: 41.2565, Lon: -95.9345}
	b := domain.Stop{ID: "b", Lat: 41.1234, Lon: -96.1234}

	stop, err := p.FindAlongRoute(context.Background(), a, b)
	require.NoError(t, err)
	require.NotNil(t, stop)
	assert.NotEmpty(t, stop.ID)
}

func TestStaticFuelStopProvider_OptimizePicksCheapestInRadius(t *testing.T) {
	p := NewStaticFuelStopProvider(30, nil)
	near := domain.Stop{ID: "from", Lat: 41.2500, Lon: -95.9000}

	result, err := p.Optimize(context.Background(), near, 20, 200, 6.5)
	require.NoError(t, err)
	require.NotNil(t, result.Station)
	assert.Equal(t, 180.0, result.GallonsNeeded)
	assert.Greater(t, result.EstimatedCost, 0.0)
}

func TestStaticFuelStopProvider_NoStationInRadius(t *testing.T) {
	p := NewStaticFuelStopProvider(5, nil)
	farAway := domain.Stop{ID: "from", Lat: 0, Lon: 0}

	result, err := p.Optimize(context.Background(), farAway, 10, 100, 6.5)
	require.NoError(t, err)
	assert.Nil(t, result.Station)
	assert.Equal(t, 0.0, result.EstimatedCost)
}
