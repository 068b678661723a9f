package store

import (
	"context"
	"testing"
	"time"

	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/planerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftPlan(planID, driverID string) *domain.RoutePlan {
	return &domain.RoutePlan{
		PlanID:    planID,
		DriverID:  driverID,
		VehicleID: "veh-1",
		Version:   1,
		Status:    domain.PlanDraft,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestMemoryStore_CreateAndGetPlan_RoundTrips(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	plan := draftPlan("plan-1", "drv-1")
	require.NoError(t, s.CreatePlan(ctx, plan))

	got, err := s.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, "drv-1", got.DriverID)
	assert.Equal(t, domain.PlanDraft, got.Status)
}

func TestMemoryStore_GetPlan_MissingReturnsPreconditionFailure(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetPlan(ctx, "does-not-exist")
	require.Error(t, err)
	assert.True(t, planerr.Is(err, planerr.StorePreconditionFailure))
}

// TestMemoryStore_Activate_EnforcesSingleActivePlanPerDriver verifies
// that activating one plan deactivates every other plan owned by the
// same driver, while plans belonging to other drivers are untouched.
func TestMemoryStore_Activate_EnforcesSingleActivePlanPerDriver(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := draftPlan("plan-a1", "drv-1")
	second := draftPlan("plan-a2", "drv-1")
	other := draftPlan("plan-b1", "drv-2")
	require.NoError(t, s.CreatePlan(ctx, first))
	require.NoError(t, s.CreatePlan(ctx, second))
	require.NoError(t, s.CreatePlan(ctx, other))

	require.NoError(t, s.Activate(ctx, "plan-a1"))
	require.NoError(t, s.Activate(ctx, "plan-a2"))

	a1, err := s.GetPlan(ctx, "plan-a1")
	require.NoError(t, err)
	assert.False(t, a1.IsActive, "activating plan-a2 must deactivate plan-a1")

	a2, err := s.GetPlan(ctx, "plan-a2")
	require.NoError(t, err)
	assert.True(t, a2.IsActive)

	b1, err := s.GetPlan(ctx, "plan-b1")
	require.NoError(t, err)
	assert.False(t, b1.IsActive, "a driver's plans must not affect another driver's plans")
}

func TestMemoryStore_Activate_RejectsNonDraftPlan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	plan := draftPlan("plan-1", "drv-1")
	require.NoError(t, s.CreatePlan(ctx, plan))
	require.NoError(t, s.Activate(ctx, "plan-1"))

	err := s.Activate(ctx, "plan-1")
	require.Error(t, err)
	assert.True(t, planerr.Is(err, planerr.StorePreconditionFailure))
}

func TestMemoryStore_Complete_RequiresActivePlan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	plan := draftPlan("plan-1", "drv-1")
	require.NoError(t, s.CreatePlan(ctx, plan))

	err := s.Complete(ctx, "plan-1")
	require.Error(t, err, "completing a draft plan must fail")

	require.NoError(t, s.Activate(ctx, "plan-1"))
	require.NoError(t, s.Complete(ctx, "plan-1"))

	got, err := s.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanCompleted, got.Status)
	assert.False(t, got.IsActive)
}

func TestMemoryStore_Cancel_RejectsTerminalPlan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	plan := draftPlan("plan-1", "drv-1")
	require.NoError(t, s.CreatePlan(ctx, plan))
	require.NoError(t, s.Cancel(ctx, "plan-1"))

	err := s.Cancel(ctx, "plan-1")
	require.Error(t, err)
}

func TestMemoryStore_SegmentLifecycle_AppendAndStatusTransition(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	plan := draftPlan("plan-1", "drv-1")
	require.NoError(t, s.CreatePlan(ctx, plan))

	seg := domain.RouteSegment{
		SequenceOrder: 1,
		Kind:          domain.SegmentDrive,
		Status:        domain.SegmentPlanned,
		Drive: &domain.DriveDetail{
			From:          "origin",
			To:            "dest",
			DistanceMiles: 100,
			DriveTimeH:    2,
		},
		EstimatedDeparture: time.Now(),
		EstimatedArrival:   time.Now().Add(2 * time.Hour),
	}
	require.NoError(t, s.AppendSegment(ctx, "plan-1", seg))

	remaining, err := s.RemainingSegments(ctx, "plan-1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)

	require.NoError(t, s.SetSegmentStatus(ctx, "plan-1", 1, domain.SegmentCancelled))

	remaining, err = s.RemainingSegments(ctx, "plan-1")
	require.NoError(t, err)
	assert.Len(t, remaining, 0, "cancelled segments are no longer remaining")
}

func TestMemoryStore_ActivePlanForDriver_ReturnsNilWhenNoneActive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	plan := draftPlan("plan-1", "drv-1")
	require.NoError(t, s.CreatePlan(ctx, plan))

	got, err := s.ActivePlanForDriver(ctx, "drv-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Activate(ctx, "plan-1"))
	got, err = s.ActivePlanForDriver(ctx, "drv-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "plan-1", got.PlanID)
}

func TestMemoryStore_SetVersion_PersistsAcrossGetPlan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	plan := draftPlan("plan-1", "drv-1")
	require.NoError(t, s.CreatePlan(ctx, plan))

	require.NoError(t, s.SetVersion(ctx, "plan-1", 3))

	got, err := s.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
}

func TestMemoryStore_SetVersion_MissingPlanReturnsPreconditionFailure(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.SetVersion(ctx, "does-not-exist", 2)
	require.Error(t, err)
	assert.True(t, planerr.Is(err, planerr.StorePreconditionFailure))
}

func TestMemoryStore_SetSegmentRestRecommendationFeedback_UpdatesAcceptance(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	plan := draftPlan("plan-1", "drv-1")
	require.NoError(t, s.CreatePlan(ctx, plan))

	seg := domain.RouteSegment{
		SequenceOrder: 1,
		Kind:          domain.SegmentRest,
		Status:        domain.SegmentPlanned,
		Rest: &domain.RestDetail{
			RestType:  domain.RestFullRest,
			DurationH: 10,
			Reason:    "drive-limit reached before next stop",
			Recommendation: &domain.RestRecommendation{
				Recommendation: string(domain.RestFullRest),
				Confidence:     75,
			},
		},
		EstimatedDeparture: time.Now(),
		EstimatedArrival:   time.Now().Add(10 * time.Hour),
	}
	require.NoError(t, s.AppendSegment(ctx, "plan-1", seg))

	accepted := true
	require.NoError(t, s.SetSegmentRestRecommendationFeedback(ctx, "plan-1", 1, &accepted, "took the full rest as recommended"))

	got, err := s.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	require.Len(t, got.Segments, 1)
	require.NotNil(t, got.Segments[0].Rest.Recommendation.Accepted)
	assert.True(t, *got.Segments[0].Rest.Recommendation.Accepted)
	assert.Equal(t, "took the full rest as recommended", got.Segments[0].Rest.Recommendation.ActualAction)
}

func TestMemoryStore_SetSegmentRestRecommendationFeedback_NoRecommendationReturnsError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	plan := draftPlan("plan-1", "drv-1")
	require.NoError(t, s.CreatePlan(ctx, plan))

	seg := domain.RouteSegment{
		SequenceOrder:      1,
		Kind:               domain.SegmentDrive,
		Status:             domain.SegmentPlanned,
		Drive:              &domain.DriveDetail{From: "o", To: "d", DistanceMiles: 10, DriveTimeH: 0.5},
		EstimatedDeparture: time.Now(),
		EstimatedArrival:   time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, s.AppendSegment(ctx, "plan-1", seg))

	accepted := false
	err := s.SetSegmentRestRecommendationFeedback(ctx, "plan-1", 1, &accepted, "n/a")
	require.Error(t, err)
	assert.True(t, planerr.Is(err, planerr.StorePreconditionFailure))
}
