// Package store defines the Plan Store contract and ships two
// implementations: an in-memory store for tests and single-process
// use, and a Postgres store (postgres.go) built on jmoiron/sqlx +
// lib/pq.
package store

import (
	"context"
	"errors"

	"github.com/saan-system/routeplanner/internal/domain"
)

// Store is the logical Plan Store interface consumed by the Planning
// Engine and Dynamic Update Handler.
type Store interface {
	CreatePlan(ctx context.Context, plan *domain.RoutePlan) error
	GetPlan(ctx context.Context, planID string) (*domain.RoutePlan, error)

	// Activate atomically sets plan_id active and every other plan for
	// the same driver inactive, upholding the single-active-plan-per-
	// driver invariant.
	Activate(ctx context.Context, planID string) error
	Complete(ctx context.Context, planID string) error
	Cancel(ctx context.Context, planID string) error

	AppendSegment(ctx context.Context, planID string, seg domain.RouteSegment) error
	SetSegmentStatus(ctx context.Context, planID string, sequenceOrder int, status domain.SegmentStatus) error

	// SetVersion persists a plan's post-replan version number so a
	// subsequent GetPlan reflects it; the Dynamic Update Handler calls
	// this alongside AppendUpdate inside the same replan, never as a
	// standalone write.
	SetVersion(ctx context.Context, planID string, version int) error

	// SetSegmentRestRecommendationFeedback records whether the driver
	// accepted the rest segment's recommendation and what they did
	// instead, without re-running the Rest Optimization Engine.
	SetSegmentRestRecommendationFeedback(ctx context.Context, planID string, sequenceOrder int, accepted *bool, actualAction string) error

	AppendUpdate(ctx context.Context, update domain.PlanUpdate) error

	CurrentSegment(ctx context.Context, planID string) (*domain.RouteSegment, error)
	RemainingSegments(ctx context.Context, planID string) ([]domain.RouteSegment, error)

	// ActivePlanForDriver returns the driver's single active plan, if
	// any, per the store's single-active-plan-per-driver invariant.
	ActivePlanForDriver(ctx context.Context, driverID string) (*domain.RoutePlan, error)
}

// QueryFilters narrows a plan search by driver, status, and page.
type QueryFilters struct {
	DriverID string
	Status   domain.PlanStatus
	Limit    int
	Offset   int
}

var (
	ErrPlanNotFound    = errors.New("plan not found")
	ErrSegmentNotFound = errors.New("segment not found")
)
