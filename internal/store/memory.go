package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/planerr"
)

// MemoryStore is an in-process Store guarded by a single mutex, used
// in tests and by cmd/planner when no DATABASE_URL is configured. It
// upholds the single-active-plan-per-driver invariant the same way
// the Postgres store does: deactivate-then-activate inside one
// critical section.
type MemoryStore struct {
	mu    sync.Mutex
	plans map[string]*domain.RoutePlan
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{plans: make(map[string]*domain.RoutePlan)}
}

func (s *MemoryStore) CreatePlan(_ context.Context, plan *domain.RoutePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plan.PlanID == "" {
		plan.PlanID = uuid.NewString()
	}
	cp := *plan
	s.plans[plan.PlanID] = &cp
	return nil
}

func (s *MemoryStore) GetPlan(_ context.Context, planID string) (*domain.RoutePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return nil, planerr.New(planerr.StorePreconditionFailure, planID, "plan does not exist")
	}
	cp := *p
	cp.Segments = append([]domain.RouteSegment(nil), p.Segments...)
	return &cp, nil
}

// Activate sets planID active and deactivates every other plan owned
// by the same driver, inside the store's single mutex — the in-memory
// analog of the Postgres store's single transaction.
func (s *MemoryStore) Activate(_ context.Context, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.plans[planID]
	if !ok {
		return planerr.New(planerr.StorePreconditionFailure, planID, "activate: plan does not exist")
	}
	if err := target.Activate(); err != nil {
		return planerr.Wrap(planerr.StorePreconditionFailure, planID, "activate", err)
	}
	for id, p := range s.plans {
		if id != planID && p.DriverID == target.DriverID {
			p.IsActive = false
		}
	}
	return nil
}

func (s *MemoryStore) Complete(_ context.Context, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return planerr.New(planerr.StorePreconditionFailure, planID, "complete: plan does not exist")
	}
	if err := p.Complete(); err != nil {
		return planerr.Wrap(planerr.StorePreconditionFailure, planID, "complete", err)
	}
	return nil
}

func (s *MemoryStore) Cancel(_ context.Context, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return planerr.New(planerr.StorePreconditionFailure, planID, "cancel: plan does not exist")
	}
	if err := p.Cancel(); err != nil {
		return planerr.Wrap(planerr.StorePreconditionFailure, planID, "cancel", err)
	}
	return nil
}

func (s *MemoryStore) AppendSegment(_ context.Context, planID string, seg domain.RouteSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return planerr.New(planerr.StorePreconditionFailure, planID, "append_segment: plan does not exist")
	}
	if err := seg.Validate(); err != nil {
		return planerr.Wrap(planerr.InvalidInput, planID, "append_segment", err)
	}
	p.Segments = append(p.Segments, seg)
	return nil
}

func (s *MemoryStore) SetSegmentStatus(_ context.Context, planID string, sequenceOrder int, status domain.SegmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return planerr.New(planerr.StorePreconditionFailure, planID, "set_segment_status: plan does not exist")
	}
	for i, seg := range p.Segments {
		if seg.SequenceOrder == sequenceOrder {
			updated, err := seg.WithStatus(status)
			if err != nil {
				return planerr.Wrap(planerr.StorePreconditionFailure, planID, "set_segment_status", err)
			}
			p.Segments[i] = updated
			return nil
		}
	}
	return planerr.New(planerr.StorePreconditionFailure, planID, "set_segment_status: segment not found")
}

// SetVersion persists the post-replan version number set by the
// Dynamic Update Handler, mirroring SetSegmentStatus's lookup-then-
// mutate pattern.
func (s *MemoryStore) SetVersion(_ context.Context, planID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return planerr.New(planerr.StorePreconditionFailure, planID, "set_version: plan does not exist")
	}
	p.Version = version
	return nil
}

// SetSegmentRestRecommendationFeedback records a dispatcher's
// after-the-fact note on a rest segment's recommendation without
// re-running the Rest Optimization Engine.
func (s *MemoryStore) SetSegmentRestRecommendationFeedback(_ context.Context, planID string, sequenceOrder int, accepted *bool, actualAction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return planerr.New(planerr.StorePreconditionFailure, planID, "set_segment_rest_recommendation_feedback: plan does not exist")
	}
	for i, seg := range p.Segments {
		if seg.SequenceOrder != sequenceOrder {
			continue
		}
		if seg.Rest == nil || seg.Rest.Recommendation == nil {
			return planerr.New(planerr.StorePreconditionFailure, planID, "set_segment_rest_recommendation_feedback: segment has no rest recommendation")
		}
		rest := *seg.Rest
		rec := *rest.Recommendation
		rec.Accepted = accepted
		rec.ActualAction = actualAction
		rest.Recommendation = &rec
		seg.Rest = &rest
		p.Segments[i] = seg
		return nil
	}
	return planerr.New(planerr.StorePreconditionFailure, planID, "set_segment_rest_recommendation_feedback: segment not found")
}

func (s *MemoryStore) AppendUpdate(_ context.Context, _ domain.PlanUpdate) error {
	// PlanUpdate records are append-only audit trail entries, not
	// needed by any in-memory caller today; the Postgres store
	// persists them for real. Kept as a no-op so MemoryStore satisfies
	// Store without a parallel per-plan update log nothing reads back.
	return nil
}

func (s *MemoryStore) CurrentSegment(_ context.Context, planID string) (*domain.RouteSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return nil, planerr.New(planerr.StorePreconditionFailure, planID, "current_segment: plan does not exist")
	}
	for i := range p.Segments {
		if p.Segments[i].Status == domain.SegmentPlanned || p.Segments[i].Status == domain.SegmentInProgress {
			seg := p.Segments[i]
			return &seg, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) RemainingSegments(_ context.Context, planID string) ([]domain.RouteSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return nil, planerr.New(planerr.StorePreconditionFailure, planID, "remaining_segments: plan does not exist")
	}
	var out []domain.RouteSegment
	for _, seg := range p.Segments {
		if seg.Status == domain.SegmentPlanned || seg.Status == domain.SegmentInProgress {
			out = append(out, seg)
		}
	}
	return out, nil
}

func (s *MemoryStore) ActivePlanForDriver(_ context.Context, driverID string) (*domain.RoutePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.DriverID == driverID && p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}
