package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/planerr"
	"github.com/saan-system/routeplanner/pkg/logger"
)

// PostgresStore is the sqlx/lib-pq backed Store: one struct wrapping
// *sqlx.DB, JSON columns for the tagged-union fields, and
// transactional multi-statement writes via BeginTxx/Commit/Rollback.
type PostgresStore struct {
	db  *sqlx.DB
	log logger.Logger
}

// NewPostgresStore wraps an already-opened sqlx.DB; the connection
// lives in cmd/planner/main.go and repositories just receive it.
func NewPostgresStore(db *sqlx.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log}
}

type planRow struct {
	PlanID               string         `db:"plan_id"`
	DriverID             string         `db:"driver_id"`
	VehicleID            string         `db:"vehicle_id"`
	LoadID               sql.NullString `db:"load_id"`
	Version              int            `db:"version"`
	IsActive             bool           `db:"is_active"`
	Status               string         `db:"status"`
	TotalsJSON           []byte         `db:"totals"`
	IsFeasible           bool           `db:"is_feasible"`
	FeasibilityIssues    []byte         `db:"feasibility_issues"`
	ComplianceReportJSON []byte         `db:"compliance_report"`
	OptimizationPriority string         `db:"optimization_priority"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

// CreatePlan inserts plan and its segments inside one transaction.
func (s *PostgresStore) CreatePlan(ctx context.Context, plan *domain.RoutePlan) error {
	if plan.PlanID == "" {
		plan.PlanID = uuid.NewString()
	}
	now := time.Now()
	plan.CreatedAt, plan.UpdatedAt = now, now

	totalsJSON, _ := json.Marshal(plan.Totals)
	issuesJSON, _ := json.Marshal(plan.FeasibilityIssues)
	complianceJSON, _ := json.Marshal(plan.ComplianceReport)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, plan.PlanID, "create_plan: begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (
			plan_id, driver_id, vehicle_id, load_id, version, is_active, status,
			totals, is_feasible, feasibility_issues, compliance_report,
			optimization_priority, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		plan.PlanID, plan.DriverID, plan.VehicleID, nullIfEmpty(plan.LoadID), plan.Version, plan.IsActive, plan.Status,
		totalsJSON, plan.IsFeasible, issuesJSON, complianceJSON,
		plan.OptimizationPriority, plan.CreatedAt, plan.UpdatedAt)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, plan.PlanID, "create_plan: insert plan", err)
	}

	for _, seg := range plan.Segments {
		if err := insertSegment(ctx, tx, plan.PlanID, seg); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return planerr.Wrap(planerr.Fatal, plan.PlanID, "create_plan: commit", err)
	}
	s.log.WithPlanID(plan.PlanID).Info("plan created")
	return nil
}

func insertSegment(ctx context.Context, tx *sqlx.Tx, planID string, seg domain.RouteSegment) error {
	driveJSON, _ := json.Marshal(seg.Drive)
	restJSON, _ := json.Marshal(seg.Rest)
	fuelJSON, _ := json.Marshal(seg.Fuel)
	dockJSON, _ := json.Marshal(seg.Dock)
	hosJSON, _ := json.Marshal(seg.HOSStateAfter)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO segments (
			plan_id, sequence_order, kind, drive, rest, fuel, dock,
			hos_state_after, estimated_arrival, estimated_departure, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		planID, seg.SequenceOrder, seg.Kind, driveJSON, restJSON, fuelJSON, dockJSON,
		hosJSON, seg.EstimatedArrival, seg.EstimatedDeparture, seg.Status)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "insert segment", err)
	}
	return nil
}

// GetPlan loads a plan with its segments eagerly.
func (s *PostgresStore) GetPlan(ctx context.Context, planID string) (*domain.RoutePlan, error) {
	var row planRow
	err := s.db.QueryRowxContext(ctx, `
		SELECT plan_id, driver_id, vehicle_id, load_id, version, is_active, status,
			totals, is_feasible, feasibility_issues, compliance_report,
			optimization_priority, created_at, updated_at
		FROM plans WHERE plan_id = $1`, planID).StructScan(&row)
	if err == sql.ErrNoRows {
		return nil, planerr.New(planerr.StorePreconditionFailure, planID, "get_plan: plan does not exist")
	}
	if err != nil {
		return nil, planerr.Wrap(planerr.Fatal, planID, "get_plan", err)
	}

	plan := rowToPlan(row)

	segRows, err := s.db.QueryxContext(ctx, `
		SELECT sequence_order, kind, drive, rest, fuel, dock, hos_state_after,
			estimated_arrival, estimated_departure, status
		FROM segments WHERE plan_id = $1 ORDER BY sequence_order`, planID)
	if err != nil {
		return nil, planerr.Wrap(planerr.Fatal, planID, "get_plan: load segments", err)
	}
	defer segRows.Close()

	for segRows.Next() {
		seg, err := scanSegment(segRows)
		if err != nil {
			return nil, planerr.Wrap(planerr.Fatal, planID, "get_plan: scan segment", err)
		}
		plan.Segments = append(plan.Segments, seg)
	}

	return &plan, nil
}

func scanSegment(rows *sqlx.Rows) (domain.RouteSegment, error) {
	var (
		seg                              domain.RouteSegment
		kind                             string
		driveJSON, restJSON              []byte
		fuelJSON, dockJSON, hosJSON       []byte
		status                           string
	)
	if err := rows.Scan(&seg.SequenceOrder, &kind, &driveJSON, &restJSON, &fuelJSON, &dockJSON,
		&hosJSON, &seg.EstimatedArrival, &seg.EstimatedDeparture, &status); err != nil {
		return seg, err
	}
	seg.Kind = domain.SegmentKind(kind)
	seg.Status = domain.SegmentStatus(status)
	unmarshalIfPresent(driveJSON, &seg.Drive)
	unmarshalIfPresent(restJSON, &seg.Rest)
	unmarshalIfPresent(fuelJSON, &seg.Fuel)
	unmarshalIfPresent(dockJSON, &seg.Dock)
	json.Unmarshal(hosJSON, &seg.HOSStateAfter)
	return seg, nil
}

func unmarshalIfPresent[T any](raw []byte, dst **T) {
	if len(raw) == 0 {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = &v
	}
}

func rowToPlan(row planRow) domain.RoutePlan {
	plan := domain.RoutePlan{
		PlanID:               row.PlanID,
		DriverID:             row.DriverID,
		VehicleID:            row.VehicleID,
		LoadID:               row.LoadID.String,
		Version:              row.Version,
		IsActive:             row.IsActive,
		Status:               domain.PlanStatus(row.Status),
		IsFeasible:           row.IsFeasible,
		OptimizationPriority: domain.OptimizationPriority(row.OptimizationPriority),
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
	json.Unmarshal(row.TotalsJSON, &plan.Totals)
	json.Unmarshal(row.FeasibilityIssues, &plan.FeasibilityIssues)
	json.Unmarshal(row.ComplianceReportJSON, &plan.ComplianceReport)
	return plan
}

// Activate atomically activates planID and deactivates every sibling
// plan for the same driver, inside one transaction, upholding the
// single-active-plan-per-driver invariant.
func (s *PostgresStore) Activate(ctx context.Context, planID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "activate: begin transaction", err)
	}
	defer tx.Rollback()

	var driverID string
	var status string
	err = tx.QueryRowxContext(ctx, `SELECT driver_id, status FROM plans WHERE plan_id = $1 FOR UPDATE`, planID).Scan(&driverID, &status)
	if err == sql.ErrNoRows {
		return planerr.New(planerr.StorePreconditionFailure, planID, "activate: plan does not exist")
	}
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "activate: lock plan", err)
	}
	if status != string(domain.PlanDraft) {
		return planerr.New(planerr.StorePreconditionFailure, planID, "activate: plan is not in draft status")
	}

	if _, err := tx.ExecContext(ctx, `UPDATE plans SET is_active = false WHERE driver_id = $1 AND plan_id != $2`, driverID, planID); err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "activate: deactivate siblings", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE plans SET is_active = true, status = $1, updated_at = $2 WHERE plan_id = $3`,
		domain.PlanActive, time.Now(), planID); err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "activate: activate target", err)
	}

	if err := tx.Commit(); err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "activate: commit", err)
	}
	return nil
}

func (s *PostgresStore) Complete(ctx context.Context, planID string) error {
	return s.setStatus(ctx, planID, domain.PlanActive, domain.PlanCompleted)
}

func (s *PostgresStore) Cancel(ctx context.Context, planID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE plans SET status = $1, is_active = false, updated_at = $2
		WHERE plan_id = $3 AND status NOT IN ($4, $5)`,
		domain.PlanCancelled, time.Now(), planID, domain.PlanCompleted, domain.PlanCancelled)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "cancel", err)
	}
	return requireRowsAffected(res, planID, "cancel: plan is already terminal or does not exist")
}

func (s *PostgresStore) setStatus(ctx context.Context, planID string, from, to domain.PlanStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE plans SET status = $1, is_active = $2, updated_at = $3
		WHERE plan_id = $4 AND status = $5`,
		to, to == domain.PlanActive, time.Now(), planID, from)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "set_status", err)
	}
	return requireRowsAffected(res, planID, fmt.Sprintf("set_status: plan is not in %s status", from))
}

func requireRowsAffected(res sql.Result, planID, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "rows_affected", err)
	}
	if n == 0 {
		return planerr.New(planerr.StorePreconditionFailure, planID, msg)
	}
	return nil
}

func (s *PostgresStore) AppendSegment(ctx context.Context, planID string, seg domain.RouteSegment) error {
	if err := seg.Validate(); err != nil {
		return planerr.Wrap(planerr.InvalidInput, planID, "append_segment", err)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "append_segment: begin transaction", err)
	}
	defer tx.Rollback()
	if err := insertSegment(ctx, tx, planID, seg); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "append_segment: commit", err)
	}
	return nil
}

func (s *PostgresStore) SetSegmentStatus(ctx context.Context, planID string, sequenceOrder int, status domain.SegmentStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE segments SET status = $1 WHERE plan_id = $2 AND sequence_order = $3`,
		status, planID, sequenceOrder)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "set_segment_status", err)
	}
	return requireRowsAffected(res, planID, "set_segment_status: segment not found")
}

func (s *PostgresStore) SetVersion(ctx context.Context, planID string, version int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE plans SET version = $1, updated_at = $2 WHERE plan_id = $3`,
		version, time.Now(), planID)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "set_version", err)
	}
	return requireRowsAffected(res, planID, "set_version: plan does not exist")
}

// SetSegmentRestRecommendationFeedback reads the segment's rest JSONB
// column, mutates the embedded recommendation's acceptance fields, and
// writes it back: there is no separate recommendation table to target
// with a plain column UPDATE.
func (s *PostgresStore) SetSegmentRestRecommendationFeedback(ctx context.Context, planID string, sequenceOrder int, accepted *bool, actualAction string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "set_segment_rest_recommendation_feedback: begin transaction", err)
	}
	defer tx.Rollback()

	var restJSON []byte
	err = tx.QueryRowxContext(ctx, `
		SELECT rest FROM segments WHERE plan_id = $1 AND sequence_order = $2 FOR UPDATE`,
		planID, sequenceOrder).Scan(&restJSON)
	if err == sql.ErrNoRows {
		return planerr.New(planerr.StorePreconditionFailure, planID, "set_segment_rest_recommendation_feedback: segment not found")
	}
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "set_segment_rest_recommendation_feedback: load segment", err)
	}

	var rest domain.RestDetail
	if len(restJSON) == 0 {
		return planerr.New(planerr.StorePreconditionFailure, planID, "set_segment_rest_recommendation_feedback: segment is not a rest segment")
	}
	if err := json.Unmarshal(restJSON, &rest); err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "set_segment_rest_recommendation_feedback: decode rest", err)
	}
	if rest.Recommendation == nil {
		return planerr.New(planerr.StorePreconditionFailure, planID, "set_segment_rest_recommendation_feedback: segment has no rest recommendation")
	}
	rest.Recommendation.Accepted = accepted
	rest.Recommendation.ActualAction = actualAction

	updatedJSON, err := json.Marshal(rest)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "set_segment_rest_recommendation_feedback: encode rest", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE segments SET rest = $1 WHERE plan_id = $2 AND sequence_order = $3`,
		updatedJSON, planID, sequenceOrder); err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "set_segment_rest_recommendation_feedback: update", err)
	}

	if err := tx.Commit(); err != nil {
		return planerr.Wrap(planerr.Fatal, planID, "set_segment_rest_recommendation_feedback: commit", err)
	}
	return nil
}

func (s *PostgresStore) AppendUpdate(ctx context.Context, update domain.PlanUpdate) error {
	if update.UpdateID == "" {
		update.UpdateID = uuid.NewString()
	}
	triggerJSON, _ := json.Marshal(update.TriggerData)
	impactJSON, _ := json.Marshal(update.ImpactSummary)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO updates (
			update_id, plan_id, type, triggered_at, triggered_by, trigger_data,
			replan_triggered, replan_reason, previous_version, new_version, impact_summary
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		update.UpdateID, update.PlanID, update.Type, update.TriggeredAt, update.TriggeredBy, triggerJSON,
		update.ReplanTriggered, update.ReplanReason, update.PreviousVersion, update.NewVersion, impactJSON)
	if err != nil {
		return planerr.Wrap(planerr.Fatal, update.PlanID, "append_update", err)
	}
	return nil
}

func (s *PostgresStore) CurrentSegment(ctx context.Context, planID string) (*domain.RouteSegment, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT sequence_order, kind, drive, rest, fuel, dock, hos_state_after,
			estimated_arrival, estimated_departure, status
		FROM segments
		WHERE plan_id = $1 AND status IN ($2, $3)
		ORDER BY sequence_order LIMIT 1`,
		planID, domain.SegmentPlanned, domain.SegmentInProgress)

	var seg domain.RouteSegment
	var kind, status string
	var driveJSON, restJSON, fuelJSON, dockJSON, hosJSON []byte
	err := row.Scan(&seg.SequenceOrder, &kind, &driveJSON, &restJSON, &fuelJSON, &dockJSON,
		&hosJSON, &seg.EstimatedArrival, &seg.EstimatedDeparture, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, planerr.Wrap(planerr.Fatal, planID, "current_segment", err)
	}
	seg.Kind = domain.SegmentKind(kind)
	seg.Status = domain.SegmentStatus(status)
	unmarshalIfPresent(driveJSON, &seg.Drive)
	unmarshalIfPresent(restJSON, &seg.Rest)
	unmarshalIfPresent(fuelJSON, &seg.Fuel)
	unmarshalIfPresent(dockJSON, &seg.Dock)
	json.Unmarshal(hosJSON, &seg.HOSStateAfter)
	return &seg, nil
}

func (s *PostgresStore) RemainingSegments(ctx context.Context, planID string) ([]domain.RouteSegment, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT sequence_order, kind, drive, rest, fuel, dock, hos_state_after,
			estimated_arrival, estimated_departure, status
		FROM segments
		WHERE plan_id = $1 AND status IN ($2, $3)
		ORDER BY sequence_order`,
		planID, domain.SegmentPlanned, domain.SegmentInProgress)
	if err != nil {
		return nil, planerr.Wrap(planerr.Fatal, planID, "remaining_segments", err)
	}
	defer rows.Close()

	var out []domain.RouteSegment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, planerr.Wrap(planerr.Fatal, planID, "remaining_segments: scan", err)
		}
		out = append(out, seg)
	}
	return out, nil
}

func (s *PostgresStore) ActivePlanForDriver(ctx context.Context, driverID string) (*domain.RoutePlan, error) {
	var planID string
	err := s.db.QueryRowxContext(ctx, `SELECT plan_id FROM plans WHERE driver_id = $1 AND is_active = true`, driverID).Scan(&planID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, planerr.Wrap(planerr.Fatal, "", "active_plan_for_driver", err)
	}
	return s.GetPlan(ctx, planID)
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
