package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/planerr"
	"github.com/saan-system/routeplanner/pkg/logger"
	"github.com/stretchr/testify/require"
)

// newMockStore wires a PostgresStore against a sqlmock connection, the
// driver-level analog of MemoryStore's in-process tests: it exercises
// the SQL this store issues without requiring a live Postgres.
func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewPostgresStore(sqlxDB, logger.NewLogger("error", "text")), mock
}

func TestPostgresStore_GetPlan_NotFoundReturnsPreconditionFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT plan_id, driver_id")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetPlan(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, planerr.Is(err, planerr.StorePreconditionFailure))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Cancel_Success(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE plans SET status")).
		WithArgs(domain.PlanCancelled, sqlmock.AnyArg(), "plan-1", domain.PlanCompleted, domain.PlanCancelled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Cancel(context.Background(), "plan-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Cancel_AlreadyTerminalReturnsPreconditionFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE plans SET status")).
		WithArgs(domain.PlanCancelled, sqlmock.AnyArg(), "plan-1", domain.PlanCompleted, domain.PlanCancelled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Cancel(context.Background(), "plan-1")
	require.Error(t, err)
	require.True(t, planerr.Is(err, planerr.StorePreconditionFailure))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetSegmentStatus_NotFoundReturnsPreconditionFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE segments SET status")).
		WithArgs(domain.SegmentCancelled, "plan-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetSegmentStatus(context.Background(), "plan-1", 3, domain.SegmentCancelled)
	require.Error(t, err)
	require.True(t, planerr.Is(err, planerr.StorePreconditionFailure))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNullIfEmpty(t *testing.T) {
	empty := nullIfEmpty("")
	require.False(t, empty.Valid)

	set := nullIfEmpty("load-1")
	require.True(t, set.Valid)
	require.Equal(t, "load-1", set.String)
}


