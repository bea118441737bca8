package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goMFA/store"
)

const (
	selectQuery = `SELECT value FROM mfa_state WHERE principal_id = \$1 AND kind = \$2`
	upsertQuery = `INSERT INTO mfa_state \(principal_id,kind,value,updated_at\) VALUES \(\$1,\$2,\$3,\$4\) ON CONFLICT \(principal_id, kind\) DO UPDATE`
	deleteQuery = `DELETE FROM mfa_state WHERE principal_id = \$1 AND kind = \$2`
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := New(db, Postgres)
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, Postgres)
	assert.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = New(db, Dialect("mysql"))
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

func TestGet(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(selectQuery).
		WithArgs("u1", "factors").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"v":1}`)))

	got, err := s.Get(ctx, "u1", store.KindFactors)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(selectQuery).
		WithArgs("u1", "lockout").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := s.Get(context.Background(), "u1", store.KindLockout)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWrapsDriverErrors(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(selectQuery).
		WithArgs("u1", "factors").
		WillReturnError(errors.New("connection refused"))

	_, err := s.Get(context.Background(), "u1", store.KindFactors)
	assert.ErrorIs(t, err, ErrBackend)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUpserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(upsertQuery).
		WithArgs("u1", "pendingChallenge", []byte("doc"), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "u1", store.KindPendingChallenge, []byte("doc")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRetriesTransientErrors(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(upsertQuery).
		WithArgs("u1", "factors", []byte("doc"), fixedNow).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	mock.ExpectExec(upsertQuery).
		WithArgs("u1", "factors", []byte("doc"), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "u1", store.KindFactors, []byte("doc")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDoesNotRetryPermanentErrors(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(upsertQuery).
		WithArgs("u1", "factors", []byte("doc"), fixedNow).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable})

	err := s.Set(context.Background(), "u1", store.KindFactors, []byte("doc"))
	assert.ErrorIs(t, err, ErrBackend)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(deleteQuery).
		WithArgs("u1", "trustedDevices").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), "u1", store.KindTrustedDevices))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidKindIsRejectedBeforeQuery(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.Get(context.Background(), "u1", store.Kind("sessions"))
	assert.ErrorIs(t, err, store.ErrInvalidKind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdvisoryLock(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`SELECT pg_advisory_lock\(hashtext\(\$1\)\)`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(hashtext\(\$1\)\)`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	unlock, err := s.Lock(context.Background(), "u1")
	require.NoError(t, err)
	unlock()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&pgconn.PgError{Code: pgerrcode.DeadlockDetected}))
	assert.True(t, Retryable(&pgconn.PgError{Code: pgerrcode.CannotConnectNow}))
	assert.False(t, Retryable(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	assert.False(t, Retryable(errors.New("plain")))
	assert.False(t, Retryable(nil))
}

func TestMigrateNilDB(t *testing.T) {
	err := Migrate(context.Background(), nil, SQLite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is nil")
}

func TestSQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, SQLite, filepath.Join(t.TempDir(), "mfa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db, SQLite))
	// Migrations are idempotent.
	require.NoError(t, Migrate(ctx, db, SQLite))

	s, err := New(db, SQLite)
	require.NoError(t, err)

	_, err = s.Get(ctx, "u1", store.KindFactors)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "u1", store.KindFactors, []byte("first")))
	require.NoError(t, s.Set(ctx, "u1", store.KindFactors, []byte("second")))
	require.NoError(t, s.Set(ctx, "u2", store.KindFactors, []byte("other")))

	got, err := s.Get(ctx, "u1", store.KindFactors)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	var rows int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM mfa_state").Scan(&rows))
	assert.Equal(t, 2, rows)

	unlock, err := s.Lock(ctx, "u1")
	require.NoError(t, err)
	unlock()

	require.NoError(t, s.Delete(ctx, "u1", store.KindFactors))
	_, err = s.Get(ctx, "u1", store.KindFactors)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err = s.Get(ctx, "u2", store.KindFactors)
	require.NoError(t, err)
	assert.Equal(t, "other", string(got))
}

func TestOpenUnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), Dialect("oracle"), "")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}
