// Package sqlstore implements store.Store on database/sql.
//
// Two dialects are supported: PostgreSQL through the pgx stdlib driver and
// SQLite through modernc.org/sqlite. All state lives in one table keyed by
// (principal_id, kind); writes are upserts. Apply the schema with [Migrate].
//
// On PostgreSQL the store also implements store.Locker with session-level
// advisory locks held on a dedicated connection.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/MrEthical07/goMFA/store"
)

// Dialect selects SQL flavour and driver.
type Dialect string

const (
	// Postgres uses the "pgx" driver.
	Postgres Dialect = "pgx"
	// SQLite uses the "sqlite" driver.
	SQLite Dialect = "sqlite"
)

const (
	defaultTable = "mfa_state"
	maxAttempts  = 3
)

var (
	// ErrBackend wraps driver errors.
	ErrBackend = errors.New("sqlstore: backend unavailable")
	// ErrUnknownDialect is returned for dialects other than Postgres and SQLite.
	ErrUnknownDialect = errors.New("sqlstore: unknown dialect")
)

// Store is a database/sql backed store.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	sb      sq.StatementBuilderType
	log     zerolog.Logger
	now     func() time.Time
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Locker = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithTable overrides the table name. Migrate always creates mfa_state.
func WithTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = name
		}
	}
}

// WithLogger sets the logger for retried and failed statements.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// Open opens and pings a database for dialect.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case Postgres, SQLite:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if dialect == SQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting database (ping): %w", err)
	}
	return db, nil
}

// New wraps db. The caller keeps ownership of db.
func New(db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: db is nil")
	}

	s := &Store{
		db:      db,
		dialect: dialect,
		table:   defaultTable,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	switch dialect {
	case Postgres:
		s.sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	case SQLite:
		s.sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, principalID string, kind store.Kind) ([]byte, error) {
	if !kind.Valid() {
		return nil, store.ErrInvalidKind
	}

	query, args, err := s.sb.
		Select("value").
		From(s.table).
		Where(sq.Eq{"principal_id": principalID}).
		Where(sq.Eq{"kind": string(kind)}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var value []byte
	err = s.retry(ctx, "get", func() error {
		return s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return value, nil
}

// Set implements store.Store as an upsert.
func (s *Store) Set(ctx context.Context, principalID string, kind store.Kind, value []byte) error {
	if !kind.Valid() {
		return store.ErrInvalidKind
	}
	if value == nil {
		value = []byte{}
	}

	query, args, err := s.sb.
		Insert(s.table).
		Columns("principal_id", "kind", "value", "updated_at").
		Values(principalID, string(kind), value, s.now().UTC()).
		Suffix("ON CONFLICT (principal_id, kind) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return err
	}

	err = s.retry(ctx, "set", func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, principalID string, kind store.Kind) error {
	if !kind.Valid() {
		return store.ErrInvalidKind
	}

	query, args, err := s.sb.
		Delete(s.table).
		Where(sq.Eq{"principal_id": principalID}).
		Where(sq.Eq{"kind": string(kind)}).
		ToSql()
	if err != nil {
		return err
	}

	err = s.retry(ctx, "delete", func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Lock implements store.Locker. On SQLite it only returns a no-op unlock;
// the engine's in-process lock still applies.
func (s *Store) Lock(ctx context.Context, principalID string) (func(), error) {
	if s.dialect != Postgres {
		return func() {}, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock(hashtext($1))", principalID); err != nil {
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	return func() {
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if _, err := conn.ExecContext(relCtx, "SELECT pg_advisory_unlock(hashtext($1))", principalID); err != nil {
			s.log.Warn().Err(err).Str("func", "*Store.Lock").Msg("advisory unlock failed")
		}
		_ = conn.Close()
	}, nil
}

func (s *Store) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !Retryable(err) || ctx.Err() != nil {
			return err
		}
		s.log.Debug().Str("op", op).Int("attempt", attempt).Str("code", pgCode(err)).Msg("retrying statement")
	}
	return err
}

// Retryable reports whether err is a transient PostgreSQL failure: connection
// loss, serialization failure, deadlock, or a server not yet accepting
// connections.
func Retryable(err error) bool {
	switch pgCode(err) {
	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.TransactionRollback,
		pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected,
		pgerrcode.CannotConnectNow:
		return true
	default:
		return false
	}
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
