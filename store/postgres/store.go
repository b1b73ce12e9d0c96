// Package postgres stores lifecycle records in PostgreSQL through pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/alkem-io/server-sub004/retry"
	"github.com/alkem-io/server-sub004/store/internal/migrate"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	ErrFailedToOpenDBConnection = errors.New("failed to open db connection")
	ErrFailedToParseDBConfig    = errors.New("failed to parse db config")
)

// Config holds PostgreSQL pool settings.
type Config struct {
	ConnectionString string        `env:"LIFECYCLE_PG_URL"`
	MaxConns         int32         `env:"LIFECYCLE_PG_MAX_CONNS"          envDefault:"10"`
	MinConns         int32         `env:"LIFECYCLE_PG_MIN_CONNS"          envDefault:"1"`
	MaxConnIdleTime  time.Duration `env:"LIFECYCLE_PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime  time.Duration `env:"LIFECYCLE_PG_MAX_CONN_LIFETIME"  envDefault:"30m"`
	RetryAttempts    uint          `env:"LIFECYCLE_PG_RETRY_ATTEMPTS"     envDefault:"3"`
	RetryInterval    time.Duration `env:"LIFECYCLE_PG_RETRY_INTERVAL"     envDefault:"2s"`
}

// Store is a lifecycle.Storage backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ lifecycle.Storage = (*Store)(nil)

// Connect opens a pool, retrying while the database comes up, and applies migrations.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	attempts := max(cfg.RetryAttempts, 1)

	pool, err := retry.DoValue(ctx, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, err
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, err
		}

		return pool, nil
	},
		retry.WithAttempts(retry.Attempts(attempts)),
		retry.WithBackoff(retry.ConstantBackoff(cfg.RetryInterval)),
		retry.WithJitter(retry.WithoutJitter),
	)
	if err != nil {
		return nil, errors.Join(ErrFailedToOpenDBConnection, err)
	}

	if err := Migrate(ctx, pool, log); err != nil {
		pool.Close()

		return nil, err
	}

	return New(pool), nil
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies the embedded migrations through pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close() //nolint:errcheck

	return migrate.Up(ctx, goose.DialectPostgres, db, migrations, log)
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Healthcheck pings the database.
func (s *Store) Healthcheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Insert(ctx context.Context, rec lifecycle.Record) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO lifecycle_records (id, template_kind, current_state, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID,
		rec.TemplateKind,
		rec.CurrentState,
		int64(rec.Version), //nolint:gosec // versions never approach MaxInt64
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)
	if IsDuplicateKeyError(err) {
		return lifecycle.ErrRecordExists
	}

	if err != nil {
		return fmt.Errorf("insert lifecycle record: %w", err)
	}

	return nil
}

const selectColumns = `id, template_kind, current_state, version, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id string) (lifecycle.Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM lifecycle_records WHERE id = $1`, id))
	if IsNotFoundError(err) {
		return lifecycle.Record{}, lifecycle.ErrRecordNotFound
	}

	if err != nil {
		return lifecycle.Record{}, fmt.Errorf("get lifecycle record: %w", err)
	}

	return rec, nil
}

func (s *Store) CompareAndSwap(
	ctx context.Context,
	id string,
	expectedVersion uint64,
	newState string,
	at time.Time,
) (lifecycle.Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `
UPDATE lifecycle_records
SET current_state = $1, version = version + 1, updated_at = $2
WHERE id = $3 AND version = $4
RETURNING `+selectColumns,
		newState,
		at.UTC(),
		id,
		int64(expectedVersion), //nolint:gosec // versions never approach MaxInt64
	))
	if err == nil {
		return rec, nil
	}

	if !IsNotFoundError(err) {
		return lifecycle.Record{}, fmt.Errorf("update lifecycle record: %w", err)
	}

	if _, err := s.Get(ctx, id); err != nil {
		return lifecycle.Record{}, err
	}

	return lifecycle.Record{}, lifecycle.ErrConcurrentModification
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lifecycle_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lifecycle record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return lifecycle.ErrRecordNotFound
	}

	return nil
}

// IsNotFoundError reports whether err means no row matched.
func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports whether err is a unique violation (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanRecord(row pgx.Row) (lifecycle.Record, error) {
	var (
		rec     lifecycle.Record
		version int64
	)

	err := row.Scan(&rec.ID, &rec.TemplateKind, &rec.CurrentState, &version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return lifecycle.Record{}, err
	}

	rec.Version = uint64(version) //nolint:gosec // column is checked non-negative
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()

	return rec, nil
}
