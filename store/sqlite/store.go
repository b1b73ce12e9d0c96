// Package sqlite stores lifecycle records in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/alkem-io/server-sub004/store/internal/migrate"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds SQLite settings.
type Config struct {
	Path        string        `env:"LIFECYCLE_SQLITE_PATH"         envDefault:"lifecycle.db"`
	BusyTimeout time.Duration `env:"LIFECYCLE_SQLITE_BUSY_TIMEOUT" envDefault:"5s"`
}

// Store is a lifecycle.Storage backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ lifecycle.Storage = (*Store)(nil)

// Open opens (creating if needed) the database at cfg.Path and applies migrations.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		filepath.Clean(cfg.Path), busy.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	if err := migrate.Up(ctx, goose.DialectSQLite3, db, migrations, log); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, rec lifecycle.Record) error {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO lifecycle_records (id, template_kind, current_state, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING
`,
		rec.ID,
		rec.TemplateKind,
		rec.CurrentState,
		int64(rec.Version), //nolint:gosec // versions never approach MaxInt64
		rec.CreatedAt.UTC().UnixMilli(),
		rec.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert lifecycle record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert lifecycle record: %w", err)
	}

	if n == 0 {
		return lifecycle.ErrRecordExists
	}

	return nil
}

const selectColumns = `id, template_kind, current_state, version, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id string) (lifecycle.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM lifecycle_records WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	row := s.db.QueryRowContext(ctx, `
UPDATE lifecycle_records
SET current_state = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?
RETURNING `+selectColumns,
		newState,
		at.UTC().UnixMilli(),
		id,
		int64(expectedVersion), //nolint:gosec // versions never approach MaxInt64
	)

	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return lifecycle.Record{}, fmt.Errorf("update lifecycle record: %w", err)
	}

	// Nothing matched: either the id is unknown or the version moved on.
	if _, err := s.Get(ctx, id); err != nil {
		return lifecycle.Record{}, err
	}

	return lifecycle.Record{}, lifecycle.ErrConcurrentModification
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lifecycle_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete lifecycle record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete lifecycle record: %w", err)
	}

	if n == 0 {
		return lifecycle.ErrRecordNotFound
	}

	return nil
}

// CountByKind returns how many records each template kind has.
func (s *Store) CountByKind(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT template_kind, COUNT(*) FROM lifecycle_records GROUP BY template_kind`)
	if err != nil {
		return nil, fmt.Errorf("count lifecycle records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			kind  string
			count int
		)

		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan lifecycle count: %w", err)
		}

		counts[kind] = count
	}

	return counts, rows.Err()
}

func scanRecord(row *sql.Row) (lifecycle.Record, error) {
	var (
		rec       lifecycle.Record
		version   int64
		createdAt int64
		updatedAt int64
	)

	err := row.Scan(&rec.ID, &rec.TemplateKind, &rec.CurrentState, &version, &createdAt, &updatedAt)
	if err != nil {
		return lifecycle.Record{}, err
	}

	rec.Version = uint64(version) //nolint:gosec // column is never negative
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return rec, nil
}
