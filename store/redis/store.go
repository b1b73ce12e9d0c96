// Package redis stores lifecycle records as Redis hashes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alkem-io/server-sub004/lifecycle"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "lifecycle:record:"

const (
	fieldKind      = "kind"
	fieldState     = "state"
	fieldVersion   = "version"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// KEYS[1] record key. ARGV: kind, state, version, created_at, updated_at.
var insertScript = backend.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1],
	"kind", ARGV[1],
	"state", ARGV[2],
	"version", ARGV[3],
	"created_at", ARGV[4],
	"updated_at", ARGV[5])
return 1
`)

// KEYS[1] record key. ARGV: expected version, new state, updated_at.
// Returns -1 when missing, 0 on version mismatch, else {kind, created_at, version}.
var casScript = backend.NewScript(`
local current = redis.call("HGET", KEYS[1], "version")
if not current then
	return -1
end
if current ~= ARGV[1] then
	return 0
end
redis.call("HSET", KEYS[1], "state", ARGV[2], "updated_at", ARGV[3])
local version = redis.call("HINCRBY", KEYS[1], "version", 1)
return {redis.call("HGET", KEYS[1], "kind"), redis.call("HGET", KEYS[1], "created_at"), tostring(version)}
`)

// Config holds Redis connection settings.
type Config struct {
	URL    string `env:"LIFECYCLE_REDIS_URL"    envDefault:"redis://localhost:6379/0"`
	Prefix string `env:"LIFECYCLE_REDIS_PREFIX" envDefault:"lifecycle:record:"`
}

// Store is a lifecycle.Storage backed by Redis.
type Store struct {
	client     backend.UniversalClient
	prefix     string
	ownsClient bool
}

var _ lifecycle.Storage = (*Store)(nil)

type Option func(*Store)

// WithPrefix sets the key prefix for records.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// Connect dials Redis using cfg and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	opts, err := backend.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := backend.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	var storeOpts []Option
	if cfg.Prefix != "" {
		storeOpts = append(storeOpts, WithPrefix(cfg.Prefix))
	}

	store := NewFromClient(client, storeOpts...)
	store.ownsClient = true

	return store, nil
}

// NewFromClient creates a store from an existing client.
// The caller keeps ownership: Close leaves the client open.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) Insert(ctx context.Context, rec lifecycle.Record) error {
	ok, err := insertScript.Run(ctx, s.client, []string{s.key(rec.ID)},
		rec.TemplateKind,
		rec.CurrentState,
		strconv.FormatUint(rec.Version, 10),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to insert into redis: %w", err)
	}

	if ok == 0 {
		return lifecycle.ErrRecordExists
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (lifecycle.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return lifecycle.Record{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	if len(fields) == 0 {
		return lifecycle.Record{}, lifecycle.ErrRecordNotFound
	}

	return decodeRecord(id, fields)
}

func (s *Store) CompareAndSwap(
	ctx context.Context,
	id string,
	expectedVersion uint64,
	newState string,
	at time.Time,
) (lifecycle.Record, error) {
	updatedAt := formatTime(at)

	res, err := casScript.Run(ctx, s.client, []string{s.key(id)},
		strconv.FormatUint(expectedVersion, 10),
		newState,
		updatedAt,
	).Result()
	if err != nil {
		return lifecycle.Record{}, fmt.Errorf("failed to update redis record: %w", err)
	}

	switch v := res.(type) {
	case int64:
		if v < 0 {
			return lifecycle.Record{}, lifecycle.ErrRecordNotFound
		}

		return lifecycle.Record{}, lifecycle.ErrConcurrentModification
	case []any:
		if len(v) != 3 {
			return lifecycle.Record{}, fmt.Errorf("unexpected redis reply length %d", len(v))
		}

		fields := map[string]string{
			fieldState:     newState,
			fieldUpdatedAt: updatedAt,
		}

		for i, name := range []string{fieldKind, fieldCreatedAt, fieldVersion} {
			str, ok := v[i].(string)
			if !ok {
				return lifecycle.Record{}, fmt.Errorf("unexpected redis reply for %s: %T", name, v[i])
			}

			fields[name] = str
		}

		return decodeRecord(id, fields)
	default:
		return lifecycle.Record{}, fmt.Errorf("unexpected redis reply: %T", res)
	}
}

func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}

	if n == 0 {
		return lifecycle.ErrRecordNotFound
	}

	return nil
}

// Close closes the redis client when Connect created it.
func (s *Store) Close() error {
	if !s.ownsClient {
		return nil
	}

	return s.client.Close()
}

var errMalformedRecord = errors.New("malformed redis record")

func decodeRecord(id string, fields map[string]string) (lifecycle.Record, error) {
	version, err := strconv.ParseUint(fields[fieldVersion], 10, 64)
	if err != nil {
		return lifecycle.Record{}, fmt.Errorf("%w: version: %w", errMalformedRecord, err)
	}

	createdAt, err := parseTime(fields[fieldCreatedAt])
	if err != nil {
		return lifecycle.Record{}, fmt.Errorf("%w: created_at: %w", errMalformedRecord, err)
	}

	updatedAt, err := parseTime(fields[fieldUpdatedAt])
	if err != nil {
		return lifecycle.Record{}, fmt.Errorf("%w: updated_at: %w", errMalformedRecord, err)
	}

	return lifecycle.Record{
		ID:           id,
		TemplateKind: fields[fieldKind],
		CurrentState: fields[fieldState],
		Version:      version,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}

	return t.UTC(), nil
}
