package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists lifecycle records keyed by id.
//
// Implementations must return ErrRecordNotFound for missing ids, ErrRecordExists
// when inserting a duplicate id, and ErrConcurrentModification when the stored
// version differs from the expected one. CompareAndSwap must be all-or-nothing.
type Storage interface {
	Insert(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	CompareAndSwap(ctx context.Context, id string, expectedVersion uint64, newState string, at time.Time) (Record, error)
	Delete(ctx context.Context, id string) error
}

// RecordStoreOption configures a RecordStore.
type RecordStoreOption func(*RecordStore)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(gen func() string) RecordStoreOption {
	return func(s *RecordStore) {
		s.newID = gen
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) RecordStoreOption {
	return func(s *RecordStore) {
		s.now = now
	}
}

// RecordStore applies template rules on top of a Storage.
type RecordStore struct {
	registry *Registry
	storage  Storage
	newID    func() string
	now      func() time.Time
}

// NewRecordStore creates a record store.
func NewRecordStore(registry *Registry, storage Storage, opts ...RecordStoreOption) *RecordStore {
	s := &RecordStore{
		registry: registry,
		storage:  storage,
		newID:    uuid.NewString,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create persists a new record of kind at the template's initial state with version 0.
func (s *RecordStore) Create(ctx context.Context, kind string) (Record, error) {
	tmpl, err := s.registry.Lookup(kind)
	if err != nil {
		return Record{}, err
	}

	now := s.now().UTC()
	rec := Record{
		ID:           s.newID(),
		TemplateKind: tmpl.Kind(),
		CurrentState: tmpl.InitialState(),
		Version:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.storage.Insert(ctx, rec)
	if err != nil {
		return Record{}, WrapRecordError(rec.ID, err)
	}

	return rec, nil
}

// Load returns the record stored under id.
func (s *RecordStore) Load(ctx context.Context, id string) (Record, error) {
	rec, err := s.storage.Get(ctx, id)
	if err != nil {
		return Record{}, WrapRecordError(id, err)
	}

	return rec, nil
}

// CompareAndSwap moves the record to newState and bumps its version,
// provided the stored version still equals expectedVersion.
func (s *RecordStore) CompareAndSwap(
	ctx context.Context,
	id string,
	expectedVersion uint64,
	newState string,
) (Record, error) {
	current, err := s.Load(ctx, id)
	if err != nil {
		return Record{}, err
	}

	if current.Version != expectedVersion {
		return Record{}, WrapRecordError(id, ErrConcurrentModification)
	}

	tmpl, err := s.registry.Lookup(current.TemplateKind)
	if err != nil {
		return Record{}, WrapRecordError(id, err)
	}

	if !tmpl.HasState(newState) {
		return Record{}, WrapRecordError(id, WrapTemplateError(tmpl.Kind(), unknownState(newState)))
	}

	return s.swap(ctx, id, expectedVersion, newState)
}

// swap skips the validation CompareAndSwap performs; the engine has already resolved newState.
func (s *RecordStore) swap(ctx context.Context, id string, expectedVersion uint64, newState string) (Record, error) {
	rec, err := s.storage.CompareAndSwap(ctx, id, expectedVersion, newState, s.now().UTC())
	if err != nil {
		return Record{}, WrapRecordError(id, err)
	}

	return rec, nil
}

// Delete removes the record. Called by the owning entity when it is destroyed.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	err := s.storage.Delete(ctx, id)
	if err != nil {
		return WrapRecordError(id, err)
	}

	return nil
}

// Template returns the template governing rec.
func (s *RecordStore) Template(rec Record) (*Template, error) {
	tmpl, err := s.registry.Lookup(rec.TemplateKind)
	if err != nil {
		return nil, WrapRecordError(rec.ID, err)
	}

	return tmpl, nil
}
