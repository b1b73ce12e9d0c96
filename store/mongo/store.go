// Package mongo stores lifecycle records as MongoDB documents.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/alkem-io/server-sub004/retry"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")

// Config holds MongoDB settings.
type Config struct {
	ConnectionURL  string        `env:"LIFECYCLE_MONGO_URL"`
	Database       string        `env:"LIFECYCLE_MONGO_DATABASE"        envDefault:"lifecycle"`
	Collection     string        `env:"LIFECYCLE_MONGO_COLLECTION"      envDefault:"lifecycle_records"`
	ConnectTimeout time.Duration `env:"LIFECYCLE_MONGO_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize    uint64        `env:"LIFECYCLE_MONGO_MAX_POOL_SIZE"   envDefault:"100"`
	RetryAttempts  uint          `env:"LIFECYCLE_MONGO_RETRY_ATTEMPTS"  envDefault:"3"`
	RetryInterval  time.Duration `env:"LIFECYCLE_MONGO_RETRY_INTERVAL"  envDefault:"2s"`
}

type document struct {
	ID           string    `bson:"_id"`
	TemplateKind string    `bson:"template_kind"`
	CurrentState string    `bson:"current_state"`
	Version      int64     `bson:"version"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d document) record() lifecycle.Record {
	return lifecycle.Record{
		ID:           d.ID,
		TemplateKind: d.TemplateKind,
		CurrentState: d.CurrentState,
		Version:      uint64(d.Version), //nolint:gosec // never negative
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// Store is a lifecycle.Storage backed by a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ lifecycle.Storage = (*Store)(nil)

// Connect creates a client, retrying until the server answers a ping.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client, err := retry.DoValue(ctx, func(ctx context.Context) (*mongo.Client, error) {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.ConnectionURL).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetMaxPoolSize(cfg.MaxPoolSize),
		)
		if err != nil {
			return nil, err
		}

		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())

			return nil, err
		}

		return client, nil
	},
		retry.WithAttempts(retry.Attempts(max(cfg.RetryAttempts, 1))),
		retry.WithBackoff(retry.ConstantBackoff(cfg.RetryInterval)),
		retry.WithJitter(retry.WithoutJitter),
	)
	if err != nil {
		return nil, errors.Join(ErrFailedToConnectToMongo, err)
	}

	return New(client, client.Database(cfg.Database).Collection(cfg.Collection)), nil
}

// New wraps an existing collection. client may be nil when the caller owns it.
func New(client *mongo.Client, coll *mongo.Collection) *Store {
	return &Store{client: client, coll: coll}
}

// Close disconnects the client when the store owns one.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	return s.client.Disconnect(ctx)
}

func (s *Store) Insert(ctx context.Context, rec lifecycle.Record) error {
	_, err := s.coll.InsertOne(ctx, document{
		ID:           rec.ID,
		TemplateKind: rec.TemplateKind,
		CurrentState: rec.CurrentState,
		Version:      int64(rec.Version), //nolint:gosec // versions never approach MaxInt64
		CreatedAt:    rec.CreatedAt.UTC(),
		UpdatedAt:    rec.UpdatedAt.UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return lifecycle.ErrRecordExists
	}

	if err != nil {
		return fmt.Errorf("insert lifecycle record: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (lifecycle.Record, error) {
	var doc document

	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return lifecycle.Record{}, lifecycle.ErrRecordNotFound
	}

	if err != nil {
		return lifecycle.Record{}, fmt.Errorf("get lifecycle record: %w", err)
	}

	return doc.record(), nil
}

func (s *Store) CompareAndSwap(
	ctx context.Context,
	id string,
	expectedVersion uint64,
	newState string,
	at time.Time,
) (lifecycle.Record, error) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "version", Value: int64(expectedVersion)}, //nolint:gosec // versions never approach MaxInt64
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "current_state", Value: newState},
			{Key: "updated_at", Value: at.UTC()},
		}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
	}

	var doc document

	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.record(), nil
	}

	if !errors.Is(err, mongo.ErrNoDocuments) {
		return lifecycle.Record{}, fmt.Errorf("update lifecycle record: %w", err)
	}

	if _, err := s.Get(ctx, id); err != nil {
		return lifecycle.Record{}, err
	}

	return lifecycle.Record{}, lifecycle.ErrConcurrentModification
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete lifecycle record: %w", err)
	}

	if res.DeletedCount == 0 {
		return lifecycle.ErrRecordNotFound
	}

	return nil
}
