package main

import (
	"context"
	"fmt"

	"github.com/alkem-io/server-sub004/config"
	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/alkem-io/server-sub004/logger"
	"github.com/alkem-io/server-sub004/store/mongo"
	"github.com/alkem-io/server-sub004/store/postgres"
	"github.com/alkem-io/server-sub004/store/redis"
	"github.com/alkem-io/server-sub004/store/sqlite"
)

type closeFunc = func(context.Context) error

func noClose(context.Context) error { return nil }

// openStorage connects the backend named by cfg.Store.
func openStorage(ctx context.Context, cfg config.Config) (lifecycle.Storage, closeFunc, error) {
	log := logger.Get(logger.WithSubsystem(ctx, "store"))

	switch cfg.Store {
	case config.StoreMemory:
		return lifecycle.NewMemoryStorage(), noClose, nil
	case config.StoreSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLite, log)
		if err != nil {
			return nil, nil, err
		}

		return st, func(context.Context) error { return st.Close() }, nil
	case config.StoreRedis:
		st, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}

		return st, func(context.Context) error { return st.Close() }, nil
	case config.StorePostgres:
		st, err := postgres.Connect(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, nil, err
		}

		return st, func(context.Context) error {
			st.Close()

			return nil
		}, nil
	case config.StoreMongo:
		st, err := mongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}

		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store)
	}
}
