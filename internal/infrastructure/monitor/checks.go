package monitor

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskpilot/internal/infrastructure/buffer"
)

func PostgresCheck(pool *pgxpool.Pool) Check {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

func RedisCheck(client redislib.UniversalClient) Check {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// BufferCheck fails when the stamp buffer file cannot be read.
func BufferCheck(store *buffer.Store) Check {
	return func(ctx context.Context) error {
		_, err := store.Size()
		return err
	}
}
