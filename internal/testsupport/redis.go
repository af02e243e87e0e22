package testsupport

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"

	"strategist/internal/adapters/config"
)

// NewRedisClient connects to the test redis. Keys under each prefix are
// removed before and after the test; with no prefixes the whole database
// is flushed.
func NewRedisClient(t *testing.T, cfg config.RedisConfig, prefixes ...string) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	if err := clearRedis(ctx, client, prefixes); err != nil {
		t.Fatalf("failed to clear redis before test: %v", err)
	}

	t.Cleanup(func() {
		_ = clearRedis(context.Background(), client, prefixes)
		_ = client.Close()
	})

	return client
}

// SeedRedis stores each fixture JSON-encoded under its key, without expiry.
func SeedRedis(t *testing.T, client *redis.Client, fixtures map[string]any) {
	t.Helper()

	ctx := context.Background()
	for key, value := range fixtures {
		data, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("failed to encode fixture %s: %v", key, err)
		}
		if err := client.Set(ctx, key, data, 0).Err(); err != nil {
			t.Fatalf("failed to seed %s: %v", key, err)
		}
	}
}

func clearRedis(ctx context.Context, client *redis.Client, prefixes []string) error {
	if len(prefixes) == 0 {
		return client.FlushDB(ctx).Err()
	}

	for _, prefix := range prefixes {
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
