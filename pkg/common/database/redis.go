package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reportstack/export-worker/pkg/common/logger"
)

// ConnectRedis returns a client for the duplicate fast-path cache. Redis is
// optional; a failed ping is logged but not fatal, the status repository
// remains the source of truth for duplicate detection.
func ConnectRedis(addr, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.WithError(err).Warn("Failed to connect to Redis, duplicate fast-path disabled until it recovers")
	} else {
		logger.Log.Info("Connected to Redis")
	}

	return client
}

func CloseRedis(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
