package config

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// ConnectRedis initializes the Redis connection used for caching and the
// notification outbox. A failed ping leaves RedisClient nil.
func ConnectRedis() {
	addr := GetEnv("REDIS_HOST", "localhost") + ":" + GetEnv("REDIS_PORT", "6379")

	RedisClient = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: GetEnv("REDIS_PASSWORD", ""),
		DB:       GetEnvInt("REDIS_DB", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := RedisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v", err)
		log.Println("Application will continue without caching or notifications")
		_ = RedisClient.Close()
		RedisClient = nil
	} else {
		log.Println("Redis connected successfully")
	}
}

// GetRedis returns the Redis client instance, nil when unavailable
func GetRedis() *redis.Client {
	return RedisClient
}
