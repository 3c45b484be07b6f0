package config

import (
	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns a client for the catalog cache and idempotency keys,
// or nil when Redis is not configured. Callers treat a nil client as
// cache-disabled rather than an error.
func NewRedisClient() *redis.Client {
	if AppConfig == nil || AppConfig.Redis.Addr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     AppConfig.Redis.Addr,
		Password: AppConfig.Redis.Password,
		DB:       AppConfig.Redis.DB,
	})
}
