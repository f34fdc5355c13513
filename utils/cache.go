// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"tutorly/config"

	"github.com/go-redis/redis/v8"
)

// CalendarCacheClient caches short-lived provider lookups such as Calendly
// event types.
var CalendarCacheClient *redis.Client

// InitCalendarCache initializes the Redis client for calendar lookups.
func InitCalendarCache() {
	CalendarCacheClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCacheDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := CalendarCacheClient.Ping(ctx).Result()
	if err != nil {
		log.Fatalf("Failed to connect to Redis (Calendar Cache): %v", err)
	}
}

// GetCalendarCacheClient returns the calendar lookup cache client.
func GetCalendarCacheClient() *redis.Client {
	if CalendarCacheClient == nil {
		InitCalendarCache()
	}
	return CalendarCacheClient
}
