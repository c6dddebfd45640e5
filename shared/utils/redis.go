package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

var (
	RedisClient *redis.Client

	// ErrCacheMiss is returned when a key is absent
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheUnavailable is returned when Redis was never initialized
	ErrCacheUnavailable = errors.New("redis client not initialized")
)

// InitRedis initializes the Redis client
func InitRedis() error {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}

	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}

	addr := fmt.Sprintf("%s:%s", redisHost, redisPort)

	RedisClient = redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logrus.WithField("addr", addr).Info("Connected to Redis")
	return nil
}

// CacheSet stores a value in Redis with expiration
func CacheSet(ctx context.Context, key string, value string, expiration time.Duration) error {
	if RedisClient == nil {
		return ErrCacheUnavailable
	}
	return RedisClient.Set(ctx, key, value, expiration).Err()
}

// CacheGet retrieves a value from Redis
func CacheGet(ctx context.Context, key string) (string, error) {
	if RedisClient == nil {
		return "", ErrCacheUnavailable
	}
	val, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	return val, err
}

// CacheDelete removes keys from Redis
func CacheDelete(ctx context.Context, keys ...string) error {
	if RedisClient == nil {
		return ErrCacheUnavailable
	}
	return RedisClient.Del(ctx, keys...).Err()
}

// CacheExists checks if a key exists in Redis
func CacheExists(ctx context.Context, key string) (bool, error) {
	if RedisClient == nil {
		return false, ErrCacheUnavailable
	}
	count, err := RedisClient.Exists(ctx, key).Result()
	return count > 0, err
}

// CacheSetJSON marshals value before storing it
func CacheSetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return CacheSet(ctx, key, string(data), expiration)
}

// CacheGetJSON loads and unmarshals a cached value into dest
func CacheGetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := CacheGet(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// CloseRedis closes the Redis connection
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

// Token keys

// TokenHash creates a SHA256 hash of a bearer token so raw tokens are never stored
func TokenHash(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ClaimsCacheKey is where verified claims for a token are cached
func ClaimsCacheKey(token string) string {
	return "token:claims:" + TokenHash(token)
}

// RevokedTokenKey marks a logged-out token
func RevokedTokenKey(token string) string {
	return "token:revoked:" + TokenHash(token)
}

// PropertyCacheKey is where a property detail is cached
func PropertyCacheKey(propertyID string) string {
	return "property:detail:" + propertyID
}

// RevokeToken drops cached claims and blocks the token until it would have expired anyway
func RevokeToken(ctx context.Context, token string, ttl time.Duration) error {
	if RedisClient == nil {
		return ErrCacheUnavailable
	}
	if ttl <= 0 {
		return CacheDelete(ctx, ClaimsCacheKey(token))
	}

	pipe := RedisClient.TxPipeline()
	pipe.Del(ctx, ClaimsCacheKey(token))
	pipe.Set(ctx, RevokedTokenKey(token), "1", ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether RevokeToken was called for the token
func IsTokenRevoked(ctx context.Context, token string) bool {
	revoked, err := CacheExists(ctx, RevokedTokenKey(token))
	return err == nil && revoked
}
