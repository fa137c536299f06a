package customdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"n8n-gportal/internal/config"
	"n8n-gportal/internal/nodes"
	apperrors "n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "gportal:customdata:"

// hashClient is the subset of redis.Cmdable the store uses
type hashClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisStore keeps an execution's data in one Redis hash
type RedisStore struct {
	client hashClient
	key    string
	ttl    time.Duration
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Wrap(err, apperrors.ErrorTypeExternal, apperrors.CodeExternalService, "failed to read custom data")
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.HSet(ctx, s.key, key, value).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeExternal, apperrors.CodeExternalService, "failed to write custom data")
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, s.key, s.ttl).Err(); err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeExternal, apperrors.CodeExternalService, "failed to set custom data expiry")
		}
	}
	return nil
}

func (s *RedisStore) GetAll(ctx context.Context) (map[string]string, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeExternal, apperrors.CodeExternalService, "failed to read custom data")
	}
	return all, nil
}

// RedisProvider maps executions onto hashes named prefix+executionID
type RedisProvider struct {
	client hashClient
	closer func() error
	prefix string
	ttl    time.Duration
}

// NewRedisProvider connects to Redis and verifies the connection
func NewRedisProvider(ctx context.Context, rc *config.RedisConfig, cc *config.CustomDataConfig, log logger.Logger) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.Database,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		PoolSize:     rc.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.InfoContext(ctx, "Connected to Redis", "addr", rc.Addr, "db", rc.Database)

	return newRedisProvider(client, client.Close, cc.KeyPrefix, cc.TTL), nil
}

func newRedisProvider(client hashClient, closer func() error, prefix string, ttl time.Duration) *RedisProvider {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisProvider{client: client, closer: closer, prefix: prefix, ttl: ttl}
}

func (p *RedisProvider) For(executionID string) nodes.CustomData {
	return &RedisStore{client: p.client, key: p.prefix + executionID, ttl: p.ttl}
}

func (p *RedisProvider) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
