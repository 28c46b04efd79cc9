package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"clinical-notes-service/internal/service/fingerprint"
)

// Store is a second-level transcript store shared between replicas.
// A missing key is reported as ok=false with a nil error.
type Store interface {
	Get(ctx context.Context, fp fingerprint.Fingerprint) (transcript string, ok bool, err error)
	Set(ctx context.Context, fp fingerprint.Fingerprint, transcript string) error
}

// RedisConfig holds Redis store configuration.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration // 0 means no expiration
	PoolSize  int
}

// RedisStore keeps transcripts in Redis under "<prefix>:<hex fingerprint>".
type RedisStore struct {
	client    goredis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client goredis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// DialRedis creates a client from cfg and verifies the connection.
func DialRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedisStore(client, cfg.KeyPrefix, cfg.TTL), nil
}

func (s *RedisStore) key(fp fingerprint.Fingerprint) string {
	if s.keyPrefix == "" {
		return fp.String()
	}
	return s.keyPrefix + ":" + fp.String()
}

// Get loads the transcript for fp.
func (s *RedisStore) Get(ctx context.Context, fp fingerprint.Fingerprint) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(fp)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("transcript store get: %w", err)
	}
	return val, true, nil
}

// Set stores the transcript for fp with the configured TTL.
func (s *RedisStore) Set(ctx context.Context, fp fingerprint.Fingerprint, transcript string) error {
	if err := s.client.Set(ctx, s.key(fp), transcript, s.ttl).Err(); err != nil {
		return fmt.Errorf("transcript store set: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
