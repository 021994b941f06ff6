package triggers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/patrickmn/go-cache"
	redis "github.com/redis/go-redis/v9"
)

// DefaultDedupTTL bounds how long a delivered event is remembered.
const DefaultDedupTTL = 7 * 24 * time.Hour

const redisKeyPrefix = "approvals:trigger:"

// DedupStore remembers which events already fired. Claim is atomic: of several concurrent
// claims for one key exactly one wins.
type DedupStore interface {
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets a key so a firing that failed downstream can be redelivered.
	Release(ctx context.Context, key string) error
}

// DedupKey identifies one delivery of one event for one entity.
func DedupKey(entityType, entityID string, triggerType models.TriggerType, token string) string {
	return strings.Join([]string{entityType, entityID, string(triggerType), token}, ":")
}

// MemoryDedupStore keeps keys in process memory. Keys do not survive a restart.
type MemoryDedupStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewMemoryDedupStore(ttl time.Duration) *MemoryDedupStore {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}

	return &MemoryDedupStore{
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (s *MemoryDedupStore) Claim(_ context.Context, key string) (bool, error) {
	// Add fails when the key is already present and unexpired.
	err := s.cache.Add(key, struct{}{}, s.ttl)

	return err == nil, nil
}

func (s *MemoryDedupStore) Release(_ context.Context, key string) error {
	s.cache.Delete(key)

	return nil
}

// RedisDedupStore shares keys between worker replicas.
type RedisDedupStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisDedupStore(client redis.UniversalClient, ttl time.Duration) *RedisDedupStore {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}

	return &RedisDedupStore{client: client, ttl: ttl}
}

// NewRedisDedupStoreFromURL connects to redisURL and checks the connection.
func NewRedisDedupStoreFromURL(ctx context.Context, redisURL string, ttl time.Duration) (*RedisDedupStore, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisDedupStore(client, ttl), nil
}

func (s *RedisDedupStore) Claim(ctx context.Context, key string) (bool, error) {
	claimed, err := s.client.SetNX(ctx, redisKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim trigger key %s: %w", key, err)
	}

	return claimed, nil
}

func (s *RedisDedupStore) Release(ctx context.Context, key string) error {
	err := s.client.Del(ctx, redisKeyPrefix+key).Err()
	if err != nil {
		return fmt.Errorf("failed to release trigger key %s: %w", key, err)
	}

	return nil
}

func (s *RedisDedupStore) Close() error {
	return s.client.Close()
}
