package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/claimstore"
)

// Key layout in Redis
const (
	keyPrefixClaim       = "drop:claim:"
	keySetClaims         = "drop:claims:index"
	keySchemaVersion     = "drop:metadata:schema_version"
	currentSchemaVersion = "v1"

	opTimeout = 5 * time.Second
)

// RedisClaimStore is a claim store backed by Redis, suitable for running
// several gate instances against one shared flag set. The write-once
// guarantee rides on SETNX, which is atomic server-side.
type RedisClaimStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys (multi-tenant setups)
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys. If set, it is
	// prepended to the default "drop:" namespace.
	KeyPrefix string
}

// NewRedisClaimStore creates a Redis-backed claim store and verifies the
// connection before returning.
func NewRedisClaimStore(cfg *RedisConfig, logger *zap.Logger) (*RedisClaimStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisClaimStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis claim store initialized", "address", cfg.Address, "db", cfg.DB)

	return rs, nil
}

func (r *RedisClaimStore) initSchema(ctx context.Context) error {
	key := r.key(keySchemaVersion)

	existing, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, key, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existing != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
	}

	return nil
}

func (r *RedisClaimStore) key(suffix string) string {
	return r.keyPrefix + suffix
}

func (r *RedisClaimStore) claimKey(addr common.Address) string {
	return r.key(keyPrefixClaim + addr.Hex())
}

// IsClaimed reports whether the address is marked claimed.
func (r *RedisClaimStore) IsClaimed(addr common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, fmt.Errorf("claim store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	exists, err := r.client.Exists(ctx, r.claimKey(addr)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read claimed flag: %w", err)
	}

	return exists > 0, nil
}

// MarkClaimed sets the claimed flag via SETNX. The stored value is the
// mark time (unix seconds) for operational debugging.
func (r *RedisClaimStore) MarkClaimed(addr common.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("claim store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	set, err := r.client.SetNX(ctx, r.claimKey(addr), time.Now().Unix(), 0).Result()
	if err != nil {
		return fmt.Errorf("failed to mark claimed: %w", err)
	}
	if !set {
		return claimstore.ErrAlreadyMarked
	}

	if err := r.client.SAdd(ctx, r.key(keySetClaims), addr.Hex()).Err(); err != nil {
		return fmt.Errorf("failed to index claimed address: %w", err)
	}

	return nil
}

// UnmarkClaimed clears the claimed flag. Idempotent.
func (r *RedisClaimStore) UnmarkClaimed(addr common.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("claim store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.claimKey(addr)).Err(); err != nil {
		return fmt.Errorf("failed to unmark claimed: %w", err)
	}
	if err := r.client.SRem(ctx, r.key(keySetClaims), addr.Hex()).Err(); err != nil {
		return fmt.Errorf("failed to unindex claimed address: %w", err)
	}

	return nil
}

// Count returns the number of claimed addresses from the index set.
func (r *RedisClaimStore) Count() (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, fmt.Errorf("claim store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	count, err := r.client.SCard(ctx, r.key(keySetClaims)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count claimed addresses: %w", err)
	}

	return count, nil
}

// Close shuts down the store. Idempotent.
func (r *RedisClaimStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis claim store closed")
	return nil
}

// HealthCheck verifies the store is operational.
func (r *RedisClaimStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("claim store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.client.Ping(ctx).Err()
}
