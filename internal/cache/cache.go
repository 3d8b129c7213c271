// internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"metawallet/internal/domain"
)

// WalletCache caches wallet reads keyed by owning account. Mutating code
// paths must invalidate after commit; the cache is never the source of truth.
type WalletCache interface {
	Get(ctx context.Context, accountID string) (*domain.Wallet, bool, error)
	Set(ctx context.Context, accountID string, wallet *domain.Wallet) error
	Invalidate(ctx context.Context, accountID string) error
}

const defaultTTL = 30 * time.Second

// RedisWalletCache implements WalletCache on top of Redis, storing wallets as
// JSON with a short TTL.
type RedisWalletCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisWalletCache creates a new RedisWalletCache.
func NewRedisWalletCache(client *redis.Client) *RedisWalletCache {
	return &RedisWalletCache{client: client, ttl: defaultTTL}
}

func walletKey(accountID string) string {
	return "wallet:account:" + accountID
}

// Get retrieves a cached wallet. The second return value reports a cache hit.
func (c *RedisWalletCache) Get(ctx context.Context, accountID string) (*domain.Wallet, bool, error) {
	val, err := c.client.Get(ctx, walletKey(accountID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read wallet cache: %w", err)
	}
	var wallet domain.Wallet
	if err := json.Unmarshal([]byte(val), &wallet); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached wallet: %w", err)
	}
	return &wallet, true, nil
}

// Set stores a wallet with the configured TTL.
func (c *RedisWalletCache) Set(ctx context.Context, accountID string, wallet *domain.Wallet) error {
	b, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to encode wallet for cache: %w", err)
	}
	if err := c.client.Set(ctx, walletKey(accountID), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write wallet cache: %w", err)
	}
	return nil
}

// Invalidate removes a wallet from the cache.
func (c *RedisWalletCache) Invalidate(ctx context.Context, accountID string) error {
	if err := c.client.Del(ctx, walletKey(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate wallet cache: %w", err)
	}
	return nil
}

// NoopWalletCache satisfies WalletCache when no Redis instance is configured.
type NoopWalletCache struct{}

// NewNoopWalletCache creates a new NoopWalletCache.
func NewNoopWalletCache() *NoopWalletCache { return &NoopWalletCache{} }

func (*NoopWalletCache) Get(ctx context.Context, accountID string) (*domain.Wallet, bool, error) {
	return nil, false, nil
}

func (*NoopWalletCache) Set(ctx context.Context, accountID string, wallet *domain.Wallet) error {
	return nil
}

func (*NoopWalletCache) Invalidate(ctx context.Context, accountID string) error {
	return nil
}
