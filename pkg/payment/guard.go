package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultGuardTTL bounds how long an escrow stays claimed. It comfortably
// exceeds MaxEscrowBlocks worth of Neutron blocks.
const DefaultGuardTTL = 10 * time.Minute

// Guard stops one escrow from paying for two concurrent requests. Acquire
// reports whether the caller now holds escrowID; Release gives it back when
// the request was not served.
type Guard interface {
	Acquire(ctx context.Context, escrowID uint64) (bool, error)
	Release(ctx context.Context, escrowID uint64) error
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	held map[uint64]time.Time
}

// NewMemoryGuard returns a MemoryGuard whose claims lapse after ttl
// (DefaultGuardTTL when zero).
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &MemoryGuard{ttl: ttl, now: time.Now, held: make(map[uint64]time.Time)}
}

func (g *MemoryGuard) Acquire(_ context.Context, escrowID uint64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if until, ok := g.held[escrowID]; ok && now.Before(until) {
		return false, nil
	}
	g.held[escrowID] = now.Add(g.ttl)
	g.sweep(now)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, escrowID uint64) error {
	g.mu.Lock()
	delete(g.held, escrowID)
	g.mu.Unlock()
	return nil
}

// sweep drops lapsed claims. Caller holds mu.
func (g *MemoryGuard) sweep(now time.Time) {
	for id, until := range g.held {
		if !now.Before(until) {
			delete(g.held, id)
		}
	}
}

// redisClient is the subset of go-redis used by RedisGuard.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisGuardConfig describes the Redis connection used by a RedisGuard.
type RedisGuardConfig struct {
	Address  string
	Password string
	DB       int
	// Prefix namespaces the keys. Default: "httpay:escrow:".
	Prefix string
	TTL    time.Duration
}

// RedisGuard shares claims between provider replicas through Redis SETNX.
type RedisGuard struct {
	client redisClient
	prefix string
	ttl    time.Duration
	closer func() error
}

// NewRedisGuard connects to Redis and verifies the connection with PING.
func NewRedisGuard(ctx context.Context, cfg RedisGuardConfig) (*RedisGuard, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	g := newRedisGuard(client, cfg.Prefix, cfg.TTL)
	g.closer = client.Close
	return g, nil
}

func newRedisGuard(c redisClient, prefix string, ttl time.Duration) *RedisGuard {
	if prefix == "" {
		prefix = "httpay:escrow:"
	}
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &RedisGuard{client: c, prefix: prefix, ttl: ttl}
}

func (g *RedisGuard) key(id uint64) string {
	return g.prefix + strconv.FormatUint(id, 10)
}

func (g *RedisGuard) Acquire(ctx context.Context, escrowID uint64) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(escrowID), time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, escrowID uint64) error {
	if err := g.client.Del(ctx, g.key(escrowID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the Redis connection opened by NewRedisGuard.
func (g *RedisGuard) Close() error {
	if g == nil || g.closer == nil {
		return nil
	}
	return g.closer()
}
