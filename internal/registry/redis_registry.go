package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/elviDev/ls-internet-radio-sub002/internal/config"
	"github.com/elviDev/ls-internet-radio-sub002/pkg/log"
)

// RedisRegistry advertises live broadcast ids under TTL keys so sibling
// instances and the station dashboard can discover which shows are on
// air. A heartbeat refreshes the keys this instance owns; if the
// process dies, the keys simply expire.
type RedisRegistry struct {
	client            *redis.Client
	advertiseAddress  string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{}
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

// NewRedisRegistry connects to Redis and returns a live-broadcast registry.
func NewRedisRegistry(cfg config.RedisConfig, advertiseAddress string) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRegistry{
		client:            client,
		advertiseAddress:  advertiseAddress,
		prefix:            cfg.RegistryPrefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
	}, nil
}

func (r *RedisRegistry) keyFor(broadcastID string) string {
	return fmt.Sprintf("%s:broadcast:%s", r.prefix, broadcastID)
}

// Announce marks a broadcast as live on this instance.
func (r *RedisRegistry) Announce(ctx context.Context, broadcastID string) error {
	key := r.keyFor(broadcastID)

	if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to announce broadcast: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = struct{}{}
	r.mu.Unlock()

	log.L().Info().Str(log.FieldBroadcastID, broadcastID).Str("address", r.advertiseAddress).Msg("broadcast announced")
	return nil
}

// Retract removes the live marker for a broadcast, releasing the id.
func (r *RedisRegistry) Retract(ctx context.Context, broadcastID string) error {
	key := r.keyFor(broadcastID)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to retract broadcast: %w", err)
	}

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	log.L().Info().Str(log.FieldBroadcastID, broadcastID).Msg("broadcast retracted")
	return nil
}

// Lookup returns the advertise address of the instance hosting a broadcast.
func (r *RedisRegistry) Lookup(ctx context.Context, broadcastID string) (string, error) {
	addr, err := r.client.Get(ctx, r.keyFor(broadcastID)).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("broadcast %s: %w", broadcastID, err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup broadcast: %w", err)
	}
	return addr, nil
}

// StartHeartbeat begins refreshing the TTL on this instance's keys.
func (r *RedisRegistry) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	log.L().Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("registry heartbeat started")
	return nil
}

func (r *RedisRegistry) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisRegistry) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	for _, key := range keys {
		if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
			log.L().Error().Str("key", key).Err(err).Msg("failed to refresh key")
		}
	}
}

// StopHeartbeat stops the refresh loop.
func (r *RedisRegistry) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Close stops the heartbeat and releases the Redis client.
func (r *RedisRegistry) Close() error {
	r.StopHeartbeat()
	return r.client.Close()
}
