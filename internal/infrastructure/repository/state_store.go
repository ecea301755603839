package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"oracleboxing-funnel-layer/internal/domain"
	"oracleboxing-funnel-layer/internal/ports"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotKeyPrefix = "funnel:snapshot:"
	trackedKeyPrefix  = "funnel:tracked:"
	countryKeyPrefix  = "funnel:country:"
	failedWebhooksKey = "failed_abandoned_cart_webhooks"

	trackedTTL = 24 * time.Hour
	countryTTL = 24 * time.Hour
)

// RedisStateStore implements StateStore on Redis. TTLs mirror the original
// browser-storage lifetimes: 45-minute checkout snapshots, 24-hour
// tracked-purchase markers.
type RedisStateStore struct {
	rdb *redis.Client
}

// NewRedisStateStore creates a new Redis state store
func NewRedisStateStore(rdb *redis.Client) ports.StateStore {
	return &RedisStateStore{rdb: rdb}
}

// SaveSnapshot stores the resumable checkout state for a visitor.
func (s *RedisStateStore) SaveSnapshot(ctx context.Context, visitorID string, snap *domain.CheckoutSnapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, snapshotKeyPrefix+visitorID, b, domain.SnapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the visitor's snapshot, or nil when missing. Corrupt
// and expired snapshots are cleared and treated as "start fresh".
func (s *RedisStateStore) GetSnapshot(ctx context.Context, visitorID string) (*domain.CheckoutSnapshot, error) {
	raw, err := s.rdb.Get(ctx, snapshotKeyPrefix+visitorID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snap domain.CheckoutSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		_ = s.ClearSnapshot(ctx, visitorID)
		return nil, nil
	}
	if snap.Expired(time.Now()) {
		_ = s.ClearSnapshot(ctx, visitorID)
		return nil, nil
	}
	return &snap, nil
}

// ClearSnapshot drops the visitor's snapshot.
func (s *RedisStateStore) ClearSnapshot(ctx context.Context, visitorID string) error {
	if err := s.rdb.Del(ctx, snapshotKeyPrefix+visitorID).Err(); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}

// IsPurchaseTracked reports whether a Purchase event was already emitted
// for the session id.
func (s *RedisStateStore) IsPurchaseTracked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, trackedKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check tracked purchase: %w", err)
	}
	return n > 0, nil
}

// MarkPurchaseTracked records the session id after the conversion fired.
func (s *RedisStateStore) MarkPurchaseTracked(ctx context.Context, sessionID string) error {
	if err := s.rdb.Set(ctx, trackedKeyPrefix+sessionID, "1", trackedTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark purchase tracked: %w", err)
	}
	return nil
}

// PushFailedWebhook appends an undeliverable webhook payload to the
// fallback list.
func (s *RedisStateStore) PushFailedWebhook(ctx context.Context, payload []byte) error {
	if err := s.rdb.RPush(ctx, failedWebhooksKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to push failed webhook: %w", err)
	}
	return nil
}

// CachedCountry returns the visitor's cached country code, or "".
func (s *RedisStateStore) CachedCountry(ctx context.Context, visitorID string) (string, error) {
	v, err := s.rdb.Get(ctx, countryKeyPrefix+visitorID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cached country: %w", err)
	}
	return v, nil
}

// CacheCountry stores the visitor's resolved country code.
func (s *RedisStateStore) CacheCountry(ctx context.Context, visitorID, country string) error {
	if err := s.rdb.Set(ctx, countryKeyPrefix+visitorID, country, countryTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache country: %w", err)
	}
	return nil
}
