package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"repairhub/internal/models"
)

// CacheService fronts redis for the pieces of state that are read on every
// request: persisted sessions, subscription snapshots and claims versions.
// It also carries the pub/sub fan-out used by the subscription watcher.
type CacheService interface {
	// Subscription snapshot caching
	GetSnapshot(ctx context.Context, storeID uuid.UUID) (*models.SubscriptionSnapshot, error)
	SetSnapshot(ctx context.Context, storeID uuid.UUID, snap models.SubscriptionSnapshot, ttl time.Duration) error
	DeleteSnapshot(ctx context.Context, storeID uuid.UUID) error

	// PublishSnapshot notifies watchers of a snapshot change. nil payload is
	// published as an empty message.
	PublishSnapshot(ctx context.Context, storeID uuid.UUID, snap *models.SubscriptionSnapshot) error
	// SubscribeSnapshots returns a channel of raw snapshot payloads for one
	// store and a cancel func that closes the channel.
	SubscribeSnapshots(ctx context.Context, storeID uuid.UUID) (<-chan []byte, func() error)

	// Claims version caching (backed by the users table, short TTL)
	GetClaimsVersion(ctx context.Context, userID uuid.UUID) (int64, bool, error)
	SetClaimsVersion(ctx context.Context, userID uuid.UUID, version int64, ttl time.Duration) error
	DeleteClaimsVersion(ctx context.Context, userID uuid.UUID) error

	// Session management
	SetSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Rate limiting for login attempts
	IncrementAttempts(ctx context.Context, key string, window time.Duration) (int64, error)
	ResetAttempts(ctx context.Context, key string) error

	// Generic string operations for token management
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
}

// ErrCacheMiss is returned by GetString/GetSession when the key is absent.
var ErrCacheMiss = redis.Nil

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port as well as bare host:port.
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	return &redisCacheService{client: client}
}

func snapshotKey(storeID uuid.UUID) string {
	return fmt.Sprintf("repairhub:snapshot:%s", storeID.String())
}

func snapshotChannel(storeID uuid.UUID) string {
	return fmt.Sprintf("repairhub:snapshot-events:%s", storeID.String())
}

func claimsVersionKey(userID uuid.UUID) string {
	return fmt.Sprintf("repairhub:claims-ver:%s", userID.String())
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("repairhub:session:%s", sessionID)
}

func (r *redisCacheService) GetSnapshot(ctx context.Context, storeID uuid.UUID) (*models.SubscriptionSnapshot, error) {
	data, err := r.client.Get(ctx, snapshotKey(storeID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var snap models.SubscriptionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *redisCacheService) SetSnapshot(ctx context.Context, storeID uuid.UUID, snap models.SubscriptionSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, snapshotKey(storeID), data, ttl).Err()
}

func (r *redisCacheService) DeleteSnapshot(ctx context.Context, storeID uuid.UUID) error {
	return r.client.Del(ctx, snapshotKey(storeID)).Err()
}

func (r *redisCacheService) PublishSnapshot(ctx context.Context, storeID uuid.UUID, snap *models.SubscriptionSnapshot) error {
	payload := []byte{}
	if snap != nil {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		payload = data
	}
	return r.client.Publish(ctx, snapshotChannel(storeID), payload).Err()
}

func (r *redisCacheService) SubscribeSnapshots(ctx context.Context, storeID uuid.UUID) (<-chan []byte, func() error) {
	sub := r.client.Subscribe(ctx, snapshotChannel(storeID))
	out := make(chan []byte)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close
}

func (r *redisCacheService) GetClaimsVersion(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	version, err := r.client.Get(ctx, claimsVersionKey(userID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	return version, true, nil
}

func (r *redisCacheService) SetClaimsVersion(ctx context.Context, userID uuid.UUID, version int64, ttl time.Duration) error {
	return r.client.Set(ctx, claimsVersionKey(userID), version, ttl).Err()
}

func (r *redisCacheService) DeleteClaimsVersion(ctx context.Context, userID uuid.UUID) error {
	return r.client.Del(ctx, claimsVersionKey(userID)).Err()
}

func (r *redisCacheService) SetSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKey(sessionID), userID, ttl).Err()
}

func (r *redisCacheService) GetSession(ctx context.Context, sessionID string) (string, error) {
	return r.client.Get(ctx, sessionKey(sessionID)).Result()
}

func (r *redisCacheService) DeleteSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKey(sessionID)).Err()
}

func (r *redisCacheService) IncrementAttempts(ctx context.Context, key string, window time.Duration) (int64, error) {
	fullKey := fmt.Sprintf("repairhub:attempts:%s", key)
	count, err := r.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		r.client.Expire(ctx, fullKey, window)
	}
	return count, nil
}

func (r *redisCacheService) ResetAttempts(ctx context.Context, key string) error {
	return r.client.Del(ctx, fmt.Sprintf("repairhub:attempts:%s", key)).Err()
}

func (r *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *redisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
