package subscription

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"repairhub/internal/apperrors"
	"repairhub/internal/caching"
	"repairhub/internal/models"
	"repairhub/internal/repositories"
)

const snapshotCacheTTL = 30 * time.Second

// Resolver reads and caches the denormalized billing snapshot used by the
// subscription guard. It only ever reads; snapshot writes belong to the
// billing service.
type Resolver struct {
	storeRepo repositories.StoreRepository
	cacheSvc  caching.CacheService
	logger    *zap.Logger
}

func NewResolver(storeRepo repositories.StoreRepository, cacheSvc caching.CacheService, logger *zap.Logger) *Resolver {
	return &Resolver{storeRepo: storeRepo, cacheSvc: cacheSvc, logger: logger}
}

// IsActive reports whether the snapshot entitles access to
// subscription-gated routes.
func IsActive(snap models.SubscriptionSnapshot) bool {
	return snap.Status == models.SubscriptionActive
}

// HasFeature reports whether the snapshot's feature list contains name.
func HasFeature(snap models.SubscriptionSnapshot, name string) bool {
	for _, f := range snap.Features {
		if f == name {
			return true
		}
	}
	return false
}

// Fetch returns the store's current snapshot. A missing store record or a
// permission failure is not an error: both mean "no active entitlement"
// and yield the default inactive snapshot, so callers route to an upgrade
// flow instead of erroring out. Other read failures degrade the same way
// but are logged.
func (r *Resolver) Fetch(ctx context.Context, storeID uuid.UUID) (models.SubscriptionSnapshot, error) {
	if cached, err := r.cacheSvc.GetSnapshot(ctx, storeID); err == nil && cached != nil {
		return *cached, nil
	}

	snap, err := r.storeRepo.GetSnapshot(ctx, storeID)
	if err != nil {
		switch apperrors.CodeOf(err) {
		case apperrors.NotFound, apperrors.PermissionDenied:
			return models.DefaultSnapshot(), nil
		default:
			r.logger.Warn("snapshot read failed, treating as inactive",
				zap.String("store_id", storeID.String()), zap.Error(err))
			return models.DefaultSnapshot(), nil
		}
	}
	if snap.Status == "" {
		snap = models.DefaultSnapshot()
	}

	if err := r.cacheSvc.SetSnapshot(ctx, storeID, snap, snapshotCacheTTL); err != nil {
		r.logger.Warn("snapshot cache write failed", zap.Error(err))
	}
	return snap, nil
}

// Refresh re-reads the store snapshot and rewrites the cache entry. Used by
// the maintenance job; read-only with respect to the store record.
func (r *Resolver) Refresh(ctx context.Context, storeID uuid.UUID) error {
	snap, err := r.storeRepo.GetSnapshot(ctx, storeID)
	if err != nil {
		return err
	}
	return r.cacheSvc.SetSnapshot(ctx, storeID, snap, snapshotCacheTTL)
}

// Unsubscribe stops a watch. After it returns, the callback is never
// invoked again.
type Unsubscribe func()

// Watch delivers the store's snapshot to fn once immediately and then on
// every published change, until unsubscribed. A terminal transport error
// delivers a single fn(nil) and stops.
func (r *Resolver) Watch(ctx context.Context, storeID uuid.UUID, fn func(*models.SubscriptionSnapshot)) (Unsubscribe, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	events, closeSub := r.cacheSvc.SubscribeSnapshots(watchCtx, storeID)

	var mu sync.Mutex
	stopped := false

	deliver := func(snap *models.SubscriptionSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		fn(snap)
	}
	stop := func() {
		mu.Lock()
		stopped = true
		mu.Unlock()
	}

	// Immediate delivery of the current state.
	current, err := r.Fetch(watchCtx, storeID)
	if err != nil {
		cancel()
		_ = closeSub()
		return nil, err
	}
	deliver(&current)

	go func() {
		defer cancel()
		for {
			select {
			case payload, ok := <-events:
				if !ok {
					// Terminal transport failure: one nil, then silence.
					deliver(nil)
					stop()
					return
				}
				if len(payload) == 0 {
					deliver(nil)
					continue
				}
				var snap models.SubscriptionSnapshot
				if err := json.Unmarshal(payload, &snap); err != nil {
					r.logger.Warn("discarding malformed snapshot event", zap.Error(err))
					continue
				}
				deliver(&snap)
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return func() {
		stop()
		cancel()
		_ = closeSub()
	}, nil
}
