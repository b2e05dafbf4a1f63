package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"repairhub/internal/repositories"
	"repairhub/internal/subscription"
)

// Scheduler runs the periodic maintenance jobs: snapshot cache refresh and
// low-stock alerts. Jobs only ever read billing state; subscription status
// writes stay with the webhook path.
type Scheduler struct {
	scheduler     gocron.Scheduler
	resolver      *subscription.Resolver
	storeRepo     repositories.StoreRepository
	inventoryRepo repositories.InventoryRepository
	logger        *zap.Logger
}

func NewScheduler(resolver *subscription.Resolver, storeRepo repositories.StoreRepository,
	inventoryRepo repositories.InventoryRepository, logger *zap.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		scheduler:     sched,
		resolver:      resolver,
		storeRepo:     storeRepo,
		inventoryRepo: inventoryRepo,
		logger:        logger,
	}
	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("starting background job scheduler")
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	s.logger.Info("stopping background job scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) registerJobs() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(s.refreshSnapshotCaches, context.Background()),
		gocron.WithName("snapshot-cache-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	_, err = s.scheduler.NewJob(
		gocron.DurationJob(30*time.Minute),
		gocron.NewTask(s.checkLowStock, context.Background()),
		gocron.WithName("low-stock-alerts"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// refreshSnapshotCaches re-reads every store's billing snapshot into the
// cache so the guard path stays warm even when webhooks are quiet.
func (s *Scheduler) refreshSnapshotCaches(ctx context.Context) {
	stores, err := s.storeRepo.List(ctx, 1000, 0)
	if err != nil {
		s.logger.Error("snapshot refresh: failed to list stores", zap.Error(err))
		return
	}

	semaphore := make(chan struct{}, 5)
	var wg sync.WaitGroup
	for _, store := range stores {
		wg.Add(1)
		go func(storeID uuid.UUID) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := s.resolver.Refresh(ctx, storeID); err != nil {
				s.logger.Warn("snapshot refresh failed",
					zap.String("store_id", storeID.String()), zap.Error(err))
			}
		}(store.ID)
	}
	wg.Wait()
	s.logger.Info("snapshot cache refresh completed", zap.Int("stores", len(stores)))
}

// checkLowStock logs every store whose inventory dipped to or below the
// per-item minimum.
func (s *Scheduler) checkLowStock(ctx context.Context) {
	stores, err := s.storeRepo.List(ctx, 1000, 0)
	if err != nil {
		s.logger.Error("low stock check: failed to list stores", zap.Error(err))
		return
	}

	for _, store := range stores {
		items, err := s.inventoryRepo.ListLowStock(ctx, store.ID)
		if err != nil {
			s.logger.Warn("low stock check failed",
				zap.String("store_id", store.ID.String()), zap.Error(err))
			continue
		}
		if len(items) == 0 {
			continue
		}

		s.logger.Warn("low stock alert",
			zap.String("store_id", store.ID.String()),
			zap.String("store", store.Name),
			zap.Int("items", len(items)))
		for _, item := range items {
			s.logger.Info("low stock item",
				zap.String("store_id", store.ID.String()),
				zap.String("name", item.Name),
				zap.Int("quantity", item.Quantity),
				zap.Int("min_stock", item.MinStock))
		}
	}
}
