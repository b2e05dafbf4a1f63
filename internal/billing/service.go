package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"repairhub/internal/apperrors"
	"repairhub/internal/caching"
	"repairhub/internal/models"
	"repairhub/internal/repositories"
	"repairhub/internal/subscription"
)

// Service owns every write to a store's billing state. The snapshot columns
// are only ever touched here: by the webhook after signature verification,
// or by an explicit cancel from an authorized caller.
type Service interface {
	CreateCheckoutSession(ctx context.Context, userID, storeID uuid.UUID, planID, successURL, cancelURL string) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, userID, storeID uuid.UUID, returnURL string) (*PortalSession, error)
	CancelSubscription(ctx context.Context, userID, storeID uuid.UUID) error
	// HandleWebhook verifies the signature over the raw body and applies the
	// event. Invalid signatures reject before any state is read or written.
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

type service struct {
	storeRepo     repositories.StoreRepository
	userRepo      repositories.UserRepository
	cacheSvc      caching.CacheService
	processor     ProcessorClient
	logger        *zap.Logger
	webhookSecret string
}

func NewService(storeRepo repositories.StoreRepository, userRepo repositories.UserRepository,
	cacheSvc caching.CacheService, processor ProcessorClient, logger *zap.Logger,
	webhookSecret string) Service {
	return &service{
		storeRepo:     storeRepo,
		userRepo:      userRepo,
		cacheSvc:      cacheSvc,
		processor:     processor,
		logger:        logger,
		webhookSecret: webhookSecret,
	}
}

// authorizeBillingWrite loads the caller and checks they hold admin-level
// access to this store. Owners and admins both manage billing; platform
// operators pass for any store.
func (s *service) authorizeBillingWrite(ctx context.Context, userID, storeID uuid.UUID) (*models.User, error) {
	user, err := s.resolveStoreMember(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}
	if !user.Role.IsStoreAdmin() {
		return nil, apperrors.E(apperrors.PermissionDenied, "not allowed to manage billing", nil)
	}
	return user, nil
}

// resolveStoreMember loads the caller and checks they belong to the store.
// Platform operators pass for any store.
func (s *service) resolveStoreMember(ctx context.Context, userID, storeID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role.IsPlatformOperator() {
		return user, nil
	}
	if user.StoreID == nil || *user.StoreID != storeID {
		return nil, apperrors.E(apperrors.PermissionDenied, "not allowed to manage billing for this store", nil)
	}
	return user, nil
}

func (s *service) CreateCheckoutSession(ctx context.Context, userID, storeID uuid.UUID, planID, successURL, cancelURL string) (*CheckoutSession, error) {
	user, err := s.resolveStoreMember(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}

	plan, ok := subscription.AvailablePlans()[planID]
	if !ok || plan.PriceID == "" {
		return nil, apperrors.E(apperrors.NotFound, "unknown plan", nil)
	}

	store, err := s.storeRepo.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}

	// Store admins may always start checkout. Other staff may only do so
	// while the store's current subscription is still active, e.g. to move
	// to a different plan before renewal.
	if !user.Role.IsStoreAdmin() && !subscription.IsActive(store.Subscription) {
		return nil, apperrors.E(apperrors.PermissionDenied, "not allowed to start checkout", nil)
	}

	customerID, err := s.ensureCustomer(ctx, store, user.Email)
	if err != nil {
		return nil, err
	}

	sess, err := s.processor.CreateCheckoutSession(ctx, customerID, plan.PriceID, successURL, cancelURL)
	if err != nil {
		s.logger.Error("checkout session creation failed",
			zap.String("store_id", storeID.String()), zap.Error(err))
		return nil, apperrors.E(apperrors.Internal, "failed to start checkout", err)
	}
	return sess, nil
}

func (s *service) CreatePortalSession(ctx context.Context, userID, storeID uuid.UUID, returnURL string) (*PortalSession, error) {
	if _, err := s.authorizeBillingWrite(ctx, userID, storeID); err != nil {
		return nil, err
	}

	store, err := s.storeRepo.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store.PaymentCustomerID == nil || *store.PaymentCustomerID == "" {
		return nil, apperrors.E(apperrors.FailedPrecondition, "store has no billing account yet", nil)
	}

	sess, err := s.processor.CreatePortalSession(ctx, *store.PaymentCustomerID, returnURL)
	if err != nil {
		s.logger.Error("portal session creation failed",
			zap.String("store_id", storeID.String()), zap.Error(err))
		return nil, apperrors.E(apperrors.Internal, "failed to open billing portal", err)
	}
	return sess, nil
}

func (s *service) CancelSubscription(ctx context.Context, userID, storeID uuid.UUID) error {
	if _, err := s.authorizeBillingWrite(ctx, userID, storeID); err != nil {
		return err
	}

	store, err := s.storeRepo.GetByID(ctx, storeID)
	if err != nil {
		return err
	}
	if store.SubscriptionID == nil || *store.SubscriptionID == "" {
		return apperrors.E(apperrors.FailedPrecondition, "store has no subscription to cancel", nil)
	}

	sub, err := s.processor.SetCancelAtPeriodEnd(ctx, *store.SubscriptionID, true)
	if err != nil {
		s.logger.Error("subscription cancel failed",
			zap.String("store_id", storeID.String()), zap.Error(err))
		return apperrors.E(apperrors.Internal, "failed to cancel subscription", err)
	}

	// Reflect the processor's answer locally; the subscription stays active
	// until the period ends, only the flag flips.
	if err := s.storeRepo.SetCancelAtPeriodEnd(ctx, storeID, sub.CancelAtPeriodEnd); err != nil {
		return err
	}

	snap := store.Subscription
	snap.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	s.refreshCaches(ctx, storeID, snap)
	return nil
}

func (s *service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !VerifyWebhookSignature(body, signature, s.webhookSecret) {
		return apperrors.E(apperrors.Unauthenticated, "invalid webhook signature", nil)
	}

	event, err := ParseWebhookEvent(body)
	if err != nil {
		return apperrors.E(apperrors.Internal, "malformed webhook payload", err)
	}

	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return s.applySubscriptionUpsert(ctx, event)
	case EventSubscriptionDeleted:
		return s.applySubscriptionDeleted(ctx, event)
	default:
		// Acknowledged, ignored, no retries.
		s.logger.Debug("ignoring webhook event", zap.String("type", event.Type))
		return nil
	}
}

func (s *service) applySubscriptionUpsert(ctx context.Context, event *WebhookEvent) error {
	sub, store, err := s.subscriptionStore(ctx, event)
	if err != nil || sub == nil {
		return err
	}

	if err := s.storeRepo.SetSubscriptionID(ctx, store.ID, &sub.ID); err != nil {
		return err
	}

	snap := snapshotFromProcessor(sub)
	if err := s.storeRepo.UpdateSnapshot(ctx, store.ID, snap); err != nil {
		return err
	}

	s.logger.Info("subscription snapshot updated",
		zap.String("store_id", store.ID.String()),
		zap.String("status", snap.Status))
	s.refreshCaches(ctx, store.ID, snap)
	return nil
}

func (s *service) applySubscriptionDeleted(ctx context.Context, event *WebhookEvent) error {
	sub, store, err := s.subscriptionStore(ctx, event)
	if err != nil || sub == nil {
		return err
	}

	if err := s.storeRepo.SetSubscriptionID(ctx, store.ID, nil); err != nil {
		return err
	}

	snap := models.DefaultSnapshot()
	snap.Status = models.SubscriptionCanceled
	if err := s.storeRepo.UpdateSnapshot(ctx, store.ID, snap); err != nil {
		return err
	}

	s.logger.Info("subscription canceled", zap.String("store_id", store.ID.String()))
	s.refreshCaches(ctx, store.ID, snap)
	return nil
}

// subscriptionStore decodes the event object and resolves the store that
// owns the processor customer. An unknown customer is logged and dropped
// rather than retried forever.
func (s *service) subscriptionStore(ctx context.Context, event *WebhookEvent) (*ProcessorSubscription, *models.Store, error) {
	var payload processorSubscriptionPayload
	if err := json.Unmarshal(event.Data.Object, &payload); err != nil {
		return nil, nil, apperrors.E(apperrors.Internal, "malformed subscription object", err)
	}
	sub := payload.toSubscription()

	store, err := s.storeRepo.GetByPaymentCustomerID(ctx, sub.CustomerID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.NotFound {
			s.logger.Warn("webhook for unknown customer",
				zap.String("customer_id", sub.CustomerID),
				zap.String("event_id", event.ID))
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return sub, store, nil
}

// ensureCustomer lazily creates the processor-side customer on first
// checkout and persists its id on the store record.
func (s *service) ensureCustomer(ctx context.Context, store *models.Store, email string) (string, error) {
	if store.PaymentCustomerID != nil && *store.PaymentCustomerID != "" {
		return *store.PaymentCustomerID, nil
	}

	customer, err := s.processor.CreateCustomer(ctx, email, store.ID.String())
	if err != nil {
		s.logger.Error("customer creation failed",
			zap.String("store_id", store.ID.String()), zap.Error(err))
		return "", apperrors.E(apperrors.Internal, "failed to create billing account", err)
	}

	if err := s.storeRepo.SetPaymentCustomerID(ctx, store.ID, customer.ID); err != nil {
		return "", err
	}
	store.PaymentCustomerID = &customer.ID
	return customer.ID, nil
}

// refreshCaches drops the stale snapshot cache entry and notifies watchers.
// Both are best effort; readers fall back to the store record.
func (s *service) refreshCaches(ctx context.Context, storeID uuid.UUID, snap models.SubscriptionSnapshot) {
	if err := s.cacheSvc.DeleteSnapshot(ctx, storeID); err != nil {
		s.logger.Warn("snapshot cache invalidation failed", zap.Error(err))
	}
	if err := s.cacheSvc.PublishSnapshot(ctx, storeID, &snap); err != nil {
		s.logger.Warn("snapshot publish failed", zap.Error(err))
	}
}

func snapshotFromProcessor(sub *ProcessorSubscription) models.SubscriptionSnapshot {
	snap := models.SubscriptionSnapshot{
		Status:            normalizeStatus(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Features:          []string{"basic"},
	}
	if sub.PriceID != "" {
		priceID := sub.PriceID
		snap.PriceID = &priceID
		if plan, ok := subscription.PlanByPriceID(priceID); ok {
			snap.Features = plan.Features
		}
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		snap.CurrentPeriodEnd = &end
	}
	return snap
}

// normalizeStatus maps processor statuses onto the ones the access layer
// understands. Anything unrecognized fails closed to inactive.
func normalizeStatus(status string) string {
	switch status {
	case models.SubscriptionActive, models.SubscriptionTrialing,
		models.SubscriptionPastDue, models.SubscriptionCanceled:
		return status
	case "incomplete", "incomplete_expired", "unpaid", "paused":
		return models.SubscriptionInactive
	default:
		return models.SubscriptionInactive
	}
}
