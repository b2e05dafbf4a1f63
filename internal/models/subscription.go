package models

import "time"

// Subscription statuses mirrored from the payment processor. Only the
// webhook path and an explicit owner cancel ever change Status.
const (
	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
	SubscriptionTrialing = "trialing"
)

// SubscriptionSnapshot is the denormalized copy of billing state embedded
// in a store record. Clients never write it directly.
type SubscriptionSnapshot struct {
	Status            string     `json:"status" db:"subscription_status"`
	PriceID           *string    `json:"price_id" db:"subscription_price_id"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end" db:"subscription_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end" db:"subscription_cancel_at_period_end"`
	Features          []string   `json:"features" db:"subscription_features"`
}

// DefaultSnapshot is what a store without any billing record is entitled
// to: nothing beyond the basic tier, and no subscription-gated routes.
func DefaultSnapshot() SubscriptionSnapshot {
	return SubscriptionSnapshot{
		Status:   SubscriptionInactive,
		Features: []string{"basic"},
	}
}
