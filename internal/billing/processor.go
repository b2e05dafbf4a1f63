package billing

import (
	"context"
	"errors"
)

// Customer is the processor-side customer record for a store.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CheckoutSession is the opaque handle a client redirects to for payment.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PortalSession is the self-service billing portal handle.
type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ProcessorSubscription is the slice of the processor's subscription object
// the core consumes. Nothing beyond these fields is ever interpreted.
type ProcessorSubscription struct {
	ID                string `json:"id"`
	CustomerID        string `json:"customer"`
	Status            string `json:"status"`
	PriceID           string `json:"price_id"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

// ErrProcessor marks failures originating from the payment processor; the
// underlying response text is logged, never shown to end users.
var ErrProcessor = errors.New("payment processor error")

// ProcessorClient is the payment-processor boundary: opaque remote calls
// that either succeed or fail with a typed error.
type ProcessorClient interface {
	CreateCustomer(ctx context.Context, email string, storeID string) (*Customer, error)
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error)
	// SetCancelAtPeriodEnd flips the cancel flag on an active processor
	// subscription and returns the updated object.
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*ProcessorSubscription, error)
}
