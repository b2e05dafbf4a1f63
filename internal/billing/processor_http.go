package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/gommon/random"
)

// httpProcessorClient talks to the payment processor's REST API with
// form-encoded requests and basic-auth on the secret key, which is how the
// hosted checkout providers expose subscriptions.
type httpProcessorClient struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

func NewHTTPProcessorClient(secretKey, baseURL string) ProcessorClient {
	if baseURL == "" {
		baseURL = "https://api.stripe.com/v1"
	}
	return &httpProcessorClient{
		secretKey: secretKey,
		baseURL:   baseURL,
		http:      &http.Client{},
	}
}

func (c *httpProcessorClient) CreateCustomer(ctx context.Context, email string, storeID string) (*Customer, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("metadata[store_id]", storeID)

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/customers", form, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (c *httpProcessorClient) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)

	var sess CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", form, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *httpProcessorClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", returnURL)

	var sess PortalSession
	if err := c.do(ctx, http.MethodPost, "/billing_portal/sessions", form, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *httpProcessorClient) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*ProcessorSubscription, error) {
	form := url.Values{}
	form.Set("cancel_at_period_end", fmt.Sprintf("%t", cancel))

	var sub processorSubscriptionPayload
	path := "/subscriptions/" + url.PathEscape(subscriptionID)
	if err := c.do(ctx, http.MethodPost, path, form, &sub); err != nil {
		return nil, err
	}
	return sub.toSubscription(), nil
}

// processorSubscriptionPayload matches the processor's wire shape, where
// the price id sits inside the line items.
type processorSubscriptionPayload struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	Items             struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (p *processorSubscriptionPayload) toSubscription() *ProcessorSubscription {
	sub := &ProcessorSubscription{
		ID:                p.ID,
		CustomerID:        p.Customer,
		Status:            p.Status,
		CurrentPeriodEnd:  p.CurrentPeriodEnd,
		CancelAtPeriodEnd: p.CancelAtPeriodEnd,
	}
	if len(p.Items.Data) > 0 {
		sub.PriceID = p.Items.Data[0].Price.ID
	}
	return sub
}

func (c *httpProcessorClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	req.SetBasicAuth(c.secretKey, "")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", random.String(24))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrProcessor, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrProcessor, method, path, resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrProcessor, err)
		}
	}
	return nil
}
