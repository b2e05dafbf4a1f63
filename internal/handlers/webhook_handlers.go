package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"repairhub/internal/apperrors"
	"repairhub/internal/billing"
)

// SignatureHeader carries the processor's HMAC over the raw request body.
const SignatureHeader = "X-Webhook-Signature"

// WebhookHandlers receives payment processor callbacks. This endpoint is
// unauthenticated; the HMAC signature is the only trust anchor, so nothing
// is read or written before it verifies.
type WebhookHandlers struct {
	billingSvc billing.Service
	logger     *zap.Logger
}

func NewWebhookHandlers(billingSvc billing.Service, logger *zap.Logger) *WebhookHandlers {
	return &WebhookHandlers{billingSvc: billingSvc, logger: logger}
}

// HandleBillingWebhook verifies and applies one processor event. Unknown
// event types return 200 so the processor stops retrying; signature
// failures return 401 with no state change.
func (h *WebhookHandlers) HandleBillingWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}

	signature := c.Request().Header.Get(SignatureHeader)
	if err := h.billingSvc.HandleWebhook(ctx, body, signature); err != nil {
		code := apperrors.CodeOf(err)
		if code == apperrors.Unauthenticated {
			h.logger.Warn("webhook signature verification failed",
				zap.String("remote", c.RealIP()))
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid signature")
		}
		h.logger.Error("webhook processing failed", zap.Error(err))
		// Non-2xx makes the processor retry, which is what we want for
		// transient store failures.
		return echo.NewHTTPError(http.StatusInternalServerError, "Webhook processing failed")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
