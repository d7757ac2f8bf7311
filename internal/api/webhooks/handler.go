// Package webhooks receives payment provider event deliveries. The endpoint
// is unauthenticated; authenticity comes from the signature header, which the
// reconciler verifies before anything else is parsed.
package webhooks

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopcn/shopcn/internal/entitlement"
	"github.com/shopcn/shopcn/internal/payments"
)

// maxDeliveryBytes caps webhook bodies. Real provider deliveries are a few
// KB; anything larger is garbage.
const maxDeliveryBytes = 64 << 10

// signatureHeader carries the provider's HMAC over the raw body
const signatureHeader = "Stripe-Signature"

// Handler processes payment webhook deliveries
type Handler struct {
	reconciler *entitlement.Reconciler
}

// NewHandler creates a webhook handler
func NewHandler(reconciler *entitlement.Reconciler) *Handler {
	return &Handler{reconciler: reconciler}
}

// PaymentWebhookHandler handles a payment provider event delivery
// @Summary Receive payment webhook
// @Description Verifies and reconciles a payment provider event against the purchase ledger
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /webhooks/payment [post]
func (h *Handler) PaymentWebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDeliveryBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			return
		}
		if len(payload) > maxDeliveryBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Payload too large"})
			return
		}

		result, err := h.reconciler.HandleDelivery(c.Request.Context(), payload, c.GetHeader(signatureHeader))
		if err != nil {
			if errors.Is(err, entitlement.ErrInvalidSignature) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook signature"})
				return
			}
			if errors.Is(err, payments.ErrUnavailable) {
				// A non-2xx tells the provider to redeliver once it is back.
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment provider unavailable"})
				return
			}
			slog.Error("webhook processing failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"result": string(result)})
	}
}
