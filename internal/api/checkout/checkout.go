// Package checkout implements the purchase flow: opening a hosted payment
// session with the provider and exposing its completion state to the buyer's
// dashboard. The ledger entry is created pending here and flipped to
// completed only by the webhook reconciler.
package checkout

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopcn/shopcn/internal/config"
	"github.com/shopcn/shopcn/internal/db/models"
	"github.com/shopcn/shopcn/internal/db/repositories"
	"github.com/shopcn/shopcn/internal/middleware"
	"github.com/shopcn/shopcn/internal/payments"
	"github.com/shopcn/shopcn/internal/telemetry"
)

// Handlers handles checkout session endpoints
type Handlers struct {
	cfg         *config.Config
	provider    payments.Provider
	productRepo *repositories.ProductRepository
	ledgerRepo  *repositories.LedgerRepository
}

// NewHandlers creates a new checkout Handlers instance
func NewHandlers(cfg *config.Config, db *sql.DB, provider payments.Provider) *Handlers {
	return &Handlers{
		cfg:         cfg,
		provider:    provider,
		productRepo: repositories.NewProductRepository(db),
		ledgerRepo:  repositories.NewLedgerRepository(db),
	}
}

// checkoutRequest is the body of POST /api/v1/checkout
type checkoutRequest struct {
	ProductID  string `json:"product_id" binding:"required"`
	SuccessURL string `json:"success_url" binding:"required"`
	CancelURL  string `json:"cancel_url" binding:"required"`
}

// @Summary      Start a checkout
// @Description  Opens a hosted payment session for a published product and records a pending ledger entry. Rejects repeat purchases.
// @Tags         Checkout
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "checkout_id, checkout_url"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      404  {object}  map[string]interface{}  "Product not found"
// @Failure      409  {object}  map[string]interface{}  "Already purchased"
// @Failure      503  {object}  map[string]interface{}  "Payment provider unavailable"
// @Router       /api/v1/checkout [post]
// CreateCheckoutHandler opens a payment session for the caller
// POST /api/v1/checkout
func (h *Handlers) CreateCheckoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req checkoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		product, err := h.productRepo.GetProductByID(c.Request.Context(), req.ProductID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve product"})
			return
		}
		if product == nil || !product.IsPublished {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}

		// Pre-check the ledger so a buyer cannot pay twice for the same
		// product. Two simultaneous checkouts can both pass this check; the
		// window is accepted and at most one session completes into an
		// entitlement per (product, buyer).
		owned, err := h.ledgerRepo.HasCompletedPurchase(c.Request.Context(), product.ID, user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check purchase history"})
			return
		}
		if owned {
			c.JSON(http.StatusConflict, gin.H{"error": "Product already purchased"})
			return
		}

		session, err := h.provider.CreateSession(c.Request.Context(), payments.CheckoutRequest{
			ProductName: product.Name,
			ProductSlug: product.Slug,
			PriceCents:  product.PriceCents,
			Currency:    h.cfg.Payments.Currency,
			BuyerEmail:  user.Email,
			SuccessURL:  req.SuccessURL,
			CancelURL:   req.CancelURL,
		})
		if err != nil {
			if errors.Is(err, payments.ErrUnavailable) {
				telemetry.CheckoutSessionsTotal.WithLabelValues("provider_error").Inc()
				slog.Error("checkout session creation failed", "product", product.Slug, "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment provider unavailable, try again later"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open checkout session"})
			return
		}

		entry := &models.LedgerEntry{
			ProductID:         product.ID,
			OwnedBy:           user.ID,
			CheckoutSessionID: session.ID,
			PaymentCompleted:  false,
		}
		if err := h.ledgerRepo.CreateEntry(c.Request.Context(), entry); err != nil {
			// The session exists at the provider but we cannot track it. The
			// buyer can retry; the orphaned session expires on its own and
			// the webhook for it will be dropped as unmatched.
			slog.Error("failed to record pending purchase", "session", session.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record checkout"})
			return
		}

		telemetry.CheckoutSessionsTotal.WithLabelValues("created").Inc()

		c.JSON(http.StatusCreated, gin.H{
			"checkout_id":  session.ID,
			"checkout_url": session.URL,
		})
	}
}

// @Summary      Get checkout status
// @Description  Returns whether the checkout session's payment has completed. Callers poll this after returning from the hosted payment page.
// @Tags         Checkout
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Checkout session ID"
// @Success      200  {object}  map[string]interface{}  "payment_completed: bool"
// @Failure      404  {object}  map[string]interface{}  "Unknown session"
// @Router       /api/v1/checkout/{id}/status [get]
// CheckoutStatusHandler reports a session's ledger state
// GET /api/v1/checkout/:id/status
func (h *Handlers) CheckoutStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		entry, err := h.ledgerRepo.GetEntryBySessionID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve checkout"})
			return
		}

		// Another buyer's session is indistinguishable from an unknown one.
		if entry == nil || entry.OwnedBy != user.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "Checkout not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"payment_completed": entry.PaymentCompleted,
		})
	}
}
