package store

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopcn/shopcn/internal/db/repositories"
	"github.com/shopcn/shopcn/internal/middleware"
)

// PurchaseHandlers handles the buyer dashboard's purchase history
type PurchaseHandlers struct {
	ledgerRepo *repositories.LedgerRepository
}

// NewPurchaseHandlers creates a new PurchaseHandlers instance
func NewPurchaseHandlers(db *sql.DB) *PurchaseHandlers {
	return &PurchaseHandlers{
		ledgerRepo: repositories.NewLedgerRepository(db),
	}
}

// @Summary      List my purchases
// @Description  Get the caller's completed purchases with product details.
// @Tags         Purchases
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "purchases: []repositories.PurchaseRecord"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/me/purchases [get]
// ListMyPurchasesHandler lists the caller's completed purchases
// GET /api/v1/me/purchases
func (h *PurchaseHandlers) ListMyPurchasesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		purchases, err := h.ledgerRepo.ListCompletedByUser(c.Request.Context(), user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list purchases"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"purchases": purchases})
	}
}
