// stats.go implements the admin dashboard statistics endpoint.
package store

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/shopcn/shopcn/internal/db/repositories"
)

// StatsHandler handles the admin dashboard statistics endpoint
type StatsHandler struct {
	storeRepo *repositories.StoreRepository
}

// NewStatsHandler creates a new StatsHandler instance
func NewStatsHandler(db *sqlx.DB) *StatsHandler {
	return &StatsHandler{
		storeRepo: repositories.NewStoreRepository(db),
	}
}

// @Summary      Get store statistics
// @Description  Returns aggregate user, product, draft, purchase, and revenue counts. Admin only.
// @Tags         Stats
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  repositories.StoreStats
// @Failure      403  {object}  map[string]interface{}  "Admin role required"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/stats [get]
// GetStatsHandler returns dashboard statistics using a single database round-trip.
// GET /api/v1/admin/stats
func (h *StatsHandler) GetStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.storeRepo.GetStoreStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load store statistics"})
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}
