// Package store implements the marketplace's browse and publish surface:
// public product listings, seller draft uploads, admin draft promotion, and
// the buyer's purchase history.
package store

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/shopcn/shopcn/internal/db/repositories"
)

// ProductHandlers handles public product browsing endpoints
type ProductHandlers struct {
	storeRepo *repositories.StoreRepository
}

// NewProductHandlers creates a new ProductHandlers instance
func NewProductHandlers(db *sqlx.DB) *ProductHandlers {
	return &ProductHandlers{
		storeRepo: repositories.NewStoreRepository(db),
	}
}

// @Summary      List products
// @Description  Get all published products with seller attribution.
// @Tags         Products
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "products: []repositories.ProductListing"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/products [get]
// ListProductsHandler lists published products
// GET /api/v1/products
func (h *ProductHandlers) ListProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		listings, err := h.storeRepo.ListPublishedListings(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to list products",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"products": listings,
		})
	}
}

// @Summary      Get product
// @Description  Get a published product by slug. Unpublished products return 404.
// @Tags         Products
// @Produce      json
// @Param        slug  path  string  true  "Product slug"
// @Success      200  {object}  repositories.ProductListing
// @Failure      404  {object}  map[string]interface{}  "Product not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/products/{slug} [get]
// GetProductHandler retrieves a published product by slug
// GET /api/v1/products/:slug
func (h *ProductHandlers) GetProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		listing, err := h.storeRepo.GetListingBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retrieve product",
			})
			return
		}

		if listing == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Product not found",
			})
			return
		}

		c.JSON(http.StatusOK, listing)
	}
}
