// drafts.go implements the seller publishing flow: the CLI uploads a raw
// registry document as a draft, an admin reviews it and promotes it to a
// published product exactly once.
package store

import (
	"database/sql"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/shopcn/shopcn/internal/config"
	"github.com/shopcn/shopcn/internal/db/models"
	"github.com/shopcn/shopcn/internal/db/repositories"
	"github.com/shopcn/shopcn/internal/middleware"
	"github.com/shopcn/shopcn/internal/validation"
	"github.com/shopcn/shopcn/pkg/checksum"
)

// uniqueViolation is the Postgres error code for unique constraint violations
const uniqueViolation = "23505"

// DraftHandlers handles draft upload and promotion endpoints
type DraftHandlers struct {
	cfg          *config.Config
	artifactRepo *repositories.ArtifactRepository
	productRepo  *repositories.ProductRepository
}

// NewDraftHandlers creates a new DraftHandlers instance
func NewDraftHandlers(cfg *config.Config, db *sql.DB) *DraftHandlers {
	return &DraftHandlers{
		cfg:          cfg,
		artifactRepo: repositories.NewArtifactRepository(db),
		productRepo:  repositories.NewProductRepository(db),
	}
}

// @Summary      Upload a draft
// @Description  Upload a raw registry JSON document as a draft artifact. Returns the draft ID and the browser URL of the publish form.
// @Tags         Drafts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "draft_id, publish_url, payload_sha256"
// @Failure      400  {object}  map[string]interface{}  "Invalid payload"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/cli/drafts [post]
// CreateDraftHandler stores an uploaded registry document as a draft
// POST /api/v1/cli/drafts
func (h *DraftHandlers) CreateDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, validation.MaxPayloadBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			return
		}

		if err := validation.ValidateArtifactPayload(payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		artifact := &models.RegistryArtifact{
			Payload:   payload,
			CreatedBy: user.ID,
		}
		if err := h.artifactRepo.CreateArtifact(c.Request.Context(), artifact); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store draft"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"draft_id":       artifact.ID,
			"publish_url":    h.cfg.Server.GetPublicURL() + "/admin/publish/" + artifact.ID,
			"payload_sha256": checksum.SHA256Hex(payload),
		})
	}
}

// @Summary      Validate a CLI key
// @Description  No-op endpoint the CLI hits after login to confirm a pasted key works.
// @Tags         Drafts
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "valid: true, user"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/cli/validate [get]
// ValidateKeyHandler confirms the presented credential authenticates
// GET /api/v1/cli/validate
func (h *DraftHandlers) ValidateKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"valid": true,
			"user":  user,
		})
	}
}

// @Summary      List drafts
// @Description  List all artifacts not yet attached to a product. Admin only.
// @Tags         Drafts
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "drafts: []models.RegistryArtifact"
// @Failure      403  {object}  map[string]interface{}  "Admin role required"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/drafts [get]
// ListDraftsHandler lists pending drafts for review
// GET /api/v1/admin/drafts
func (h *DraftHandlers) ListDraftsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		drafts, err := h.artifactRepo.ListDrafts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list drafts"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"drafts": drafts})
	}
}

// @Summary      Get draft
// @Description  Fetch a draft artifact for the publish form. Admin only.
// @Tags         Drafts
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Draft ID"
// @Success      200  {object}  models.RegistryArtifact
// @Failure      404  {object}  map[string]interface{}  "Draft not found"
// @Failure      409  {object}  map[string]interface{}  "Already published"
// @Router       /api/v1/admin/drafts/{id} [get]
// GetDraftHandler retrieves a draft for the publish form
// GET /api/v1/admin/drafts/:id
func (h *DraftHandlers) GetDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		artifact, err := h.artifactRepo.GetArtifactByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve draft"})
			return
		}

		if artifact == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Draft not found"})
			return
		}

		if !artifact.IsDraft() {
			c.JSON(http.StatusConflict, gin.H{"error": "Draft already published"})
			return
		}

		c.JSON(http.StatusOK, artifact)
	}
}

// promoteRequest is the publish form submission
type promoteRequest struct {
	DraftID     string `json:"draft_id" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
}

// @Summary      Publish a product
// @Description  Promote a draft artifact to a published product. Promotion happens exactly once per draft; slug, name, and price are fixed at publish time.
// @Tags         Drafts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "product: models.Product"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      404  {object}  map[string]interface{}  "Draft not found"
// @Failure      409  {object}  map[string]interface{}  "Already published or duplicate slug"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/admin/products [post]
// PromoteDraftHandler publishes a draft as a product
// POST /api/v1/admin/products
func (h *DraftHandlers) PromoteDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		var req promoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		if err := validation.ValidateSlug(req.Slug); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if req.PriceCents < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Price must not be negative"})
			return
		}

		artifact, err := h.artifactRepo.GetArtifactByID(c.Request.Context(), req.DraftID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve draft"})
			return
		}
		if artifact == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Draft not found"})
			return
		}
		if !artifact.IsDraft() {
			c.JSON(http.StatusConflict, gin.H{"error": "Draft already published"})
			return
		}

		product := &models.Product{
			Slug:        req.Slug,
			Name:        req.Name,
			Description: req.Description,
			PriceCents:  req.PriceCents,
			IsPublished: true,
			CreatedBy:   artifact.CreatedBy,
		}

		promoted, err := h.productRepo.PromoteDraft(c.Request.Context(), product, req.DraftID)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				c.JSON(http.StatusConflict, gin.H{"error": "A product with this slug already exists"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish product"})
			return
		}
		if !promoted {
			// Lost a race with a concurrent promotion of the same draft.
			c.JSON(http.StatusConflict, gin.H{"error": "Draft already published"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"product": product})
	}
}
