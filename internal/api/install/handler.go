// Package install serves the component install endpoint consumed by the CLI.
// This is the hot path of the entire service: every `shopcn add <slug>` ends
// up here, and the response is the raw registry JSON or a deny.
package install

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopcn/shopcn/internal/entitlement"
	"github.com/shopcn/shopcn/pkg/checksum"
)

// Handler serves authorized artifact downloads
type Handler struct {
	authorizer *entitlement.Authorizer
}

// NewHandler creates a new install Handler
func NewHandler(authorizer *entitlement.Authorizer) *Handler {
	return &Handler{authorizer: authorizer}
}

// @Summary      Install a component
// @Description  Returns the raw registry JSON for a purchased component. The install key is single-use and consumed on success.
// @Tags         Install
// @Produce      json
// @Param        slug  path   string  true  "Product slug"
// @Param        key   query  string  true  "Install key"
// @Success      200  {object}  map[string]interface{}  "Raw registry JSON"
// @Failure      400  {object}  map[string]interface{}  "Missing key"
// @Failure      401  {object}  map[string]interface{}  "Invalid key"
// @Failure      403  {object}  map[string]interface{}  "Product not purchased"
// @Failure      404  {object}  map[string]interface{}  "Unknown product"
// @Router       /install/{slug} [get]
// InstallHandler authorizes and serves a component install.
// GET /install/:slug?key=shopcn_...
func (h *Handler) InstallHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("slug")

		rawKey := c.Query("key")
		if rawKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Missing install key",
			})
			return
		}

		payload, err := h.authorizer.Authorize(c.Request.Context(), slug, rawKey)
		if err != nil {
			status, msg := denyStatus(err)
			if status == http.StatusInternalServerError {
				slog.Error("install authorization failed", "slug", slug, "error", err)
				msg = "Install failed"
			}
			c.JSON(status, gin.H{"error": msg})
			return
		}

		// The payload is stored as validated JSON; serve it verbatim. The
		// ETag lets a client that retries with a fresh key skip the body.
		c.Header("ETag", `"`+checksum.SHA256Hex(payload)+`"`)
		c.Data(http.StatusOK, "application/json", payload)
	}
}

// denyStatus maps the authorizer's deny taxonomy to HTTP statuses
func denyStatus(err error) (int, string) {
	switch {
	case errors.Is(err, entitlement.ErrInvalidKey):
		return http.StatusUnauthorized, "Invalid or expired install key"
	case errors.Is(err, entitlement.ErrNotFound):
		return http.StatusNotFound, "Component not found"
	case errors.Is(err, entitlement.ErrForbidden):
		return http.StatusForbidden, "Component not purchased"
	default:
		return http.StatusInternalServerError, ""
	}
}
