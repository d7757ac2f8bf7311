package accounts

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopcn/shopcn/internal/config"
	"github.com/shopcn/shopcn/internal/db/repositories"
	"github.com/shopcn/shopcn/internal/entitlement"
	"github.com/shopcn/shopcn/internal/middleware"
)

// KeyHandlers issues and manages access keys. The plaintext key appears
// exactly once in the issuance response; only its bcrypt hash is stored.
type KeyHandlers struct {
	issuer *entitlement.Issuer
	keys   *repositories.AccessKeyRepository
}

// NewKeyHandlers creates key management handlers
func NewKeyHandlers(cfg *config.Config, db *sql.DB) *KeyHandlers {
	keyRepo := repositories.NewAccessKeyRepository(db)
	issuer := entitlement.NewIssuer(keyRepo, entitlement.IssuerConfig{
		InstallPrefix: cfg.Auth.InstallKeys.Prefix,
		InstallTTL:    cfg.Auth.InstallKeys.TTL,
		CLIPrefix:     cfg.Auth.CLIKeys.Prefix,
	})
	return &KeyHandlers{issuer: issuer, keys: keyRepo}
}

// IssueInstallKeyHandler mints a short-lived single-use install key
// @Summary Issue install key
// @Description Mints a single-use install key for the authenticated account
// @Tags keys
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/v1/keys/install [post]
func (h *KeyHandlers) IssueInstallKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		issued, err := h.issuer.IssueInstallKey(c.Request.Context(), user.ID)
		if err != nil {
			slog.Error("failed to issue install key", "error", err, "user_id", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue key"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"key":        issued.PlainKey,
			"expires_at": issued.Key.ExpiresAt,
		})
	}
}

// IssueCLIKeyHandler mints a long-lived CLI key for the admin's own account
// @Summary Issue CLI key
// @Description Mints a long-lived CLI key for authenticating publish and validate calls
// @Tags keys
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/v1/admin/keys/cli [post]
func (h *KeyHandlers) IssueCLIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		issued, err := h.issuer.IssueCLIKey(c.Request.Context(), user.ID)
		if err != nil {
			slog.Error("failed to issue CLI key", "error", err, "user_id", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue key"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"key": issued.PlainKey})
	}
}

// ListKeysHandler lists the caller's access keys. Hashes are never serialized;
// the display prefix is all a client needs to recognize a key.
// @Summary List access keys
// @Description Lists the authenticated account's access keys (metadata only, never plaintext)
// @Tags keys
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/v1/keys [get]
func (h *KeyHandlers) ListKeysHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		keys, err := h.keys.ListAccessKeysByUser(c.Request.Context(), user.ID)
		if err != nil {
			slog.Error("failed to list access keys", "error", err, "user_id", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list keys"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"keys": keys})
	}
}

// RevokeKeyHandler deletes one of the caller's access keys. Keys owned by
// other accounts look nonexistent, so key IDs cannot be probed.
// @Summary Revoke access key
// @Description Deletes one of the authenticated account's access keys
// @Tags keys
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/keys/{id} [delete]
func (h *KeyHandlers) RevokeKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		keyID := c.Param("id")
		key, err := h.keys.GetAccessKeyByID(c.Request.Context(), keyID)
		if err != nil {
			slog.Error("failed to load access key", "error", err, "key_id", keyID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke key"})
			return
		}
		if key == nil || key.UserID != user.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "Key not found"})
			return
		}

		if err := h.keys.RevokeAccessKey(c.Request.Context(), keyID); err != nil {
			slog.Error("failed to revoke access key", "error", err, "key_id", keyID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke key"})
			return
		}

		slog.Info("access key revoked", "key_id", keyID, "user_id", user.ID)
		c.JSON(http.StatusOK, gin.H{"message": "Key revoked"})
	}
}
