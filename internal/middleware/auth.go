// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, security headers, and request tracing.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Auth populates the user identity and role; RequireAdmin reads from that context.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopcn/shopcn/internal/auth"
	"github.com/shopcn/shopcn/internal/db/models"
	"github.com/shopcn/shopcn/internal/db/repositories"
	"github.com/shopcn/shopcn/internal/safego"
)

// Context keys set by AuthMiddleware.
const (
	UserContextKey       = "user"
	UserIDContextKey     = "user_id"
	RoleContextKey       = "role"
	AuthMethodContextKey = "auth_method"
	AccessKeyContextKey  = "access_key"
)

// AuthMiddleware validates authentication (JWT session or CLI access key).
//
// Install keys never pass this middleware: they are single-purpose credentials
// consumed by the install endpoint itself, not session credentials. Only keys
// with the cli scope authenticate API requests.
func AuthMiddleware(userRepo *repositories.UserRepository, keyRepo *repositories.AccessKeyRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		// Try JWT first. JWT validation is entirely stateless — it requires
		// only a cryptographic check against the JWT secret with no database
		// round-trip. Access key validation always requires a DB query
		// (prefix lookup + bcrypt comparison), so JWT is the lower-latency
		// path for browser sessions.
		if claims, err := auth.ValidateJWT(token); err == nil {
			user, err := userRepo.GetUserByID(c.Request.Context(), claims.UserID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to load user",
				})
				return
			}

			if user == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "User not found",
				})
				return
			}

			c.Set(UserContextKey, user)
			c.Set(UserIDContextKey, user.ID)
			c.Set(RoleContextKey, user.Role)
			c.Set(AuthMethodContextKey, "jwt")

			c.Next()
			return
		}

		// Try CLI access key.
		// We never store the raw key — only its bcrypt hash. The 10-character
		// prefix is stored plaintext alongside the hash so we can do a fast
		// indexed DB query to narrow the candidate set, then run the expensive
		// bcrypt comparison only on those few rows. Without the prefix, every
		// request would require scanning the entire access_keys table and
		// running bcrypt on each row.
		key, err := authenticateAccessKey(c.Request.Context(), token, keyRepo)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Authentication failed",
			})
			return
		}

		if key != nil {
			if key.Scope != models.ScopeCLI {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Install keys cannot authenticate API requests",
				})
				return
			}

			if key.IsExpired(time.Now()) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Access key expired",
				})
				return
			}

			user, err := userRepo.GetUserByID(c.Request.Context(), key.UserID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to load user",
				})
				return
			}

			if user == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "User not found",
				})
				return
			}

			// Update last-used timestamp asynchronously. This is intentionally
			// fire-and-forget: last-used tracking is best-effort and a failed
			// update is not a correctness problem. The 5-second timeout
			// prevents leaked goroutines if the DB is temporarily unreachable.
			safego.Go(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = keyRepo.UpdateLastUsed(ctx, key.ID)
			})

			c.Set(UserContextKey, user)
			c.Set(UserIDContextKey, user.ID)
			c.Set(RoleContextKey, user.Role)
			c.Set(AuthMethodContextKey, "access_key")
			c.Set(AccessKeyContextKey, key)

			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid credentials",
		})
	}
}

// RequireAdmin aborts with 403 unless AuthMiddleware resolved an admin user.
// Role is checked at request time rather than trusted from the JWT claim so
// that a role change takes effect on the user's next request without needing
// to invalidate or reissue their token.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userVal, exists := c.Get(UserContextKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		user, ok := userVal.(*models.User)
		if !ok || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin role required",
			})
			return
		}

		c.Next()
	}
}

// CurrentUser returns the authenticated user set by AuthMiddleware, or nil.
func CurrentUser(c *gin.Context) *models.User {
	userVal, exists := c.Get(UserContextKey)
	if !exists {
		return nil
	}
	user, ok := userVal.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// authenticateAccessKey resolves a raw bearer key by prefix lookup and bcrypt
// comparison against each candidate.
func authenticateAccessKey(ctx context.Context, providedKey string, keyRepo *repositories.AccessKeyRepository) (*models.AccessKey, error) {
	keys, err := keyRepo.GetAccessKeysByPrefix(ctx, auth.DisplayPrefix(providedKey))
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		if auth.ValidateAccessKey(providedKey, key.KeyHash) {
			return key, nil
		}
	}

	return nil, nil
}
