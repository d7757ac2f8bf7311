// Package accounts implements registration, login, and profile endpoints.
// Sessions are stateless JWTs; admin rights are still checked against the
// database on every request, so a token outlives a role change safely.
package accounts

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/shopcn/shopcn/internal/auth"
	"github.com/shopcn/shopcn/internal/config"
	"github.com/shopcn/shopcn/internal/db/models"
	"github.com/shopcn/shopcn/internal/db/repositories"
	"github.com/shopcn/shopcn/internal/middleware"
)

// uniqueViolation is the Postgres error code for unique constraint violations
const uniqueViolation = "23505"

// Handlers handles account endpoints
type Handlers struct {
	cfg      *config.Config
	userRepo *repositories.UserRepository
}

// NewHandlers creates account handlers
func NewHandlers(cfg *config.Config, db *sql.DB) *Handlers {
	return &Handlers{
		cfg:      cfg,
		userRepo: repositories.NewUserRepository(db),
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterHandler creates a new buyer account
// @Summary Register account
// @Description Creates a buyer account with an email and password
// @Tags accounts
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/auth/register [post]
func (h *Handlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user := &models.User{
			Email:        email,
			Name:         strings.TrimSpace(req.Name),
			PasswordHash: hash,
			Role:         models.RoleBuyer,
		}

		if err := h.userRepo.CreateUser(c.Request.Context(), user); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
				return
			}
			slog.Error("failed to create user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
			return
		}

		slog.Info("account registered", "user_id", user.ID)
		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}

// LoginHandler exchanges credentials for a session token
// @Summary Log in
// @Description Verifies credentials and returns a session JWT
// @Tags accounts
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/v1/auth/login [post]
func (h *Handlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		user, err := h.userRepo.GetUserByEmail(c.Request.Context(), email)
		if err != nil {
			slog.Error("failed to look up user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		// Same response for unknown email and wrong password.
		if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}

		token, err := auth.GenerateJWT(user.ID, user.Email, user.Role, h.cfg.Auth.SessionTTL)
		if err != nil {
			slog.Error("failed to generate session token", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

// MeHandler returns the authenticated account
// @Summary Get current account
// @Tags accounts
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/v1/auth/me [get]
func (h *Handlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
