package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/shopcn/shopcn/internal/auth"
	"github.com/shopcn/shopcn/internal/db/models"
	"github.com/shopcn/shopcn/internal/db/repositories"
)

var userColumns = []string{"id", "email", "name", "password_hash", "role", "created_at", "updated_at"}

var keyColumns = []string{"id", "user_id", "key_hash", "key_prefix", "scope", "remaining_uses", "expires_at", "last_used_at", "created_at"}

func newAuthRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userRepo := repositories.NewUserRepository(db)
	keyRepo := repositories.NewAccessKeyRepository(db)

	r := gin.New()
	r.Use(AuthMiddleware(userRepo, keyRepo))
	r.GET("/protected", func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "method": c.GetString(AuthMethodContextKey)})
	})

	return r, mock
}

func doRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := doRequest(r, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_NotBearer(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := doRequest(r, "Basic dXNlcjpwYXNz")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_EmptyToken(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := doRequest(r, "Bearer   ")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_ValidJWT(t *testing.T) {
	r, mock := newAuthRouter(t)

	token, err := auth.GenerateJWT("user-1", "buyer@example.com", models.RoleBuyer, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate JWT: %v", err)
	}

	now := time.Now()
	mock.ExpectQuery("SELECT id, email, name, password_hash, role, created_at, updated_at").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("user-1", "buyer@example.com", "Buyer", "hash", "buyer", now, now))

	w := doRequest(r, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAuthMiddleware_ValidJWTUnknownUser(t *testing.T) {
	r, mock := newAuthRouter(t)

	token, err := auth.GenerateJWT("ghost", "ghost@example.com", models.RoleBuyer, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate JWT: %v", err)
	}

	mock.ExpectQuery("SELECT id, email, name, password_hash, role, created_at, updated_at").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userColumns))

	w := doRequest(r, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_ValidCLIKey(t *testing.T) {
	r, mock := newAuthRouter(t)

	rawKey, hash, displayPrefix, err := auth.GenerateAccessKey("cli")
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	now := time.Now()
	mock.ExpectQuery("SELECT id, user_id, key_hash, key_prefix, scope").
		WithArgs(displayPrefix).
		WillReturnRows(sqlmock.NewRows(keyColumns).
			AddRow("key-1", "user-1", hash, displayPrefix, "cli", 1, nil, nil, now))
	mock.ExpectQuery("SELECT id, email, name, password_hash, role, created_at, updated_at").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("user-1", "dev@example.com", "Dev", "hash", "buyer", now, now))

	// The async last-used update is fire-and-forget; its result is discarded,
	// so no expectation is registered for it.

	w := doRequest(r, "Bearer "+rawKey)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddleware_InstallKeyRejected(t *testing.T) {
	r, mock := newAuthRouter(t)

	rawKey, hash, displayPrefix, err := auth.GenerateAccessKey("shopcn")
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	expires := time.Now().Add(5 * time.Minute)
	mock.ExpectQuery("SELECT id, user_id, key_hash, key_prefix, scope").
		WithArgs(displayPrefix).
		WillReturnRows(sqlmock.NewRows(keyColumns).
			AddRow("key-1", "user-1", hash, displayPrefix, "install", 1, expires, nil, time.Now()))

	w := doRequest(r, "Bearer "+rawKey)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for install-scope key, got %d", w.Code)
	}
}

func TestAuthMiddleware_ExpiredCLIKey(t *testing.T) {
	r, mock := newAuthRouter(t)

	rawKey, hash, displayPrefix, err := auth.GenerateAccessKey("cli")
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	expired := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT id, user_id, key_hash, key_prefix, scope").
		WithArgs(displayPrefix).
		WillReturnRows(sqlmock.NewRows(keyColumns).
			AddRow("key-1", "user-1", hash, displayPrefix, "cli", 1, expired, nil, time.Now()))

	w := doRequest(r, "Bearer "+rawKey)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired key, got %d", w.Code)
	}
}

func TestAuthMiddleware_UnknownKey(t *testing.T) {
	r, mock := newAuthRouter(t)

	rawKey, _, displayPrefix, err := auth.GenerateAccessKey("cli")
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	mock.ExpectQuery("SELECT id, user_id, key_hash, key_prefix, scope").
		WithArgs(displayPrefix).
		WillReturnRows(sqlmock.NewRows(keyColumns))

	w := doRequest(r, "Bearer "+rawKey)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		user       *models.User
		wantStatus int
	}{
		{"no user", nil, http.StatusForbidden},
		{"buyer", &models.User{ID: "u1", Role: models.RoleBuyer}, http.StatusForbidden},
		{"admin", &models.User{ID: "u2", Role: models.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) {
				if tt.user != nil {
					c.Set(UserContextKey, tt.user)
				}
			})
			r.Use(RequireAdmin())
			r.GET("/admin", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestCurrentUser_NoAuth(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if user := CurrentUser(c); user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}
}
