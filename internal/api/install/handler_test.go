package install

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/shopcn/shopcn/internal/auth"
	"github.com/shopcn/shopcn/internal/db/repositories"
	"github.com/shopcn/shopcn/internal/entitlement"
	"github.com/shopcn/shopcn/pkg/checksum"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var productCols = []string{"id", "slug", "name", "description", "price_cents", "is_published", "created_by", "created_at", "updated_at"}

var keyCols = []string{"id", "user_id", "key_hash", "key_prefix", "scope", "remaining_uses", "expires_at", "last_used_at", "created_at"}

var artifactCols = []string{"id", "payload", "product_id", "created_by", "created_at"}

// newInstallRouter wires the full authorization stack over a mocked database.
func newInstallRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	issuer := entitlement.NewIssuer(repositories.NewAccessKeyRepository(db), entitlement.IssuerConfig{
		InstallPrefix: "shopcn",
		InstallTTL:    5 * time.Minute,
		CLIPrefix:     "cli",
	})
	authorizer := entitlement.NewAuthorizer(
		issuer,
		repositories.NewProductRepository(db),
		repositories.NewArtifactRepository(db),
		repositories.NewLedgerRepository(db),
	)

	h := NewHandler(authorizer)
	r := gin.New()
	r.GET("/install/:slug", h.InstallHandler())
	return mock, r
}

// installKey generates a raw install key and its stored row fields.
func installKey(t *testing.T) (rawKey, hash, displayPrefix string) {
	t.Helper()
	rawKey, hash, displayPrefix, err := auth.GenerateAccessKey("shopcn")
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}
	return rawKey, hash, displayPrefix
}

func doInstall(r *gin.Engine, slug, key string) *httptest.ResponseRecorder {
	url := "/install/" + slug
	if key != "" {
		url += "?key=" + key
	}
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInstallHandler_Granted(t *testing.T) {
	mock, r := newInstallRouter(t)
	rawKey, hash, displayPrefix := installKey(t)

	now := time.Now()
	expires := now.Add(5 * time.Minute)

	mock.ExpectQuery("SELECT id, slug, name, description").
		WithArgs("pricing-table").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("prod-1", "pricing-table", "Pricing Table", "", int64(2900), true, "seller-1", now, now))
	mock.ExpectQuery("SELECT id, user_id, key_hash, key_prefix, scope").
		WithArgs(displayPrefix).
		WillReturnRows(sqlmock.NewRows(keyCols).
			AddRow("key-1", "buyer-1", hash, displayPrefix, "install", 1, expires, nil, now))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("prod-1", "buyer-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("UPDATE access_keys").
		WithArgs("key-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, payload, product_id").
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows(artifactCols).
			AddRow("art-1", []byte(`{"name":"pricing-table","files":[]}`), "prod-1", "seller-1", now))

	w := doInstall(r, "pricing-table", rawKey)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != `{"name":"pricing-table","files":[]}` {
		t.Errorf("unexpected payload: %s", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	wantETag := `"` + checksum.SHA256Hex([]byte(`{"name":"pricing-table","files":[]}`)) + `"`
	if etag := w.Header().Get("ETag"); etag != wantETag {
		t.Errorf("ETag = %q, want payload checksum", etag)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInstallHandler_MissingKey(t *testing.T) {
	_, r := newInstallRouter(t)

	w := doInstall(r, "pricing-table", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestInstallHandler_WrongPrefixNoStoreAccess(t *testing.T) {
	mock, r := newInstallRouter(t)

	// A key that is not even shaped like an install key is rejected before
	// any database work.
	w := doInstall(r, "pricing-table", "cli_notaninstallkey")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database access: %v", err)
	}
}

func TestInstallHandler_UnknownProduct(t *testing.T) {
	mock, r := newInstallRouter(t)
	rawKey, _, _ := installKey(t)

	mock.ExpectQuery("SELECT id, slug, name, description").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(productCols))

	w := doInstall(r, "ghost", rawKey)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestInstallHandler_UnpublishedProductLooksAbsent(t *testing.T) {
	mock, r := newInstallRouter(t)
	rawKey, _, _ := installKey(t)

	now := time.Now()
	mock.ExpectQuery("SELECT id, slug, name, description").
		WithArgs("hidden-widget").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("prod-2", "hidden-widget", "Hidden", "", int64(900), false, "seller-1", now, now))

	w := doInstall(r, "hidden-widget", rawKey)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestInstallHandler_UnknownKey(t *testing.T) {
	mock, r := newInstallRouter(t)
	rawKey, _, displayPrefix := installKey(t)

	now := time.Now()
	mock.ExpectQuery("SELECT id, slug, name, description").
		WithArgs("pricing-table").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("prod-1", "pricing-table", "Pricing Table", "", int64(2900), true, "seller-1", now, now))
	mock.ExpectQuery("SELECT id, user_id, key_hash, key_prefix, scope").
		WithArgs(displayPrefix).
		WillReturnRows(sqlmock.NewRows(keyCols))

	w := doInstall(r, "pricing-table", rawKey)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestInstallHandler_NotPurchased(t *testing.T) {
	mock, r := newInstallRouter(t)
	rawKey, hash, displayPrefix := installKey(t)

	now := time.Now()
	expires := now.Add(5 * time.Minute)
	mock.ExpectQuery("SELECT id, slug, name, description").
		WithArgs("pricing-table").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("prod-1", "pricing-table", "Pricing Table", "", int64(2900), true, "seller-1", now, now))
	mock.ExpectQuery("SELECT id, user_id, key_hash, key_prefix, scope").
		WithArgs(displayPrefix).
		WillReturnRows(sqlmock.NewRows(keyCols).
			AddRow("key-1", "buyer-1", hash, displayPrefix, "install", 1, expires, nil, now))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("prod-1", "buyer-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	w := doInstall(r, "pricing-table", rawKey)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("denied install must not consume the key: %v", err)
	}
}

func TestInstallHandler_KeyAlreadyConsumed(t *testing.T) {
	mock, r := newInstallRouter(t)
	rawKey, hash, displayPrefix := installKey(t)

	now := time.Now()
	expires := now.Add(5 * time.Minute)
	mock.ExpectQuery("SELECT id, slug, name, description").
		WithArgs("pricing-table").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("prod-1", "pricing-table", "Pricing Table", "", int64(2900), true, "seller-1", now, now))
	mock.ExpectQuery("SELECT id, user_id, key_hash, key_prefix, scope").
		WithArgs(displayPrefix).
		WillReturnRows(sqlmock.NewRows(keyCols).
			AddRow("key-1", "buyer-1", hash, displayPrefix, "install", 1, expires, nil, now))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("prod-1", "buyer-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	// Zero rows affected: another request consumed the last use first.
	mock.ExpectExec("UPDATE access_keys").
		WithArgs("key-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := doInstall(r, "pricing-table", rawKey)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for consumed key, got %d", w.Code)
	}
}
