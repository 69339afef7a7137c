package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	mw "github.com/avdeev/digital-market/internal/middleware"
	"github.com/avdeev/digital-market/internal/models"
	"github.com/avdeev/digital-market/internal/repo"
	"github.com/avdeev/digital-market/internal/service"
	"github.com/avdeev/digital-market/internal/storage"
	"github.com/avdeev/digital-market/internal/tokens"
)

var testSecret = []byte("test-jwt-secret")

type testEnv struct {
	E     *echo.Echo
	Repo  *repo.GormRepo
	Files *storage.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductFile{},
		&models.Purchase{},
		&models.Review{},
	))

	gormRepo := &repo.GormRepo{DB: db}

	files, err := storage.New(t.TempDir(), []byte("test-sign-secret"), 15*time.Minute, "http://localhost:8080")
	require.NoError(t, err)

	deps := &Deps{
		Auth: mw.NewAuth(gormRepo, testSecret),
		AuthHandler: &AuthHTTP{Svc: &service.AuthService{
			Repo:      gormRepo,
			JWTSecret: testSecret,
			TokenTTL:  15 * time.Minute,
		}},
		CatalogHandler: &CatalogHTTP{Svc: &service.CatalogService{Repo: gormRepo}},
		ReviewHandler:  &ReviewHTTP{Svc: &service.ReviewService{Repo: gormRepo}},
		PurchaseHandler: &PurchaseHTTP{Svc: &service.PurchaseService{
			Repo:       gormRepo,
			Files:      files,
			FeePercent: 10,
		}},
		UploadHandler: &UploadHTTP{Files: files, Repo: gormRepo},
	}

	e := echo.New()
	Register(e, deps)

	return &testEnv{E: e, Repo: gormRepo, Files: files}
}

func (env *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) register(t *testing.T, email, role string) (string, *models.User) {
	t.Helper()

	rec := env.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "Secret123",
		"name":     "Test User",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	return res.Token, res.User
}

// seedAdmin inserts an admin account directly: registration never hands out
// the admin role.
func (env *testEnv) seedAdmin(t *testing.T, email string) (string, *models.User) {
	t.Helper()

	admin := &models.User{Email: email, Name: "Admin", Role: models.RoleAdmin}
	require.NoError(t, env.Repo.CreateUser(context.Background(), admin))

	token, _, err := tokens.Issue(admin.ID, admin.Email, admin.Role, testSecret, 15*time.Minute)
	require.NoError(t, err)
	return token, admin
}
