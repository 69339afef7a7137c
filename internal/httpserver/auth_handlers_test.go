package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev/digital-market/internal/models"
	"github.com/avdeev/digital-market/internal/tokens"
)

func TestRegisterHandler_DuplicateEmail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "dup@example.com", "")

	rec := env.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "DUP@EXAMPLE.COM",
		"password": "Secret123",
		"name":     "Other",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "email")
}

func TestRegisterHandler_AdminRoleRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "wannabe@example.com",
		"password": "Secret123",
		"name":     "Wannabe",
		"role":     models.RoleAdmin,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "role")

	// The admin surface stays closed to such an account.
	rec = env.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "wannabe@example.com",
		"password": "Secret123",
		"name":     "Wannabe",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	rec = env.request(t, http.MethodPatch, "/api/admin/users/some-id", res.Token, map[string]any{"verified_seller": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginHandler_SetsCookie(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "cookie@example.com", "")

	rec := env.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "cookie@example.com",
		"password": "Secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.Token)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	var found bool
	for _, ck := range cookies {
		if ck.Name == "token" {
			found = true
			assert.Equal(t, res.Token, ck.Value)
			assert.True(t, ck.HttpOnly)
		}
	}
	assert.True(t, found, "token cookie not set")
}

func TestMeHandler_TokenStates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token, user := env.register(t, "me@example.com", "")

	rec := env.request(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, user.ID, got.ID)

	rec = env.request(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, _, err := tokens.Issue(user.ID, user.Email, user.Role, testSecret, -time.Minute)
	require.NoError(t, err)
	rec = env.request(t, http.MethodGet, "/api/auth/me", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	rec = env.request(t, http.MethodGet, "/api/auth/me", tampered, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeHandler_DeletedAccount(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token, user := env.register(t, "gone@example.com", "")

	require.NoError(t, env.Repo.DB.Delete(&models.User{}, "id = ?", user.ID).Error)

	rec := env.request(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSellerFlags_AdminOnly(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	sellerToken, seller := env.register(t, "seller@example.com", models.RoleSeller)
	adminToken, _ := env.seedAdmin(t, "admin@example.com")

	body := map[string]any{"verified_seller": true}

	rec := env.request(t, http.MethodPatch, "/api/admin/users/"+seller.ID, sellerToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, http.MethodPatch, "/api/admin/users/"+seller.ID, adminToken, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.VerifiedSeller)
}

func TestCreateProduct_RequiresSellerRole(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	buyerToken, _ := env.register(t, "buyer@example.com", "")

	body := map[string]any{"title": "Nope", "price": 1.0, "category": "graphics"}

	rec := env.request(t, http.MethodPost, "/api/products", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/products", buyerToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	sellerToken, _ := env.register(t, "seller@example.com", models.RoleSeller)
	rec = env.request(t, http.MethodPost, "/api/products", sellerToken, body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
