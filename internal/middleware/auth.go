package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/avdeev/digital-market/internal/models"
	"github.com/avdeev/digital-market/internal/repo"
	"github.com/avdeev/digital-market/internal/tokens"
)

const userContextKey = "user"

type Auth struct {
	Repo      *repo.GormRepo
	JWTSecret []byte
}

func NewAuth(r *repo.GormRepo, secret []byte) *Auth {
	return &Auth{Repo: r, JWTSecret: secret}
}

// RequireAuth accepts the bearer header first and falls back to the session
// cookie the UI mirrors the token into. Any verification failure is a 401,
// never retried.
func (m *Auth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			if cookie, err := c.Cookie("token"); err == nil {
				raw = cookie.Value
			}
		}
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.Parse(raw, m.JWTSecret)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		user, err := m.Repo.GetUserByID(c.Request().Context(), claims.UserID())
		if err != nil {
			if repo.IsNotFound(err) {
				return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot load account")
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

func (m *Auth) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}
			for _, role := range roles {
				if user.Role == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}
	}
}

func (m *Auth) RequireVerifiedSeller(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}
		if user.Role == models.RoleAdmin {
			return next(c)
		}
		if user.Role != models.RoleSeller || !user.VerifiedSeller {
			return echo.NewHTTPError(http.StatusForbidden, "verified seller account required")
		}
		return next(c)
	}
}

func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get(userContextKey).(*models.User); ok {
		return u
	}
	return nil
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
