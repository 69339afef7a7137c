package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avdeev/digital-market/internal/logging"
	mw "github.com/avdeev/digital-market/internal/middleware"
	"github.com/avdeev/digital-market/internal/service"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Register(ctx, req.Email, req.Password, req.Name, req.Role)
	if err != nil {
		return httpError(l, "register_error", err)
	}

	c.SetCookie(CreateCookie("token", res.Token, "/", res.ExpiresAt))
	l.Info("register_successful", "userID", res.User.ID)
	return c.JSON(http.StatusCreated, res)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return httpError(l, "login_error", err)
	}

	c.SetCookie(CreateCookie("token", res.Token, "/", res.ExpiresAt))
	l.Info("login_successful", "userID", res.User.ID)
	return c.JSON(http.StatusOK, res)
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_me")

	user := mw.CurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	// RequireAuth already reloaded the account; this endpoint is what the
	// client session store polls to re-validate a cached token.
	account, err := h.Svc.Me(ctx, user.ID)
	if err != nil {
		return httpError(l, "me_error", err)
	}
	return c.JSON(http.StatusOK, account)
}

func (h *AuthHTTP) SetSellerFlags(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.seller_flags")

	var req service.SellerFlagsInput
	if err := c.Bind(&req); err != nil {
		l.Warn("seller_flags_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.SetSellerFlags(ctx, c.Param("id"), req)
	if err != nil {
		return httpError(l, "seller_flags_error", err)
	}

	l.Info("seller_flags_updated", "userID", user.ID, "verified", user.VerifiedSeller)
	return c.JSON(http.StatusOK, user)
}

// Logout only clears the UI cookie: tokens are stateless and stay valid
// until exp, there is no revocation list.
func (h *AuthHTTP) Logout(c echo.Context) error {
	c.SetCookie(DeleteCookie("token", "/"))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}
