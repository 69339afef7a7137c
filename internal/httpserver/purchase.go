package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avdeev/digital-market/internal/logging"
	mw "github.com/avdeev/digital-market/internal/middleware"
	"github.com/avdeev/digital-market/internal/service"
	"github.com/avdeev/digital-market/internal/util"
)

type PurchaseHTTP struct {
	Svc *service.PurchaseService
}

func (h *PurchaseHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "purchase.checkout")

	var req service.CheckoutInput
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	purchase, err := h.Svc.Checkout(ctx, mw.CurrentUser(c), req)
	if err != nil {
		return httpError(l, "checkout_error", err)
	}

	l.Info("checkout_success", "purchaseID", purchase.ID, "sessionID", purchase.PaymentSessionID)
	return c.JSON(http.StatusCreated, purchase)
}

// Confirm stands in for the payment provider webhook.
func (h *PurchaseHTTP) Confirm(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "purchase.confirm")

	purchase, err := h.Svc.Confirm(ctx, mw.CurrentUser(c), c.Param("id"))
	if err != nil {
		return httpError(l, "confirm_error", err)
	}

	l.Info("confirm_success", "purchaseID", purchase.ID)
	return c.JSON(http.StatusOK, purchase)
}

func (h *PurchaseHTTP) Refund(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "purchase.refund")

	purchase, err := h.Svc.Refund(ctx, c.Param("id"))
	if err != nil {
		return httpError(l, "refund_error", err)
	}

	l.Info("refund_success", "purchaseID", purchase.ID)
	return c.JSON(http.StatusOK, purchase)
}

func (h *PurchaseHTTP) GetMyPurchases(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "purchase.list")

	user := mw.CurrentUser(c)
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Svc.GetBuyerPurchases(ctx, user.ID, offset, limit)
	if err != nil {
		return httpError(l, "purchase_list_error", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": pageMeta(page, limit, offset, total),
	})
}

// Download trades a purchase's download token for signed file URLs. The
// session user must be the buyer; the token alone is not enough.
func (h *PurchaseHTTP) Download(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "purchase.download")

	files, err := h.Svc.Download(ctx, mw.CurrentUser(c), c.Param("token"))
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			// Buyer mismatch reads as 401 here: the capability does not
			// belong to this session.
			l.Warn("download_error", "status", 401, "reason", "buyer mismatch")
			return echo.NewHTTPError(http.StatusUnauthorized, "download token does not belong to this account")
		}
		if errors.Is(err, service.ErrNotPurchased) {
			l.Warn("download_error", "status", 403, "reason", "purchase not completed")
			return echo.NewHTTPError(http.StatusForbidden, "purchase is not completed")
		}
		return httpError(l, "download_error", err)
	}

	l.Info("download_success", "files", len(files))
	return c.JSON(http.StatusOK, echo.Map{"files": files})
}
