package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avdeev/digital-market/internal/logging"
	mw "github.com/avdeev/digital-market/internal/middleware"
	"github.com/avdeev/digital-market/internal/service"
	"github.com/avdeev/digital-market/internal/util"
)

type ReviewHTTP struct {
	Svc *service.ReviewService
}

func (h *ReviewHTTP) CreateReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.create")

	var req service.CreateReviewInput
	if err := c.Bind(&req); err != nil {
		l.Warn("review_create_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	review, err := h.Svc.CreateReview(ctx, mw.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		return httpError(l, "review_create_error", err)
	}

	l.Info("review_create_success", "reviewID", review.ID)
	return c.JSON(http.StatusCreated, review)
}

func (h *ReviewHTTP) GetProductReviews(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.list")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	total, items, err := h.Svc.GetProductReviews(ctx, c.Param("id"), offset, limit)
	if err != nil {
		return httpError(l, "review_list_error", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": pageMeta(page, limit, offset, total),
	})
}

func (h *ReviewHTTP) DeleteReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.delete")

	if err := h.Svc.DeleteReview(ctx, mw.CurrentUser(c), c.Param("id")); err != nil {
		return httpError(l, "review_delete_error", err)
	}

	l.Info("review_delete_success", "reviewID", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (h *ReviewHTTP) ApproveReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.approve")

	var req struct {
		Approved bool `json:"approved"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("review_approve_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	review, err := h.Svc.SetApproved(ctx, c.Param("id"), req.Approved)
	if err != nil {
		return httpError(l, "review_approve_error", err)
	}

	l.Info("review_approve_success", "reviewID", review.ID, "approved", review.Approved)
	return c.JSON(http.StatusOK, review)
}
