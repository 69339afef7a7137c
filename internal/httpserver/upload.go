package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/avdeev/digital-market/internal/logging"
	mw "github.com/avdeev/digital-market/internal/middleware"
	"github.com/avdeev/digital-market/internal/models"
	"github.com/avdeev/digital-market/internal/repo"
	"github.com/avdeev/digital-market/internal/service"
	"github.com/avdeev/digital-market/internal/storage"
)

type UploadHTTP struct {
	Files *storage.Store
	Repo  *repo.GormRepo
}

// Upload accepts multipart form data and returns the stored file metadata.
// When product_id is supplied the file is attached to that product, which
// must belong to the uploading seller.
func (h *UploadHTTP) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "upload")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		l.Warn("upload_error", "status", 400, "reason", "file field missing", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	info, err := h.Files.Save(fileHeader)
	if err != nil {
		l.Error("upload_error", "status", 500, "reason", "cannot store file", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store file")
	}

	if productID := c.FormValue("product_id"); productID != "" {
		user := mw.CurrentUser(c)
		prod, err := h.Repo.GetProduct(ctx, productID)
		if err != nil {
			_ = h.Files.Remove(info.Key)
			return httpError(l, "upload_error", err)
		}
		if prod.SellerID != user.ID && user.Role != models.RoleAdmin {
			_ = h.Files.Remove(info.Key)
			return httpError(l, "upload_error", service.ErrForbidden)
		}

		if err := h.Repo.AttachFile(ctx, &models.ProductFile{
			ProductID: productID,
			Name:      info.Name,
			Size:      info.Size,
			Type:      info.Type,
			Key:       info.Key,
		}); err != nil {
			_ = h.Files.Remove(info.Key)
			return httpError(l, "upload_error", err)
		}
	}

	l.Info("upload_success", "key", info.Key, "size", info.Size)
	return c.JSON(http.StatusCreated, info)
}

// ServeFile checks the HMAC signature and streams the file from disk.
func (h *UploadHTTP) ServeFile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "serve_file")

	key := c.Param("key")
	exp, err := strconv.ParseInt(c.QueryParam("exp"), 10, 64)
	if err != nil {
		l.Warn("serve_file_error", "status", 400, "reason", "bad exp")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature params")
	}

	if err := h.Files.Verify(key, exp, c.QueryParam("sig")); err != nil {
		l.Warn("serve_file_error", "status", 401, "reason", "bad signature")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired file signature")
	}

	path, err := h.Files.Path(key)
	if err != nil {
		l.Warn("serve_file_error", "status", 400, "reason", "bad key")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file key")
	}

	return c.File(path)
}
