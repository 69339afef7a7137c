package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	mw "github.com/avdeev/digital-market/internal/middleware"
	"github.com/avdeev/digital-market/internal/models"
)

type Deps struct {
	Auth     *mw.Auth
	Redis    *redis.Client
	CacheTTL time.Duration

	AuthHandler     *AuthHTTP
	CatalogHandler  *CatalogHTTP
	ReviewHandler   *ReviewHTTP
	PurchaseHandler *PurchaseHTTP
	UploadHandler   *UploadHTTP
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/logout", d.AuthHandler.Logout)
	auth.GET("/me", d.AuthHandler.Me, d.Auth.RequireAuth)

	cache := mw.ResponseCache(d.Redis, d.CacheTTL)

	products := api.Group("/products")
	products.GET("", d.CatalogHandler.GetProducts, cache)
	products.GET("/search", d.CatalogHandler.SearchProducts)
	products.GET("/slug/:slug", d.CatalogHandler.GetProductBySlug, cache)
	products.GET("/:id", d.CatalogHandler.GetProduct, cache)
	products.GET("/:id/reviews", d.ReviewHandler.GetProductReviews)

	sellerOnly := []echo.MiddlewareFunc{d.Auth.RequireAuth, d.Auth.RequireRole(models.RoleSeller, models.RoleAdmin)}
	products.POST("", d.CatalogHandler.CreateProduct, sellerOnly...)
	products.PATCH("/:id", d.CatalogHandler.PatchProduct, sellerOnly...)
	products.DELETE("/:id", d.CatalogHandler.DeleteProduct, sellerOnly...)
	products.POST("/:id/reviews", d.ReviewHandler.CreateReview, d.Auth.RequireAuth)

	api.GET("/seller/products", d.CatalogHandler.GetMyProducts, sellerOnly...)

	reviews := api.Group("/reviews", d.Auth.RequireAuth)
	reviews.DELETE("/:id", d.ReviewHandler.DeleteReview)
	reviews.PATCH("/:id/approve", d.ReviewHandler.ApproveReview, d.Auth.RequireRole(models.RoleAdmin))

	purchases := api.Group("/purchases", d.Auth.RequireAuth)
	purchases.POST("/checkout", d.PurchaseHandler.Checkout)
	purchases.POST("/:id/confirm", d.PurchaseHandler.Confirm)
	purchases.POST("/:id/refund", d.PurchaseHandler.Refund, d.Auth.RequireRole(models.RoleAdmin))
	purchases.GET("", d.PurchaseHandler.GetMyPurchases)
	purchases.GET("/download/:token", d.PurchaseHandler.Download)

	admin := api.Group("/admin", d.Auth.RequireAuth, d.Auth.RequireRole(models.RoleAdmin))
	admin.PATCH("/users/:id", d.AuthHandler.SetSellerFlags)

	uploadOnly := append(sellerOnly, d.Auth.RequireVerifiedSeller)
	api.POST("/uploads", d.UploadHandler.Upload, uploadOnly...)

	// Signed URLs are self-authorizing; no session required.
	e.GET("/files/:key", d.UploadHandler.ServeFile)
}
