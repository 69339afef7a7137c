package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/avdeev/digital-market/internal/config"
	"github.com/avdeev/digital-market/internal/es"
	"github.com/avdeev/digital-market/internal/events"
	"github.com/avdeev/digital-market/internal/httpserver"
	"github.com/avdeev/digital-market/internal/logging"
	mw "github.com/avdeev/digital-market/internal/middleware"
	"github.com/avdeev/digital-market/internal/repo"
	"github.com/avdeev/digital-market/internal/service"
	"github.com/avdeev/digital-market/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")
	config.MustNonEmptyBytes(cfg.FileSignSecret, "FILE_SIGN_SECRET")

	logger := logging.New(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init: %v", err)
	}

	files, err := storage.New(cfg.UploadDir, cfg.FileSignSecret, cfg.FileURLTTL, cfg.SiteURL)
	if err != nil {
		log.Fatalf("storage init: %v", err)
	}

	producer := events.NewProducer(config.CSV(cfg.KafkaAddress))

	esClient, err := es.NewClient(cfg)
	if err != nil {
		log.Printf("warning: elasticsearch unavailable, falling back to db search: %v", err)
		esClient = nil
	}

	rdb := mw.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	if cfg.RedisAddr != "" && rdb == nil {
		log.Printf("warning: redis unreachable, response cache disabled")
	}

	gormRepo := &repo.GormRepo{DB: db}

	deps := &httpserver.Deps{
		Auth:     mw.NewAuth(gormRepo, cfg.JWTSecret),
		Redis:    rdb,
		CacheTTL: cfg.CacheTTL,
		AuthHandler: &httpserver.AuthHTTP{Svc: &service.AuthService{
			Repo:      gormRepo,
			Producer:  producer,
			JWTSecret: cfg.JWTSecret,
			TokenTTL:  cfg.TokenTTL,
		}},
		CatalogHandler: &httpserver.CatalogHTTP{Svc: &service.CatalogService{
			Repo:     gormRepo,
			Producer: producer,
			ES:       esClient,
		}},
		ReviewHandler: &httpserver.ReviewHTTP{Svc: &service.ReviewService{Repo: gormRepo}},
		PurchaseHandler: &httpserver.PurchaseHTTP{Svc: &service.PurchaseService{
			Repo:       gormRepo,
			Producer:   producer,
			Files:      files,
			FeePercent: cfg.PlatformFeePercent,
		}},
		UploadHandler: &httpserver.UploadHTTP{Files: files, Repo: gormRepo},
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(mw.RequestLogger(logger))
	e.Use(echomw.CORS())

	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("marketplace listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
