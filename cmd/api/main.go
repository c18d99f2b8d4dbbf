package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	_ "github.com/campusdesk/circular-api/api/swagger"
	"github.com/campusdesk/circular-api/internal/handler"
	"github.com/campusdesk/circular-api/internal/middleware"
	"github.com/campusdesk/circular-api/internal/repository"
	"github.com/campusdesk/circular-api/internal/router"
	"github.com/campusdesk/circular-api/internal/service"
	"github.com/campusdesk/circular-api/pkg/cache"
	"github.com/campusdesk/circular-api/pkg/config"
	"github.com/campusdesk/circular-api/pkg/database"
	"github.com/campusdesk/circular-api/pkg/logger"
	corsmiddleware "github.com/campusdesk/circular-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusdesk/circular-api/pkg/middleware/requestid"
	"github.com/campusdesk/circular-api/pkg/storage"
)

// @title Campus Circular API
// @version 1.0.0
// @description Circular lifecycle and distribution service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Cache.TTL, logr, true)
		}
	}

	localStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init uploads storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()

	circularRepo := repository.NewCircularRepository(db)
	eventRepo := repository.NewEventRepository(db)
	userRepo := repository.NewUserRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	circularService := service.NewCircularService(circularRepo, cacheService, validate, logr)
	eventService := service.NewEventService(eventRepo, validate, logr)
	userService := service.NewUserService(userRepo, validate, logr)
	statsService := service.NewStatsService(circularRepo, eventRepo, userRepo, logr)
	attachmentService := service.NewAttachmentService(localStorage, signer,
		cfg.Uploads.MaxFileSizeBytes, cfg.Uploads.AllowedMIMEs, logr)

	if _, err := attachmentService.Cleanup(cfg.Uploads.TTL); err != nil {
		logr.Sugar().Warnw("attachment cleanup failed", "error", err)
	}

	handlers := router.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Circulars:   handler.NewCircularHandler(circularService),
		Events:      handler.NewEventHandler(eventService),
		Users:       handler.NewUserHandler(userService),
		Stats:       handler.NewStatsHandler(statsService),
		Attachments: handler.NewAttachmentHandler(attachmentService),
		Metrics:     handler.NewMetricsHandler(metricsService),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	router.Register(r, cfg, authService, handlers)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
