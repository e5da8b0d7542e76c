package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/classpoint/gatehouse/internal/apiclient"
	"github.com/classpoint/gatehouse/internal/authservice"
	"github.com/classpoint/gatehouse/internal/config"
	"github.com/classpoint/gatehouse/internal/database"
	"github.com/classpoint/gatehouse/internal/guard"
	"github.com/classpoint/gatehouse/internal/middleware"
	"github.com/classpoint/gatehouse/internal/session"
	"github.com/classpoint/gatehouse/internal/tokenstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting Gatehouse portal gateway",
		zap.String("env", cfg.Env),
		zap.String("api", cfg.API.BaseURL),
		zap.String("token_store", cfg.TokenStore.Backend),
	)

	store, cleanup, err := newTokenStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize token store", zap.Error(err))
	}
	defer cleanup()

	client := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout, cfg.API.RefreshSkew, store, logger)
	service := authservice.NewService(client, store, logger)
	controller := session.NewController(service, logger)

	var sso *authservice.GoogleSSO
	if cfg.Google.Enabled() {
		sso = authservice.NewGoogleSSO(cfg.Google, service)
		logger.Info("Google SSO enabled")
	}

	// Rebuild session state from persisted storage before serving; guards
	// render a loading state until this resolves
	initCtx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
	controller.Initialize(initCtx)
	cancel()
	logger.Info("Session initialized", zap.Bool("authenticated", controller.IsAuthenticated()))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	handler := newHandler(controller, sso, logger)
	registerRoutes(router, handler, guard.New(controller, guard.DefaultLoginPath))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
}

// newTokenStore builds the configured persistence backend
func newTokenStore(cfg *config.Config) (tokenstore.Store, func(), error) {
	noop := func() {}

	switch cfg.TokenStore.Backend {
	case "memory":
		return tokenstore.NewMemory(), noop, nil

	case "file":
		store, err := tokenstore.NewFile(cfg.TokenStore.FilePath)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil

	case "redis":
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return tokenstore.NewRedis(client.Client, cfg.TokenStore.Namespace), func() { client.Close() }, nil

	case "postgres":
		db, err := database.NewPostgresDB(cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		store, err := tokenstore.NewPostgres(db.DB, cfg.TokenStore.Namespace)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return store, func() { db.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown token store backend %q", cfg.TokenStore.Backend)
	}
}
