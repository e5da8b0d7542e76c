package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/classpoint/gatehouse/internal/authservice"
	"github.com/classpoint/gatehouse/internal/roles"
	"github.com/classpoint/gatehouse/internal/schoolapi"
)

// A standalone copy of the in-memory school backend, for running the
// portal gateway locally without the real API.
func main() {
	addr := flag.String("addr", ":9090", "listen address")
	accessTTL := flag.Duration("access-ttl", 15*time.Minute, "access token lifetime")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	backend := schoolapi.New(*accessTTL)
	seedAccounts(backend, logger)

	srv := &http.Server{
		Addr:    *addr,
		Handler: backend.Router(),
	}

	go func() {
		logger.Info("school API listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func seedAccounts(backend *schoolapi.Server, logger *zap.Logger) {
	accounts := []struct {
		email string
		role  roles.Role
	}{
		{"admin@school.test", roles.Admin},
		{"coordinator@school.test", roles.Coordinator},
		{"teacher@school.test", roles.Teacher},
		{"student@school.test", roles.Student},
		{"parent@school.test", roles.Parent},
		{"librarian@school.test", roles.Librarian},
		{"media@school.test", roles.MediaCoordinator},
	}
	for _, a := range accounts {
		err := backend.Seed(authservice.User{
			Email:         a.email,
			Role:          a.role,
			EmailVerified: true,
			FirstName:     "Demo",
			LastName:      string(a.role),
		}, "password123")
		if err != nil {
			logger.Warn("seed failed", zap.String("email", a.email), zap.Error(err))
			continue
		}
		logger.Info("seeded account", zap.String("email", a.email), zap.String("role", string(a.role)))
	}
}
