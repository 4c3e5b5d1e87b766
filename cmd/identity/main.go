package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/feresegna/bus-portal/internal/auth"
	"github.com/feresegna/bus-portal/internal/config"
	"github.com/feresegna/bus-portal/internal/db"
	"github.com/feresegna/bus-portal/internal/handlers"
	"github.com/feresegna/bus-portal/internal/logging"
	"github.com/feresegna/bus-portal/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, using the built-in development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	logger.Info("Connected to MongoDB")

	accounts := &db.MongoAccountCollection{Collection: client.Database(cfg.MongoDatabase).Collection(db.UsersCollection)}
	if err := accounts.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to create account indexes")
	}

	authService := auth.NewService(cfg.JWTSecret, cfg.JWTExpiration)
	router := handlers.NewIdentityRouter(
		handlers.NewAuthHandler(authService, accounts, logger),
		middleware.NewAuthMiddleware(authService),
		middleware.NewRateLimitMiddleware(),
		handlers.LoginLimit{Requests: cfg.LoginRateLimit, Window: cfg.LoginRateWindow},
		logger,
	)

	server := &http.Server{
		Addr:              ":" + cfg.IdentityPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	logger.WithField("port", cfg.IdentityPort).Info("Identity service listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("Identity service stopped")
	}
	logger.Info("Identity service stopped")
}
