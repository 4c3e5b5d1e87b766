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
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/feresegna/bus-portal/internal/booking"
	"github.com/feresegna/bus-portal/internal/config"
	"github.com/feresegna/bus-portal/internal/db"
	"github.com/feresegna/bus-portal/internal/events"
	"github.com/feresegna/bus-portal/internal/handlers"
	"github.com/feresegna/bus-portal/internal/identity"
	"github.com/feresegna/bus-portal/internal/logging"
	"github.com/feresegna/bus-portal/internal/session"
)

func newPublisher(cfg *config.Config, logger log.FieldLogger) events.Publisher {
	if cfg.MQTTBroker == "" {
		logger.Info("MQTT_BROKER not set, booking events are discarded")
		return events.Nop{}
	}
	publisher, err := events.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, logger)
	if err != nil {
		logger.WithError(err).Warn("MQTT unavailable, booking events are discarded")
		return events.Nop{}
	}
	return publisher
}

func workspaceFactory(idp session.Identity, credentials *mongo.Collection, logger log.FieldLogger) handlers.WorkspaceFactory {
	return func(clientID string) *handlers.Workspace {
		store := &db.CredentialStore{Collection: credentials, ClientID: clientID}
		return &handlers.Workspace{
			Session: session.NewManager(idp, store, logger.WithField("client_id", clientID)),
			Booking: booking.NewTracker(nil),
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	database := client.Database(cfg.MongoDatabase)
	logger.Info("Connected to MongoDB")

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	idp := identity.NewClient(cfg.IdentityURL, nil)
	workspaces := handlers.NewWorkspaces(
		workspaceFactory(idp, database.Collection(db.CredentialsCollection), logger),
		cfg.SessionIdleTimeout,
		logger,
	)
	go workspaces.Run(ctx, time.Minute)

	catalog := &db.MongoTripCollection{Collection: database.Collection(db.TripsCollection)}
	portal := handlers.NewPortalHandler(workspaces, catalog, idp, publisher, logger)

	server := &http.Server{
		Addr:              ":" + cfg.PortalPort,
		Handler:           handlers.NewPortalRouter(portal, cfg.SecureCookies, logger),
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

	logger.WithFields(log.Fields{
		"port":         cfg.PortalPort,
		"identity_url": cfg.IdentityURL,
	}).Info("Portal listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("Portal stopped")
	}
	logger.Info("Portal stopped")
}
