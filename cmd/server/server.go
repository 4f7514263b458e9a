package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"workify/services/conversation-api/internal/config"
	"workify/services/conversation-api/internal/infrastructure/logger"
	"workify/services/conversation-api/internal/infrastructure/observability"
	"workify/services/conversation-api/internal/infrastructure/realtime"
	"workify/services/conversation-api/internal/infrastructure/reconcile"
	"workify/services/conversation-api/internal/interfaces/httpserver"
)

// @title Conversation API
// @version 1.0
// @description Job-seeker and employer messaging with realtime delivery over websockets.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
type Application struct {
	httpServer *httpserver.HttpServer
	hub        *realtime.Hub
	registry   *realtime.Registry
	syncer     *reconcile.Syncer
	cleanup    *cleanup
	log        zerolog.Logger
}

func NewApplication(
	httpServer *httpserver.HttpServer,
	hub *realtime.Hub,
	registry *realtime.Registry,
	syncer *reconcile.Syncer,
	cleanup *cleanup,
	log zerolog.Logger,
) *Application {
	return &Application{
		httpServer: httpServer,
		hub:        hub,
		registry:   registry,
		syncer:     syncer,
		cleanup:    cleanup,
		log:        log,
	}
}

// Start runs the HTTP server, the realtime hub and the reconciler until ctx is cancelled.
func (a *Application) Start(ctx context.Context) error {
	if err := a.hub.Start(ctx); err != nil {
		return fmt.Errorf("start realtime hub: %w", err)
	}

	if a.syncer != nil {
		a.syncer.Start(ctx)
		defer a.syncer.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.httpServer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.registry.CloseAll(websocket.CloseGoingAway, "server shutting down")
		return nil
	})
	return g.Wait()
}

// Close releases brokers, caches and database pools in reverse order of creation.
func (a *Application) Close() {
	if err := a.hub.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close realtime hub")
	}
	a.cleanup.run(a.log)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	app, err := buildApplication(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build application")
	}
	defer app.Close()

	if err := app.Start(ctx); err != nil {
		log.Error().Err(err).Msg("application stopped with error")
		return
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
