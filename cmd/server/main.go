package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"leadrelay/internal/api"
	"leadrelay/internal/api/handlers"
	"leadrelay/internal/api/middleware"
	"leadrelay/internal/engine/relay"
	"leadrelay/internal/engine/webhooks"
	"leadrelay/internal/pkg/logger"
	"leadrelay/internal/platform/airtable"
	"leadrelay/internal/platform/auth"
	"leadrelay/internal/platform/config"
	"leadrelay/internal/platform/database"
	"leadrelay/internal/platform/nango"
	"leadrelay/web"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	envErr := godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("No .env file loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Record store
	store, storeCheck, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open record store")
	}
	defer closeStore()

	// Remote clients
	proxy := nango.NewClient(cfg.Nango, nil)
	forwarder := webhooks.NewForwarder(cfg.Forwarder, nil)
	if !proxy.Configured() {
		log.Warn().Msg("NANGO_SECRET_KEY is not set; proxy calls will fail")
	}
	if !forwarder.Configured() {
		log.Warn().Msg("Forwarder URL is not set; stored leads will not be forwarded")
	}

	// Services
	relaySvc := relay.NewService(store, proxy, forwarder, cfg.Tables, cfg.Relay)
	tokenSvc := auth.NewTokenService(cfg.Auth)
	keyVerifier := auth.NewAPIKeyVerifier(cfg.Auth.APIKeyHash)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc, keyVerifier)
	rateLimiter := middleware.NewRateLimiter()
	rateLimiter.StartCleanup(ctx.Done())

	deps := &api.Dependencies{
		WebhookHandler: handlers.NewWebhookHandler(relaySvc, cfg.Nango.WebhookSecret),
		SessionHandler: handlers.NewSessionHandler(proxy),
		ToolsHandler:   handlers.NewToolsHandler(proxy),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"store":     storeCheck,
			"nango":     configured(proxy.Configured(), "secret key is not set"),
			"forwarder": configured(forwarder.Configured(), "url is not set"),
		}),
		AuthMiddleware:   authMiddleware,
		RateLimiter:      rateLimiter,
		SessionPerMinute: cfg.RateLimit.SessionPerMinute,
		Static:           web.FileSystem(),
	}
	router := api.NewRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      middleware.RequestLogger(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	log.Info().
		Str("addr", srv.Addr).
		Str("store", cfg.Store.Driver).
		Str("mode", cfg.Relay.Mode).
		Bool("auth", authMiddleware.Enabled()).
		Msg("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

// openStore returns the configured record store with its health check and
// a close function.
func openStore(ctx context.Context, cfg *config.Config) (relay.Store, handlers.HealthCheck, func(), error) {
	switch cfg.Store.Driver {
	case "sqlite":
		db, err := database.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.Migrate(ctx, db, database.DirectionUp); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		check := func(ctx context.Context) error { return db.PingContext(ctx) }
		return database.NewLocalStore(db), check, closer(db), nil
	default:
		client := airtable.NewClient(cfg.Store, nil)
		if !client.Configured() {
			log.Warn().Msg("AIRTABLE_BASE_ID or AIRTABLE_API_TOKEN is not set; store calls will fail")
		}
		return client, configured(client.Configured(), "base id or api token is not set"), func() {}, nil
	}
}

func closer(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close sqlite database")
		}
	}
}

func configured(ok bool, reason string) handlers.HealthCheck {
	return func(context.Context) error {
		if !ok {
			return errors.New(reason)
		}
		return nil
	}
}
