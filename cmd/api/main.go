package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"donationledger/internal/gateway"
	"donationledger/internal/http/handlers"
	httpapi "donationledger/internal/http/httpapi"
	"donationledger/internal/infra"
	"donationledger/internal/infra/credentials"
	"donationledger/internal/infra/geoip"
	"donationledger/internal/middleware"
	"donationledger/internal/realtime"
	"donationledger/internal/reconcile"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The database is optional for the API; it only holds the stored signer key.
	var keys gateway.KeySource
	if cfg.DatabaseURL != "" && cfg.SignerPrivateKey == "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		keys = credentials.NewStore(infra.NewSQLRunner(pool, logger)).SignerKey
	}

	opened, err := gateway.Open(ctx, cfg, keys, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open ledger gateway")
	}
	defer opened.Close()

	engine := reconcile.NewEngine(opened.Gateway, logger)
	if err := engine.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("initial ledger sync failed")
	}
	defer engine.Close()

	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("reconciliation stopped")
			stop()
		}
	}()

	var lookup middleware.CountryLookup
	if cfg.GeoIPDBPath != "" {
		resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn().Err(err).Msg("geoip disabled")
		} else {
			defer resolver.Close()
			lookup = resolver.Lookup()
		}
	}

	app := handlers.NewApp(engine, nil, logger, cfg)
	hub := realtime.NewHub(logger, app.ChangePayload, cfg.CORSAllowedOrigins)
	app.Stream = hub
	changes, unsubscribe := engine.Subscribe(0)
	defer unsubscribe()
	go hub.Run(ctx, changes)

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("actor", engine.Actor()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
