package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"donationledger/internal/adapter/repo"
	"donationledger/internal/gateway"
	"donationledger/internal/indexer"
	"donationledger/internal/infra"
	"donationledger/internal/infra/credentials"
	"donationledger/internal/reconcile"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg, "indexer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("indexer: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	mirror := repo.NewMirrorRepository(runner)
	if err := mirror.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("indexer: schema setup failed")
	}

	// The indexer only reads; a stored key just makes the actor visible in logs.
	opened, err := gateway.Open(ctx, cfg, credentials.NewStore(runner).SignerKey, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("indexer: failed to open ledger gateway")
	}
	defer opened.Close()

	engine := reconcile.NewEngine(opened.Gateway, logger)
	changes, unsubscribe := engine.Subscribe(0)
	defer unsubscribe()
	if err := engine.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("indexer: initial ledger sync failed")
	}
	defer engine.Close()

	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("indexer: reconciliation stopped")
			stop()
		}
	}()

	ix := indexer.New(engine, mirror, logger)
	if err := ix.Run(ctx, changes, cfg.IndexerSyncInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("indexer: stopped with error")
	}
	logger.Info().Msg("indexer: stopped")
}
