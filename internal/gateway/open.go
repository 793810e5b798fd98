// Package gateway selects the ledger backend a binary runs against.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"donationledger/internal/domain"
	"donationledger/internal/gateway/ethledger"
	"donationledger/internal/gateway/memledger"
	"donationledger/internal/infra"
)

// KeySource loads a signer key when the environment carries none.
type KeySource func(ctx context.Context) (string, error)

// Opened is a connected gateway and the func that releases it.
type Opened struct {
	Gateway domain.LedgerGateway
	Close   func()
}

// Open connects the backend named by cfg.LedgerMode. Memory mode seeds the
// configured sample campaign so a fresh process has something to show.
func Open(ctx context.Context, cfg *infra.Config, keys KeySource, logger zerolog.Logger) (*Opened, error) {
	switch cfg.LedgerMode {
	case infra.LedgerModeMemory:
		chain := memledger.New()
		if name := strings.TrimSpace(cfg.MemorySeedName); name != "" {
			id := chain.Seed(name, cfg.MemoryActor)
			logger.Info().Str("campaign_id", id).Str("name", name).Msg("gateway: seeded sample campaign")
		}
		return &Opened{Gateway: chain.Gateway(cfg.MemoryActor), Close: func() {}}, nil

	case infra.LedgerModeEthereum:
		key := cfg.SignerPrivateKey
		if key == "" && keys != nil {
			stored, err := keys(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("gateway: failed to load signer key from store")
			}
			key = stored
		}
		if key == "" {
			logger.Warn().Msg("gateway: no signer key configured, submissions disabled")
		}
		gw, err := ethledger.Dial(ctx, ethledger.Config{
			RPCURL:         cfg.EthRPCURL,
			FactoryAddress: cfg.FactoryAddress,
			PrivateKey:     key,
			DeployBlock:    cfg.DeployBlock,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &Opened{Gateway: gw, Close: gw.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported ledger mode %q", cfg.LedgerMode)
	}
}
