// Package indexer mirrors the reconciled projection into the Postgres read
// model. The mirror trails the engine and is rebuilt by a full sync.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"donationledger/internal/domain"
	"donationledger/internal/reconcile"
)

// Source is the projection the indexer copies from.
type Source interface {
	ListCampaigns() []domain.Campaign
	TransactionHistory(id string) ([]domain.TransactionRecord, error)
}

// Stats counts what one sync wrote.
type Stats struct {
	Campaigns    int
	Transactions int
}

type Indexer struct {
	source Source
	repo   domain.MirrorRepository
	logger zerolog.Logger
}

func New(source Source, repo domain.MirrorRepository, logger zerolog.Logger) *Indexer {
	return &Indexer{
		source: source,
		repo:   repo,
		logger: logger.With().Str("component", "indexer").Logger(),
	}
}

// FullSync writes every campaign and its history. Transaction inserts are
// idempotent, so a full sync after an incremental one only refreshes totals.
func (ix *Indexer) FullSync(ctx context.Context) (Stats, error) {
	var stats Stats
	for _, c := range ix.source.ListCampaigns() {
		n, err := ix.syncCampaign(ctx, c)
		if err != nil {
			return stats, err
		}
		stats.Campaigns++
		stats.Transactions += n
	}
	return stats, nil
}

func (ix *Indexer) syncCampaign(ctx context.Context, c domain.Campaign) (int, error) {
	if err := ix.repo.UpsertCampaign(ctx, c); err != nil {
		return 0, fmt.Errorf("upsert campaign %s: %w", c.ID, err)
	}
	history, err := ix.source.TransactionHistory(c.ID)
	if err != nil {
		return 0, fmt.Errorf("history %s: %w", c.ID, err)
	}
	for _, rec := range history {
		if err := ix.repo.InsertTransaction(ctx, c.ID, rec); err != nil {
			return 0, fmt.Errorf("insert %s: %w", rec.ID, err)
		}
	}
	return len(history), nil
}

// Apply mirrors one change. Campaign rows are written before their
// transactions to satisfy the foreign key.
func (ix *Indexer) Apply(ctx context.Context, change reconcile.Change) error {
	switch change.Type {
	case reconcile.ChangeCampaignRegistered:
		if change.Campaign == nil {
			return nil
		}
		_, err := ix.syncCampaign(ctx, *change.Campaign)
		return err

	case reconcile.ChangeDonationApplied, reconcile.ChangeWithdrawalApplied:
		if change.Campaign != nil {
			if err := ix.repo.UpsertCampaign(ctx, *change.Campaign); err != nil {
				return fmt.Errorf("upsert campaign %s: %w", change.CampaignID, err)
			}
		}
		if change.Record != nil {
			if err := ix.repo.InsertTransaction(ctx, change.CampaignID, *change.Record); err != nil {
				return fmt.Errorf("insert %s: %w", change.Record.ID, err)
			}
		}
		return nil

	case reconcile.ChangeSynced:
		stats, err := ix.FullSync(ctx)
		if err == nil {
			ix.logger.Info().Int("campaigns", stats.Campaigns).Int("transactions", stats.Transactions).Msg("indexer: resynced after engine sync")
		}
		return err
	}
	return nil
}

// Run applies changes as they arrive and runs a full sync every interval to
// cover changes dropped while the indexer lagged. It returns when ctx ends
// or the change stream closes.
func (ix *Indexer) Run(ctx context.Context, changes <-chan reconcile.Change, interval time.Duration) error {
	if stats, err := ix.FullSync(ctx); err != nil {
		ix.logger.Error().Err(err).Msg("indexer: initial sync failed")
	} else {
		ix.logger.Info().Int("campaigns", stats.Campaigns).Int("transactions", stats.Transactions).Msg("indexer: initial sync done")
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if err := ix.Apply(ctx, change); err != nil {
				ix.logger.Error().Err(err).Str("type", string(change.Type)).Str("campaign_id", change.CampaignID).Msg("indexer: apply failed")
			}
		case <-tick:
			stats, err := ix.FullSync(ctx)
			if err != nil {
				ix.logger.Error().Err(err).Msg("indexer: periodic sync failed")
				continue
			}
			ix.logger.Debug().Int("campaigns", stats.Campaigns).Int("transactions", stats.Transactions).Msg("indexer: periodic sync done")
		}
	}
}
