package repo

import (
	"context"
	"fmt"
	"math/big"

	"donationledger/internal/domain"
	"donationledger/internal/infra"
	"donationledger/internal/sqlinline"
)

// MirrorRepositoryPG implements domain.MirrorRepository on PostgreSQL.
// Amounts are stored as numeric(78,0) and travel as decimal text.
type MirrorRepositoryPG struct {
	sql infra.SQLExecutor
}

var _ domain.MirrorRepository = (*MirrorRepositoryPG)(nil)

// NewMirrorRepository creates a new mirror repo.
func NewMirrorRepository(sql infra.SQLExecutor) *MirrorRepositoryPG {
	return &MirrorRepositoryPG{sql: sql}
}

// EnsureSchema creates the mirror tables when they are missing.
func (r *MirrorRepositoryPG) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqlinline.SchemaStatements {
		if _, err := r.sql.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertCampaign writes the latest snapshot of a campaign.
func (r *MirrorRepositoryPG) UpsertCampaign(ctx context.Context, c domain.Campaign) error {
	c = c.Clone()
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertCampaign,
		c.ID, c.Name, c.Owner, c.TotalDonations.String(), c.Balance.String())
	return err
}

// ListCampaigns reads every mirrored campaign back.
func (r *MirrorRepositoryPG) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListMirroredCampaigns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Campaign
	for rows.Next() {
		var (
			c              domain.Campaign
			total, balance string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Owner, &total, &balance); err != nil {
			return nil, err
		}
		if c.TotalDonations, err = parseAmount(total); err != nil {
			return nil, err
		}
		if c.Balance, err = parseAmount(balance); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// InsertTransaction appends a history record. Records already mirrored are
// ignored, so replays are safe.
func (r *MirrorRepositoryPG) InsertTransaction(ctx context.Context, campaignID string, rec domain.TransactionRecord) error {
	amount := ""
	if rec.Amount != nil {
		amount = rec.Amount.String()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertCampaignTransaction,
		campaignID, rec.ID, rec.Actor, string(rec.Kind), amount, rec.Timestamp)
	return err
}

// CountTransactions returns how many history records are mirrored for a campaign.
func (r *MirrorRepositoryPG) CountTransactions(ctx context.Context, campaignID string) (int, error) {
	var n int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountCampaignTransactions, campaignID).Scan(&n); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stored amount %q", s)
	}
	return v, nil
}
