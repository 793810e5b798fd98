package domain

import "context"

// MirrorRepository persists the reconciled projection into a read model.
// The mirror is never a source of truth and can be rebuilt at any time.
type MirrorRepository interface {
	EnsureSchema(ctx context.Context) error
	UpsertCampaign(ctx context.Context, campaign Campaign) error
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	InsertTransaction(ctx context.Context, campaignID string, record TransactionRecord) error
	CountTransactions(ctx context.Context, campaignID string) (int, error)
}
