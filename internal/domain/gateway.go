package domain

import (
	"context"
	"math/big"
)

// Confirmation is returned once the ledger has accepted a submission. It
// carries the notifications the submission produced so the caller can apply
// them through the regular reconciliation path.
type Confirmation struct {
	TxHash        string
	CampaignID    string
	Notifications []Notification
}

// BulkRead is a full snapshot of every campaign taken at Checkpoint.
type BulkRead struct {
	Checkpoint uint64
	Campaigns  []Campaign
}

// SubscriptionFilter selects notification topics, optionally scoped to one
// campaign. An empty CampaignID subscribes globally.
type SubscriptionFilter struct {
	Topics     []Topic
	CampaignID string
}

// NotificationHandler receives notifications in delivery order.
type NotificationHandler func(Notification)

// Subscription is a live notification stream. Unsubscribe stops delivery and
// may be called more than once.
type Subscription interface {
	Unsubscribe()
	Err() <-chan error
}

// LedgerGateway is the boundary to the external ledger.
type LedgerGateway interface {
	// Actor is the identity every submission is signed as.
	Actor() string
	// Submissions block until the ledger confirms. When the wait fails after
	// the transaction was sent, the returned Confirmation carries only its
	// TxHash alongside the error.
	SubmitCreation(ctx context.Context, name string) (*Confirmation, error)
	SubmitDonation(ctx context.Context, campaignID string, amount *big.Int) (*Confirmation, error)
	// SubmitWithdrawal withdraws the whole current balance.
	SubmitWithdrawal(ctx context.Context, campaignID string) (*Confirmation, error)
	ReadAllCampaigns(ctx context.Context) (*BulkRead, error)
	// ReadTransactionHistory returns the campaign history up to and including
	// checkpoint upTo. Zero means latest.
	ReadTransactionHistory(ctx context.Context, campaignID string, upTo uint64) ([]TransactionRecord, error)
	Subscribe(ctx context.Context, filter SubscriptionFilter, handler NotificationHandler) (Subscription, error)
}
