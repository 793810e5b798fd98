package domain

import (
	"math/big"
	"time"
)

// ActionKind enumerates locally initiated ledger actions.
type ActionKind string

const (
	ActionCreateCampaign ActionKind = "create_campaign"
	ActionDonate         ActionKind = "donate"
	ActionWithdraw       ActionKind = "withdraw"
)

// ActionStatus enumerates the lifecycle of a submitted action.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionConfirmed ActionStatus = "confirmed"
	ActionFailed    ActionStatus = "failed"
)

// PendingAction tracks a locally submitted action until the ledger confirms
// or rejects it. Canonical campaign state is never touched before
// confirmation; this record is the caller-facing pending view.
type PendingAction struct {
	ID         string
	Kind       ActionKind
	CampaignID string
	Actor      string
	Amount     *big.Int
	Status     ActionStatus
	TxHash     string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
