package domain

import "math/big"

// TransactionKind enumerates the record types kept in a campaign history.
type TransactionKind string

const (
	TransactionDonation         TransactionKind = "donation"
	TransactionWithdrawal       TransactionKind = "withdrawal"
	TransactionCampaignCreation TransactionKind = "campaign_creation"
)

// TransactionRecord is an immutable history entry. Amount is nil for
// campaign creation records. Timestamp is supplied by the ledger in seconds
// since epoch.
type TransactionRecord struct {
	ID        string
	Actor     string
	Kind      TransactionKind
	Amount    *big.Int
	Timestamp int64
}

// Clone returns a copy that shares no amount storage with r.
func (r TransactionRecord) Clone() TransactionRecord {
	r.Amount = CopyAmount(r.Amount)
	return r
}
