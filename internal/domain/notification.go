package domain

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Topic names a notification stream published by the ledger.
type Topic string

const (
	TopicCreation   Topic = "creation"
	TopicDonation   Topic = "donation"
	TopicWithdrawal Topic = "withdrawal"
)

// AllTopics lists every topic in a stable order.
var AllTopics = []Topic{TopicCreation, TopicDonation, TopicWithdrawal}

// Kind maps the topic to the history record kind it produces.
func (t Topic) Kind() TransactionKind {
	switch t {
	case TopicDonation:
		return TransactionDonation
	case TopicWithdrawal:
		return TransactionWithdrawal
	default:
		return TransactionCampaignCreation
	}
}

// Notification describes a confirmed state change observed on the ledger.
// It may be delivered more than once.
type Notification struct {
	ID         string
	Topic      Topic
	CampaignID string
	Actor      string
	Amount     *big.Int
	Timestamp  int64
	// Seq is the ledger ordering hint (block number) when the gateway knows it.
	Seq uint64

	// Name and Owner are only set for creation notifications.
	Name  string
	Owner string
}

// DeriveNotificationID builds a deterministic id from the notification
// content. Gateways that expose a native sequence (transaction hash and log
// index) set ID themselves and this is never consulted.
func DeriveNotificationID(n Notification) string {
	amount := "-"
	if n.Amount != nil {
		amount = n.Amount.String()
	}
	parts := []string{
		strings.ToLower(n.CampaignID),
		string(n.Topic),
		strings.ToLower(n.Actor),
		amount,
		strconv.FormatInt(n.Timestamp, 10),
	}
	return "derived:" + crypto.Keccak256Hash([]byte(strings.Join(parts, "|"))).Hex()
}

// Record converts the notification into the history entry it produces.
func (n Notification) Record() TransactionRecord {
	rec := TransactionRecord{
		ID:        n.ID,
		Actor:     n.Actor,
		Kind:      n.Topic.Kind(),
		Timestamp: n.Timestamp,
	}
	if n.Topic != TopicCreation {
		rec.Amount = CopyAmount(n.Amount)
	}
	return rec
}

// NotificationFromRecord rebuilds the notification a history record came
// from. Used when replaying history read back from the ledger.
func NotificationFromRecord(campaignID string, rec TransactionRecord) Notification {
	topic := TopicCreation
	switch rec.Kind {
	case TransactionDonation:
		topic = TopicDonation
	case TransactionWithdrawal:
		topic = TopicWithdrawal
	}
	return Notification{
		ID:         rec.ID,
		Topic:      topic,
		CampaignID: campaignID,
		Actor:      rec.Actor,
		Amount:     CopyAmount(rec.Amount),
		Timestamp:  rec.Timestamp,
	}
}
