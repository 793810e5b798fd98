// Package ledger holds the local projection of a single campaign.
package ledger

import (
	"fmt"
	"math/big"

	"donationledger/internal/domain"
)

// Ledger is the authoritative local projection of one campaign: its
// immutable identity, running totals and append-only history.
//
// A Ledger has a single writer. Callers that share it across goroutines must
// serialise access themselves.
type Ledger struct {
	id             string
	name           string
	owner          string
	totalDonations *big.Int
	balance        *big.Int
	history        []domain.TransactionRecord
	cursor         *cursor
}

// New creates a ledger from an initial snapshot. Totals are copied.
func New(initial domain.Campaign) *Ledger {
	c := initial.Clone()
	return &Ledger{
		id:             c.ID,
		name:           c.Name,
		owner:          c.Owner,
		totalDonations: c.TotalDonations,
		balance:        c.Balance,
		cursor:         newCursor(),
	}
}

// ID returns the campaign identifier.
func (l *Ledger) ID() string { return l.id }

// Owner returns the campaign owner identity.
func (l *Ledger) Owner() string { return l.owner }

// Applied reports whether the notification id was already applied for topic.
func (l *Ledger) Applied(topic domain.Topic, notificationID string) bool {
	return l.cursor.seen(topic, notificationID)
}

// ApplyDonation records a confirmed donation. A notification id that was
// already applied is a no-op and reports applied == false.
func (l *Ledger) ApplyDonation(amount *big.Int, actor string, timestamp int64, notificationID string) (bool, error) {
	if l.cursor.seen(domain.TopicDonation, notificationID) {
		return false, nil
	}
	if !domain.IsPositive(amount) {
		return false, fmt.Errorf("donation %s: %w", notificationID, domain.ErrInvalidAmount)
	}
	l.totalDonations.Add(l.totalDonations, amount)
	l.balance.Add(l.balance, amount)
	l.append(domain.TransactionRecord{
		ID:        notificationID,
		Actor:     actor,
		Kind:      domain.TransactionDonation,
		Amount:    domain.CopyAmount(amount),
		Timestamp: timestamp,
	})
	l.cursor.mark(domain.TopicDonation, notificationID)
	return true, nil
}

// ApplyWithdrawal records a confirmed withdrawal. The lifetime donation total
// is left untouched. A withdrawal larger than the balance leaves the ledger
// unchanged and returns ErrInsufficientBalance.
func (l *Ledger) ApplyWithdrawal(amount *big.Int, actor string, timestamp int64, notificationID string) (bool, error) {
	if l.cursor.seen(domain.TopicWithdrawal, notificationID) {
		return false, nil
	}
	if !domain.IsPositive(amount) {
		return false, fmt.Errorf("withdrawal %s: %w", notificationID, domain.ErrInvalidAmount)
	}
	if amount.Cmp(l.balance) > 0 {
		return false, fmt.Errorf("withdrawal %s of %s exceeds balance %s: %w",
			notificationID, amount, l.balance, domain.ErrInsufficientBalance)
	}
	l.balance.Sub(l.balance, amount)
	l.append(domain.TransactionRecord{
		ID:        notificationID,
		Actor:     actor,
		Kind:      domain.TransactionWithdrawal,
		Amount:    domain.CopyAmount(amount),
		Timestamp: timestamp,
	})
	l.cursor.mark(domain.TopicWithdrawal, notificationID)
	return true, nil
}

// RecordCreation appends the campaign creation entry once. A creation with a
// different id for a campaign that already has one is not recorded.
func (l *Ledger) RecordCreation(actor string, timestamp int64, notificationID string) bool {
	if l.cursor.seen(domain.TopicCreation, notificationID) || l.HasCreation() {
		return false
	}
	l.append(domain.TransactionRecord{
		ID:        notificationID,
		Actor:     actor,
		Kind:      domain.TransactionCampaignCreation,
		Timestamp: timestamp,
	})
	l.cursor.mark(domain.TopicCreation, notificationID)
	return true
}

// HasCreation reports whether the history holds a creation record.
func (l *Ledger) HasCreation() bool {
	for _, rec := range l.history {
		if rec.Kind == domain.TransactionCampaignCreation {
			return true
		}
	}
	return false
}

// Seed adopts an authoritative snapshot together with the history that
// produced it. Every history id is marked applied so later deliveries of the
// same notifications are absorbed instead of counted twice. Records already
// present locally are kept and not duplicated.
func (l *Ledger) Seed(snapshot domain.Campaign, history []domain.TransactionRecord) {
	c := snapshot.Clone()
	l.totalDonations = c.TotalDonations
	l.balance = c.Balance
	for _, rec := range history {
		topic := topicForKind(rec.Kind)
		if l.cursor.seen(topic, rec.ID) {
			continue
		}
		l.append(rec.Clone())
		l.cursor.mark(topic, rec.ID)
	}
}

// Snapshot returns an immutable copy of the current campaign state.
func (l *Ledger) Snapshot() domain.Campaign {
	return domain.Campaign{
		ID:             l.id,
		Name:           l.name,
		Owner:          l.owner,
		TotalDonations: new(big.Int).Set(l.totalDonations),
		Balance:        new(big.Int).Set(l.balance),
	}
}

// History returns a copy of the records in arrival order.
func (l *Ledger) History() []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, len(l.history))
	for i, rec := range l.history {
		out[i] = rec.Clone()
	}
	return out
}

// AppliedCount returns how many notification ids the cursor holds.
func (l *Ledger) AppliedCount() int {
	return l.cursor.len()
}

func (l *Ledger) append(rec domain.TransactionRecord) {
	l.history = append(l.history, rec)
}
