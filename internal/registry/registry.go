// Package registry tracks the set of known campaigns.
package registry

import (
	"strings"

	"donationledger/internal/domain"
	"donationledger/internal/ledger"
)

// Registry maps campaign identifiers to their ledgers. Membership is
// append-only. Like Ledger it has a single writer.
type Registry struct {
	ledgers map[string]*ledger.Ledger
	order   []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{ledgers: make(map[string]*ledger.Ledger)}
}

// Register inserts a campaign unless it is already known. Duplicates are
// absorbed and report created == false.
func (r *Registry) Register(id string, initial domain.Campaign) (*ledger.Ledger, bool) {
	key := normalizeID(id)
	if l, ok := r.ledgers[key]; ok {
		return l, false
	}
	initial.ID = id
	l := ledger.New(initial)
	r.ledgers[key] = l
	r.order = append(r.order, key)
	return l, true
}

// Get resolves a campaign id to its ledger.
func (r *Registry) Get(id string) (*ledger.Ledger, bool) {
	l, ok := r.ledgers[normalizeID(id)]
	return l, ok
}

// List returns snapshots of every known campaign.
func (r *Registry) List() []domain.Campaign {
	out := make([]domain.Campaign, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.ledgers[key].Snapshot())
	}
	return out
}

// Len returns the number of known campaigns.
func (r *Registry) Len() int {
	return len(r.order)
}

// Ledger addresses are hex and compare case-insensitively.
func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
