// Package projection derives display-ready views from campaign snapshots.
// Every function is pure and works on copies handed out by the engine.
package projection

import (
	"math/big"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"donationledger/internal/domain"
)

// SortKey selects the campaign ordering.
type SortKey string

const (
	SortByName           SortKey = "name"
	SortByTotalDonations SortKey = "total_donations"
)

// Params describes a list query.
type Params struct {
	Query string
	Key   SortKey
	Desc  bool
}

// ParseSortKey maps user input to a sort key, falling back to name.
func ParseSortKey(raw string) SortKey {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "total_donations", "totaldonations", "donations", "total":
		return SortByTotalDonations
	default:
		return SortByName
	}
}

// Filter keeps campaigns whose name contains query, ignoring case.
func Filter(campaigns []domain.Campaign, query string) []domain.Campaign {
	query = strings.TrimSpace(query)
	out := make([]domain.Campaign, 0, len(campaigns))
	if query == "" {
		return append(out, campaigns...)
	}
	folder := cases.Fold()
	needle := folder.String(query)
	for _, c := range campaigns {
		if strings.Contains(folder.String(c.Name), needle) {
			out = append(out, c)
		}
	}
	return out
}

// Sort orders campaigns in place. Donation totals compare as integers, never
// as text. Ties fall back to the campaign id so the order is total.
func Sort(campaigns []domain.Campaign, key SortKey, desc bool) {
	sort.SliceStable(campaigns, func(i, j int) bool {
		c := compare(campaigns[i], campaigns[j], key)
		if c == 0 {
			return campaigns[i].ID < campaigns[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// Query filters then sorts a copy of campaigns.
func Query(campaigns []domain.Campaign, p Params) []domain.Campaign {
	out := Filter(campaigns, p.Query)
	key := p.Key
	if key == "" {
		key = SortByName
	}
	Sort(out, key, p.Desc)
	return out
}

// SortHistory returns records ordered by ledger timestamp, newest first.
// Arrival order breaks ties.
func SortHistory(records []domain.TransactionRecord) []domain.TransactionRecord {
	out := append([]domain.TransactionRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

func compare(a, b domain.Campaign, key SortKey) int {
	switch key {
	case SortByTotalDonations:
		return amount(a.TotalDonations).Cmp(amount(b.TotalDonations))
	default:
		return strings.Compare(a.Name, b.Name)
	}
}

var zero = new(big.Int)

func amount(a *big.Int) *big.Int {
	if a == nil {
		return zero
	}
	return a
}
