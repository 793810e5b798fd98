// Package policy provides authorization decisions for campaign actions.
package policy

import (
	"strings"

	"donationledger/internal/domain"
)

// Action represents a policy decision for a campaign action.
type Action int

const (
	// ActionDonate allows sending value to a campaign.
	ActionDonate Action = iota + 1
	// ActionWithdraw allows draining a campaign balance.
	ActionWithdraw
)

// Can reports whether actor may perform action on the campaign.
//
// The ledger enforces the same rules authoritatively; this check only lets
// callers fail fast before submitting.
func Can(actor string, action Action, c domain.Campaign) bool {
	switch action {
	case ActionDonate:
		return true
	case ActionWithdraw:
		return sameIdentity(actor, c.Owner)
	default:
		return false
	}
}

// CanWithdraw reports whether actor owns the campaign.
func CanWithdraw(actor string, c domain.Campaign) bool {
	return Can(actor, ActionWithdraw, c)
}

// CanDonate always reports true; amount validation happens in the ledger.
func CanDonate(actor string, c domain.Campaign) bool {
	return Can(actor, ActionDonate, c)
}

func sameIdentity(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}
