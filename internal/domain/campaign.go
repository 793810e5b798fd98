package domain

import "math/big"

// Campaign is a read-only view of one fundraising campaign.
//
// Balance always equals TotalDonations minus everything withdrawn so far, so
// it can never exceed TotalDonations.
type Campaign struct {
	ID             string
	Name           string
	Owner          string
	TotalDonations *big.Int
	Balance        *big.Int
}

// Clone returns a deep copy safe to hand to readers.
func (c Campaign) Clone() Campaign {
	c.TotalDonations = amountOrZero(c.TotalDonations)
	c.Balance = amountOrZero(c.Balance)
	return c
}
