package handlers

import (
	"math/big"
	"time"

	"donationledger/internal/domain"
	"donationledger/internal/policy"
	"donationledger/internal/projection"
	"donationledger/internal/reconcile"
)

// Amounts are rendered twice: base units as an integer string and the
// formatted decimal in display units.
type amountView struct {
	Base      string `json:"base"`
	Formatted string `json:"formatted"`
	Unit      string `json:"unit"`
}

type campaignView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Owner          string     `json:"owner"`
	TotalDonations amountView `json:"total_donations"`
	Balance        amountView `json:"balance"`
	CanWithdraw    bool       `json:"can_withdraw"`
}

type transactionView struct {
	ID         string      `json:"id"`
	Actor      string      `json:"actor"`
	Kind       string      `json:"kind"`
	Amount     *amountView `json:"amount"`
	Timestamp  int64       `json:"timestamp"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type actionView struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	CampaignID string      `json:"campaign_id,omitempty"`
	Actor      string      `json:"actor"`
	Amount     *amountView `json:"amount,omitempty"`
	Status     string      `json:"status"`
	TxHash     string      `json:"tx_hash,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (a *App) amount(v *big.Int) amountView {
	if v == nil {
		v = new(big.Int)
	}
	return amountView{
		Base:      v.String(),
		Formatted: projection.FormatUnits(v, a.Decimals),
		Unit:      a.Symbol,
	}
}

func (a *App) optionalAmount(v *big.Int) *amountView {
	if v == nil {
		return nil
	}
	view := a.amount(v)
	return &view
}

func (a *App) campaignView(c domain.Campaign) campaignView {
	return campaignView{
		ID:             c.ID,
		Name:           c.Name,
		Owner:          c.Owner,
		TotalDonations: a.amount(c.TotalDonations),
		Balance:        a.amount(c.Balance),
		CanWithdraw:    policy.CanWithdraw(a.Ledger.Actor(), c) && domain.IsPositive(c.Balance),
	}
}

func (a *App) transactionView(rec domain.TransactionRecord) transactionView {
	return transactionView{
		ID:         rec.ID,
		Actor:      rec.Actor,
		Kind:       string(rec.Kind),
		Amount:     a.optionalAmount(rec.Amount),
		Timestamp:  rec.Timestamp,
		OccurredAt: time.Unix(rec.Timestamp, 0).UTC(),
	}
}

func (a *App) actionView(p domain.PendingAction) actionView {
	return actionView{
		ID:         p.ID,
		Kind:       string(p.Kind),
		CampaignID: p.CampaignID,
		Actor:      p.Actor,
		Amount:     a.optionalAmount(p.Amount),
		Status:     string(p.Status),
		TxHash:     p.TxHash,
		Error:      p.Error,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// ChangePayload renders a state change for the websocket stream.
func (a *App) ChangePayload(c reconcile.Change) any {
	payload := map[string]any{}
	if c.Campaign != nil {
		payload["campaign"] = a.campaignView(*c.Campaign)
	}
	if c.Record != nil {
		payload["transaction"] = a.transactionView(*c.Record)
	}
	if c.Action != nil {
		payload["action"] = a.actionView(*c.Action)
	}
	if len(payload) == 0 {
		return nil
	}
	return payload
}
