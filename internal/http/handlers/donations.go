package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"donationledger/internal/projection"
)

type donationRequest struct {
	// Amount is in display units, e.g. "1.5".
	Amount string `json:"amount"`
}

func (a *App) DonationsCreate(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if !a.decode(w, r, &req) {
		return
	}
	amount, err := projection.ParseUnits(req.Amount, a.Decimals)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	ctx, cancel := a.submitContext(r)
	defer cancel()
	action, err := a.Ledger.Donate(ctx, id, amount)
	a.submitted(w, r, id, action, err)
}

func (a *App) WithdrawalsCreate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := a.submitContext(r)
	defer cancel()
	action, err := a.Ledger.Withdraw(ctx, id)
	a.submitted(w, r, id, action, err)
}
