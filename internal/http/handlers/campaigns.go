package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"donationledger/internal/domain"
	"donationledger/internal/middleware"
	"donationledger/internal/projection"
)

func (a *App) CampaignsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := projection.Params{
		Query: q.Get("q"),
		Key:   projection.ParseSortKey(q.Get("sort")),
		Desc:  strings.EqualFold(q.Get("order"), "desc"),
	}
	campaigns := projection.Query(a.Ledger.ListCampaigns(), params)

	items := make([]campaignView, 0, len(campaigns))
	for _, c := range campaigns {
		items = append(items, a.campaignView(c))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) CampaignGet(w http.ResponseWriter, r *http.Request) {
	c, err := a.Ledger.Campaign(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.campaignView(c))
}

func (a *App) CampaignTransactions(w http.ResponseWriter, r *http.Request) {
	history, err := a.Ledger.TransactionHistory(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	history = projection.SortHistory(history)
	items := make([]transactionView, 0, len(history))
	for _, rec := range history {
		items = append(items, a.transactionView(rec))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

type createCampaignRequest struct {
	Name string `json:"name"`
}

func (a *App) CampaignsCreate(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !a.decode(w, r, &req) {
		return
	}
	ctx, cancel := a.submitContext(r)
	defer cancel()
	action, err := a.Ledger.CreateCampaign(ctx, req.Name)
	a.submitted(w, r, action.CampaignID, action, err)
}

func (a *App) CampaignResync(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	applied, err := a.Ledger.Resync(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"campaign_id": id, "applied": applied})
}

// submitted answers a write. A transaction that was sent but whose
// confirmation wait ended early is reported as 202 with the pending action,
// which can be polled until the ledger echoes it.
func (a *App) submitted(w http.ResponseWriter, r *http.Request, campaignID string, action domain.PendingAction, err error) {
	if err != nil {
		if action.Status == domain.ActionPending && action.TxHash != "" {
			a.Logger.Warn().Err(err).
				Str("request_id", middleware.RequestIDFromContext(r.Context())).
				Str("action_id", action.ID).
				Str("tx_hash", action.TxHash).
				Msg("submission still pending")
			a.json(w, http.StatusAccepted, map[string]any{"action": a.actionView(action)})
			return
		}
		a.fail(w, r, err)
		return
	}
	a.confirmed(w, campaignID, a.actionView(action))
}

// confirmed answers a submission with the action and the campaign state
// after the confirmation was applied.
func (a *App) confirmed(w http.ResponseWriter, campaignID string, action actionView) {
	body := map[string]any{"action": action}
	if c, err := a.Ledger.Campaign(campaignID); err == nil {
		body["campaign"] = a.campaignView(c)
	}
	a.json(w, http.StatusCreated, body)
}
