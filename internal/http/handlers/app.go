package handlers

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"donationledger/internal/domain"
	"donationledger/internal/infra"
	"donationledger/internal/reconcile"
)

// Ledger is the reconciled campaign state the API serves and mutates.
// *reconcile.Engine implements it.
type Ledger interface {
	Status() reconcile.Status
	Actor() string
	ListCampaigns() []domain.Campaign
	Campaign(id string) (domain.Campaign, error)
	TransactionHistory(id string) ([]domain.TransactionRecord, error)
	CreateCampaign(ctx context.Context, name string) (domain.PendingAction, error)
	Donate(ctx context.Context, campaignID string, amount *big.Int) (domain.PendingAction, error)
	Withdraw(ctx context.Context, campaignID string) (domain.PendingAction, error)
	PendingActions() []domain.PendingAction
	Action(id string) (domain.PendingAction, error)
	Resync(ctx context.Context, campaignID string) (int, error)
}

var _ Ledger = (*reconcile.Engine)(nil)

type App struct {
	Ledger   Ledger
	Stream   http.Handler
	Logger   zerolog.Logger
	Decimals int
	Symbol   string
	// SubmitTimeout bounds how long a write waits for its confirmation.
	// Zero leaves only the request context.
	SubmitTimeout time.Duration
}

func NewApp(ledger Ledger, stream http.Handler, logger zerolog.Logger, cfg *infra.Config) *App {
	return &App{
		Ledger:   ledger,
		Stream:   stream,
		Logger:   logger,
		Decimals: cfg.AmountDecimals,
		Symbol:   cfg.UnitSymbol,

		SubmitTimeout: cfg.SubmitTimeout,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) submitContext(r *http.Request) (context.Context, context.CancelFunc) {
	if a.SubmitTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), a.SubmitTimeout)
}

const maxBodyBytes = 1 << 16

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest)
		return false
	}
	return true
}
