package reconcile

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/oklog/ulid/v2"

	"donationledger/internal/domain"
	"donationledger/internal/policy"
)

// maxTrackedActions bounds the pending action history kept in memory.
const maxTrackedActions = 200

// maxRememberedTxs bounds the applied transaction hashes kept for matching
// actions whose confirmation wait was aborted.
const maxRememberedTxs = 1024

// CreateCampaign submits a new campaign and blocks until the ledger confirms
// it. The registry only changes once the confirmation is applied.
func (e *Engine) CreateCampaign(ctx context.Context, name string) (domain.PendingAction, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.PendingAction{}, fmt.Errorf("campaign name is required: %w", domain.ErrInvalidName)
	}
	if err := e.ready(); err != nil {
		return domain.PendingAction{}, err
	}

	action := e.beginAction(domain.ActionCreateCampaign, "", nil)
	conf, err := e.gateway.SubmitCreation(ctx, name)
	return e.finishAction(action, conf, err)
}

// Donate submits a donation and blocks until it is confirmed. Nothing is
// applied optimistically.
func (e *Engine) Donate(ctx context.Context, campaignID string, amount *big.Int) (domain.PendingAction, error) {
	if !domain.IsPositive(amount) {
		return domain.PendingAction{}, fmt.Errorf("donation must be positive: %w", domain.ErrInvalidAmount)
	}
	if err := e.ready(); err != nil {
		return domain.PendingAction{}, err
	}
	c, err := e.Campaign(campaignID)
	if err != nil {
		return domain.PendingAction{}, err
	}
	if !policy.CanDonate(e.gateway.Actor(), c) {
		return domain.PendingAction{}, fmt.Errorf("donation not permitted: %w", domain.ErrSubmissionRejected)
	}

	action := e.beginAction(domain.ActionDonate, c.ID, amount)
	conf, err := e.gateway.SubmitDonation(ctx, c.ID, amount)
	return e.finishAction(action, conf, err)
}

// Withdraw drains the campaign balance. Only the owner may withdraw and an
// empty balance fails fast without reaching the ledger.
func (e *Engine) Withdraw(ctx context.Context, campaignID string) (domain.PendingAction, error) {
	if err := e.ready(); err != nil {
		return domain.PendingAction{}, err
	}
	c, err := e.Campaign(campaignID)
	if err != nil {
		return domain.PendingAction{}, err
	}
	actor := e.gateway.Actor()
	if !policy.CanWithdraw(actor, c) {
		return domain.PendingAction{}, fmt.Errorf("only the campaign owner may withdraw: %w", domain.ErrSubmissionRejected)
	}
	if !domain.IsPositive(c.Balance) {
		return domain.PendingAction{}, fmt.Errorf("campaign %s has nothing to withdraw: %w", c.ID, domain.ErrInsufficientBalance)
	}

	action := e.beginAction(domain.ActionWithdraw, c.ID, c.Balance)
	conf, err := e.gateway.SubmitWithdrawal(ctx, c.ID)
	return e.finishAction(action, conf, err)
}

// PendingActions returns tracked local actions, oldest first.
func (e *Engine) PendingActions() []domain.PendingAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.PendingAction, 0, len(e.actionOrder))
	for _, id := range e.actionOrder {
		out = append(out, copyAction(e.actions[id]))
	}
	return out
}

// Action returns one tracked action.
func (e *Engine) Action(id string) (domain.PendingAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.actions[id]
	if !ok {
		return domain.PendingAction{}, fmt.Errorf("action %s: %w", id, domain.ErrNotFound)
	}
	return copyAction(a), nil
}

func (e *Engine) ready() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.closed:
		return ErrClosed
	case !e.loaded || !e.connected:
		return fmt.Errorf("projection not synced: %w", domain.ErrConnectionUnavailable)
	}
	return nil
}

func (e *Engine) beginAction(kind domain.ActionKind, campaignID string, amount *big.Int) string {
	now := e.now()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0)).String()
	a := &domain.PendingAction{
		ID:         id,
		Kind:       kind,
		CampaignID: campaignID,
		Actor:      e.gateway.Actor(),
		Amount:     domain.CopyAmount(amount),
		Status:     domain.ActionPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions[id] = a
	e.actionOrder = append(e.actionOrder, id)
	e.trimActionsLocked()
	snap := copyAction(a)
	e.emitLocked(Change{Type: ChangeActionUpdated, CampaignID: campaignID, Action: &snap})
	return id
}

// finishAction records the outcome of a submission. On success the
// confirmation's notifications go through the same path as pushed ones, so
// the later echo from the subscription is absorbed as a duplicate.
func (e *Engine) finishAction(id string, conf *domain.Confirmation, submitErr error) (domain.PendingAction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.actions[id]
	if !ok {
		a = &domain.PendingAction{ID: id}
	}
	a.UpdatedAt = e.now()

	if submitErr != nil && conf != nil && conf.TxHash != "" {
		return e.awaitLocked(a, conf.TxHash, submitErr), submitErr
	}
	if submitErr != nil {
		a.Status = domain.ActionFailed
		a.Error = submitErr.Error()
		snap := copyAction(a)
		e.emitLocked(Change{Type: ChangeActionUpdated, CampaignID: a.CampaignID, Action: &snap})
		e.logger.Warn().Err(submitErr).Str("action_id", id).Str("kind", string(a.Kind)).Msg("reconcile: submission failed")
		return snap, submitErr
	}

	a.Status = domain.ActionConfirmed
	if conf != nil {
		a.TxHash = conf.TxHash
		if a.CampaignID == "" {
			a.CampaignID = conf.CampaignID
		}
		if !e.closed {
			for _, n := range conf.Notifications {
				if _, err := e.applyLocked(n); err != nil {
					e.logger.Error().Err(err).Str("action_id", id).Msg("reconcile: confirmed notification not applied")
				}
			}
		}
	}
	snap := copyAction(a)
	e.emitLocked(Change{Type: ChangeActionUpdated, CampaignID: a.CampaignID, Action: &snap})
	e.logger.Info().Str("action_id", id).Str("kind", string(a.Kind)).Str("tx_hash", a.TxHash).Msg("reconcile: action confirmed")
	return snap, nil
}

// awaitLocked keeps an action whose transaction was sent but not seen mined
// pending. The notification carrying its hash confirms it later.
func (e *Engine) awaitLocked(a *domain.PendingAction, txHash string, waitErr error) domain.PendingAction {
	a.TxHash = txHash
	a.Error = waitErr.Error()
	key := strings.ToLower(txHash)
	if _, ok := e.appliedTx[key]; ok {
		a.Status = domain.ActionConfirmed
		a.Error = ""
	} else {
		e.awaiting[key] = a.ID
	}
	snap := copyAction(a)
	e.emitLocked(Change{Type: ChangeActionUpdated, CampaignID: a.CampaignID, Action: &snap})
	e.logger.Warn().Err(waitErr).
		Str("action_id", a.ID).
		Str("tx_hash", txHash).
		Str("status", string(a.Status)).
		Msg("reconcile: confirmation wait aborted")
	return snap
}

// settleLocked records the transaction behind an applied notification and
// confirms the action waiting on it, if any.
func (e *Engine) settleLocked(n domain.Notification) {
	key := txHashOf(n.ID)
	if key == "" {
		return
	}
	if _, ok := e.appliedTx[key]; !ok {
		e.appliedTx[key] = struct{}{}
		e.appliedTxs = append(e.appliedTxs, key)
		for len(e.appliedTxs) > maxRememberedTxs {
			delete(e.appliedTx, e.appliedTxs[0])
			e.appliedTxs = e.appliedTxs[1:]
		}
	}

	id, ok := e.awaiting[key]
	if !ok {
		return
	}
	delete(e.awaiting, key)
	a, ok := e.actions[id]
	if !ok || a.Status != domain.ActionPending {
		return
	}
	a.Status = domain.ActionConfirmed
	a.Error = ""
	a.UpdatedAt = e.now()
	if a.CampaignID == "" {
		a.CampaignID = n.CampaignID
	}
	snap := copyAction(a)
	e.emitLocked(Change{Type: ChangeActionUpdated, CampaignID: a.CampaignID, Action: &snap})
	e.logger.Info().Str("action_id", id).Str("tx_hash", a.TxHash).Msg("reconcile: action confirmed by notification")
}

// txHashOf extracts the transaction hash from a notification id. Ledger ids
// are either the hash itself or hash:logIndex.
func txHashOf(notificationID string) string {
	h, _, _ := strings.Cut(notificationID, ":")
	return strings.ToLower(h)
}

func (e *Engine) trimActionsLocked() {
	for len(e.actionOrder) > maxTrackedActions {
		oldest := e.actionOrder[0]
		if a := e.actions[oldest]; a != nil && a.Status == domain.ActionPending {
			return
		}
		delete(e.actions, oldest)
		e.actionOrder = e.actionOrder[1:]
	}
}

func copyAction(a *domain.PendingAction) domain.PendingAction {
	if a == nil {
		return domain.PendingAction{}
	}
	out := *a
	out.Amount = domain.CopyAmount(a.Amount)
	return out
}
