// Package reconcile merges the ledger's bulk reads, pushed notifications and
// locally confirmed actions into one consistent campaign projection.
//
// The Engine exclusively owns the registry and every campaign ledger. All
// mutations run under a single mutex, and readers only ever receive copies.
// Gateway calls (submissions, bulk reads) happen outside the mutex.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"donationledger/internal/domain"
	"donationledger/internal/registry"
)

// ErrClosed is returned by operations on an engine that was shut down.
var ErrClosed = errors.New("reconcile: engine closed")

var errAlreadyStarted = errors.New("reconcile: engine already started")

// Status summarises the engine state for health reporting.
type Status struct {
	Started    bool
	Synced     bool
	Connected  bool
	Closed     bool
	Campaigns  int
	Buffered   int
	Checkpoint uint64
	Faults     int
	Discarded  int
}

// Engine is the single writer of the campaign projection for one session.
type Engine struct {
	gateway domain.LedgerGateway
	logger  zerolog.Logger
	now     func() time.Time

	mu          sync.Mutex
	registry    *registry.Registry
	started     bool
	loaded      bool
	closed      bool
	connected   bool
	buffer      []domain.Notification
	sub         domain.Subscription
	checkpoint  uint64
	faults      int
	discarded   int
	actions     map[string]*domain.PendingAction
	actionOrder []string
	awaiting    map[string]string
	appliedTx   map[string]struct{}
	appliedTxs  []string
	subscribers map[int]*subscriber
	nextSubID   int
	failed      chan error
}

// NewEngine wires an engine to a ledger gateway.
func NewEngine(gateway domain.LedgerGateway, logger zerolog.Logger) *Engine {
	return &Engine{
		gateway:     gateway,
		logger:      logger.With().Str("component", "reconcile").Logger(),
		now:         time.Now,
		registry:    registry.New(),
		actions:     make(map[string]*domain.PendingAction),
		awaiting:    make(map[string]string),
		appliedTx:   make(map[string]struct{}),
		subscribers: make(map[int]*subscriber),
		failed:      make(chan error, 1),
	}
}

// Start subscribes to every notification topic and then performs the bulk
// read. Notifications that arrive while the bulk read is in flight are
// buffered and replayed afterwards in arrival order. On failure the
// subscription is released before Start returns.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.started {
		e.mu.Unlock()
		return errAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	sub, err := e.gateway.Subscribe(ctx, domain.SubscriptionFilter{Topics: domain.AllTopics}, e.handle)
	if err != nil {
		return fmt.Errorf("subscribe notifications: %w", err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		sub.Unsubscribe()
		return ErrClosed
	}
	e.sub = sub
	e.connected = true
	e.mu.Unlock()

	go e.watch(sub)

	if err := e.load(ctx); err != nil {
		e.Close()
		return err
	}
	return nil
}

// Run starts the engine if Start has not been called and keeps it alive
// until ctx is cancelled or the subscription fails. The subscription is
// released on every exit path.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil && !errors.Is(err, errAlreadyStarted) {
		return err
	}
	defer e.Close()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-e.failed:
		return err
	}
}

// Close stops notification delivery and releases the subscription. It is
// safe to call while a notification is being applied and more than once.
// Notifications not yet applied are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.connected = false
	sub := e.sub
	e.sub = nil
	dropped := len(e.buffer)
	e.buffer = nil
	subs := e.subscribers
	e.subscribers = make(map[int]*subscriber)
	e.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	for _, s := range subs {
		s.close()
	}
	e.logger.Info().Int("dropped_buffered", dropped).Msg("reconcile: engine closed")
}

// Status reports the current engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Started:    e.started,
		Synced:     e.loaded,
		Connected:  e.connected,
		Closed:     e.closed,
		Campaigns:  e.registry.Len(),
		Buffered:   len(e.buffer),
		Checkpoint: e.checkpoint,
		Faults:     e.faults,
		Discarded:  e.discarded,
	}
}

// Actor returns the identity local actions are submitted as.
func (e *Engine) Actor() string {
	return e.gateway.Actor()
}

// ListCampaigns returns snapshots of every known campaign.
func (e *Engine) ListCampaigns() []domain.Campaign {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.List()
}

// Campaign returns the snapshot of a single campaign.
func (e *Engine) Campaign(id string) (domain.Campaign, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.registry.Get(id)
	if !ok {
		return domain.Campaign{}, fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
	}
	return l.Snapshot(), nil
}

// TransactionHistory returns the campaign history in arrival order.
func (e *Engine) TransactionHistory(id string) ([]domain.TransactionRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
	}
	return l.History(), nil
}

// Resync reads the campaign history back from the ledger and applies any
// record the local projection is missing through the idempotent path. It
// returns how many records were applied.
func (e *Engine) Resync(ctx context.Context, id string) (int, error) {
	if _, err := e.Campaign(id); err != nil {
		return 0, err
	}
	history, err := e.gateway.ReadTransactionHistory(ctx, id, 0)
	if err != nil {
		return 0, fmt.Errorf("read history %s: %w", id, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	applied := 0
	for _, rec := range history {
		ok, _ := e.applyLocked(domain.NotificationFromRecord(id, rec))
		if ok {
			applied++
		}
	}
	if applied > 0 {
		e.logger.Warn().Str("campaign_id", id).Int("applied", applied).Msg("reconcile: resync recovered missing records")
	}
	return applied, nil
}

func (e *Engine) load(ctx context.Context) error {
	bulk, err := e.gateway.ReadAllCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("bulk read: %w", err)
	}
	histories := make(map[string][]domain.TransactionRecord, len(bulk.Campaigns))
	for _, c := range bulk.Campaigns {
		history, err := e.gateway.ReadTransactionHistory(ctx, c.ID, bulk.Checkpoint)
		if err != nil {
			return fmt.Errorf("read history %s: %w", c.ID, err)
		}
		histories[c.ID] = history
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	for _, c := range bulk.Campaigns {
		l, _ := e.registry.Register(c.ID, c)
		l.Seed(c, histories[c.ID])
		e.checkSeed(c, histories[c.ID])
	}
	e.checkpoint = bulk.Checkpoint

	buffered := e.buffer
	e.buffer = nil
	e.loaded = true
	for _, n := range buffered {
		_, _ = e.applyLocked(n)
	}

	e.logger.Info().
		Int("campaigns", len(bulk.Campaigns)).
		Int("replayed", len(buffered)).
		Uint64("checkpoint", bulk.Checkpoint).
		Msg("reconcile: bulk read applied")
	e.emitLocked(Change{Type: ChangeSynced})
	return nil
}

// checkSeed compares a bulk snapshot with the history that should have
// produced it. A mismatch is reported, never corrected.
func (e *Engine) checkSeed(c domain.Campaign, history []domain.TransactionRecord) {
	donated := new(big.Int)
	withdrawn := new(big.Int)
	for _, rec := range history {
		if rec.Amount == nil {
			continue
		}
		switch rec.Kind {
		case domain.TransactionDonation:
			donated.Add(donated, rec.Amount)
		case domain.TransactionWithdrawal:
			withdrawn.Add(withdrawn, rec.Amount)
		}
	}
	balance := new(big.Int).Sub(donated, withdrawn)
	total := c.TotalDonations
	if total == nil {
		total = new(big.Int)
	}
	current := c.Balance
	if current == nil {
		current = new(big.Int)
	}
	if donated.Cmp(total) != 0 || balance.Cmp(current) != 0 {
		e.faults++
		e.logger.Error().
			Err(domain.ErrConsistencyFault).
			Str("campaign_id", c.ID).
			Str("snapshot_total", total.String()).
			Str("history_total", donated.String()).
			Str("snapshot_balance", current.String()).
			Str("history_balance", balance.String()).
			Msg("reconcile: snapshot disagrees with history")
	}
}

// handle is the subscription callback.
func (e *Engine) handle(n domain.Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if !e.loaded {
		e.buffer = append(e.buffer, n)
		return
	}
	_, _ = e.applyLocked(n)
}

func (e *Engine) watch(sub domain.Subscription) {
	errs := sub.Err()
	if errs == nil {
		return
	}
	err, ok := <-errs
	if !ok || err == nil {
		return
	}

	e.mu.Lock()
	closed := e.closed
	if !closed {
		e.connected = false
		e.emitLocked(Change{Type: ChangeDisconnected})
	}
	e.mu.Unlock()
	if closed {
		return
	}

	e.logger.Error().Err(err).Msg("reconcile: subscription failed")
	select {
	case e.failed <- fmt.Errorf("subscription: %w", err):
	default:
	}
}

// applyLocked routes one notification to the registry or a campaign ledger.
// Failures are logged and the notification discarded; they never propagate
// back into the subscription. Callers hold e.mu.
func (e *Engine) applyLocked(n domain.Notification) (applied bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.faults++
			applied = false
			err = fmt.Errorf("%w: apply panicked: %v", domain.ErrConsistencyFault, r)
			e.logger.Error().Err(err).Str("notification_id", n.ID).Msg("reconcile: notification discarded")
		}
	}()

	if n.ID == "" {
		n.ID = domain.DeriveNotificationID(n)
	}
	log := e.logger.With().
		Str("notification_id", n.ID).
		Str("topic", string(n.Topic)).
		Str("campaign_id", n.CampaignID).
		Logger()

	switch n.Topic {
	case domain.TopicCreation:
		if strings.TrimSpace(n.CampaignID) == "" {
			e.discarded++
			log.Warn().Msg("reconcile: creation without campaign id discarded")
			return false, fmt.Errorf("creation %s has no campaign id", n.ID)
		}
		if l, ok := e.registry.Get(n.CampaignID); ok && l.HasCreation() && !l.Applied(domain.TopicCreation, n.ID) {
			e.discarded++
			log.Warn().Msg("reconcile: second creation for known campaign discarded")
			return false, fmt.Errorf("campaign %s already created", n.CampaignID)
		}
		l, created := e.registry.Register(n.CampaignID, domain.Campaign{
			Name:  n.Name,
			Owner: n.Owner,
		})
		recorded := l.RecordCreation(n.Actor, n.Timestamp, n.ID)
		if !created && !recorded {
			log.Debug().Msg("reconcile: duplicate notification absorbed")
			return false, nil
		}
		snap := l.Snapshot()
		e.emitLocked(Change{Type: ChangeCampaignRegistered, CampaignID: snap.ID, Campaign: &snap})
		log.Info().Str("name", n.Name).Msg("reconcile: campaign registered")
		e.settleLocked(n)
		return true, nil

	case domain.TopicDonation, domain.TopicWithdrawal:
		l, ok := e.registry.Get(n.CampaignID)
		if !ok {
			e.discarded++
			log.Debug().Msg("reconcile: notification for unknown campaign discarded")
			return false, fmt.Errorf("campaign %s: %w", n.CampaignID, domain.ErrNotFound)
		}
		if n.Topic == domain.TopicDonation {
			applied, err = l.ApplyDonation(n.Amount, n.Actor, n.Timestamp, n.ID)
		} else {
			applied, err = l.ApplyWithdrawal(n.Amount, n.Actor, n.Timestamp, n.ID)
		}
		if err != nil {
			e.discarded++
			if errors.Is(err, domain.ErrInsufficientBalance) {
				e.faults++
				err = fmt.Errorf("%w: %w", domain.ErrConsistencyFault, err)
				log.Error().Err(err).Msg("reconcile: notification discarded")
			} else {
				log.Warn().Err(err).Msg("reconcile: notification rejected")
			}
			return false, err
		}
		if !applied {
			log.Debug().Msg("reconcile: duplicate notification absorbed")
			return false, nil
		}
		snap := l.Snapshot()
		rec := n.Record()
		changeType := ChangeDonationApplied
		if n.Topic == domain.TopicWithdrawal {
			changeType = ChangeWithdrawalApplied
		}
		e.emitLocked(Change{Type: changeType, CampaignID: snap.ID, Campaign: &snap, Record: &rec})
		e.settleLocked(n)
		return true, nil

	default:
		e.discarded++
		log.Warn().Msg("reconcile: unknown notification topic")
		return false, fmt.Errorf("unknown topic %q", n.Topic)
	}
}
