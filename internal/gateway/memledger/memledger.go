// Package memledger is an in-process stand-in for the donation contracts.
// It enforces the same rules as the on-chain factory and campaigns, numbers
// every event with a ledger sequence, and fans notifications out to
// subscribers. It backs LEDGER_MODE=memory and the engine tests.
package memledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"donationledger/internal/domain"
)

type entry struct {
	seq    uint64
	record domain.TransactionRecord
}

type campaign struct {
	id             string
	name           string
	owner          string
	totalDonations *big.Int
	balance        *big.Int
	history        []entry
}

func (c *campaign) snapshot() domain.Campaign {
	return domain.Campaign{
		ID:             c.id,
		Name:           c.name,
		Owner:          c.owner,
		TotalDonations: new(big.Int).Set(c.totalDonations),
		Balance:        new(big.Int).Set(c.balance),
	}
}

// Ledger is the shared simulated chain state.
type Ledger struct {
	mu        sync.Mutex
	seq       uint64
	addrSeq   uint64
	campaigns map[string]*campaign
	order     []string
	subs      map[int]*subscription
	nextSubID int
	offline   bool
	manual    bool
	queue     []domain.Notification
	clock     func() time.Time
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		campaigns: make(map[string]*campaign),
		subs:      make(map[int]*subscription),
		clock:     time.Now,
	}
}

// SetClock overrides the block timestamp source.
func (l *Ledger) SetClock(clock func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}

// SetOffline makes every gateway call fail with ErrConnectionUnavailable.
func (l *Ledger) SetOffline(offline bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offline = offline
}

// HoldNotifications queues notifications instead of delivering them until
// Flush is called.
func (l *Ledger) HoldNotifications(hold bool) {
	l.mu.Lock()
	l.manual = hold
	l.mu.Unlock()
	if !hold {
		l.Flush()
	}
}

// Flush delivers every queued notification in order and returns how many
// were delivered.
func (l *Ledger) Flush() int {
	l.mu.Lock()
	queued := l.queue
	l.queue = nil
	l.mu.Unlock()
	for _, n := range queued {
		l.deliver(n)
	}
	return len(queued)
}

// Redeliver pushes notifications to subscribers again, as a flaky transport
// would.
func (l *Ledger) Redeliver(ns ...domain.Notification) {
	for _, n := range ns {
		l.deliver(n)
	}
}

// Seed creates a campaign directly, the way the deploy script creates its
// sample campaign, and returns its id.
func (l *Ledger) Seed(name, owner string) string {
	l.mu.Lock()
	n := l.createLocked(name, owner)
	l.mu.Unlock()
	l.publish(n)
	return n.CampaignID
}

// Gateway returns a view of the ledger that signs as actor.
func (l *Ledger) Gateway(actor string) *Gateway {
	return &Gateway{ledger: l, actor: actor}
}

// Snapshot returns the authoritative state of one campaign.
func (l *Ledger) Snapshot(id string) (domain.Campaign, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.campaigns[normalize(id)]
	if !ok {
		return domain.Campaign{}, false
	}
	return c.snapshot(), true
}

func (l *Ledger) createLocked(name, owner string) domain.Notification {
	l.addrSeq++
	id := fmt.Sprintf("0x%040x", l.addrSeq)
	c := &campaign{
		id:             id,
		name:           name,
		owner:          owner,
		totalDonations: new(big.Int),
		balance:        new(big.Int),
	}
	l.campaigns[normalize(id)] = c
	l.order = append(l.order, normalize(id))
	n := domain.Notification{
		Topic:      domain.TopicCreation,
		CampaignID: id,
		Actor:      owner,
		Name:       name,
		Owner:      owner,
	}
	return l.recordLocked(c, n)
}

func (l *Ledger) recordLocked(c *campaign, n domain.Notification) domain.Notification {
	l.seq++
	n.Seq = l.seq
	n.ID = fmt.Sprintf("mem:%d", l.seq)
	n.Timestamp = l.clock().Unix()
	c.history = append(c.history, entry{seq: l.seq, record: n.Record()})
	return n
}

func (l *Ledger) publish(n domain.Notification) {
	l.mu.Lock()
	if l.manual {
		l.queue = append(l.queue, n)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	l.deliver(n)
}

func (l *Ledger) deliver(n domain.Notification) {
	l.mu.Lock()
	targets := make([]*subscription, 0, len(l.subs))
	for _, s := range l.subs {
		if s.matches(n) {
			targets = append(targets, s)
		}
	}
	l.mu.Unlock()
	for _, s := range targets {
		s.deliver(n)
	}
}

func (l *Ledger) checkOnline() error {
	if l.offline {
		return fmt.Errorf("memledger offline: %w", domain.ErrConnectionUnavailable)
	}
	return nil
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Gateway implements domain.LedgerGateway for one signing identity.
type Gateway struct {
	ledger *Ledger
	actor  string
}

var _ domain.LedgerGateway = (*Gateway)(nil)

// Actor returns the signing identity.
func (g *Gateway) Actor() string { return g.actor }

// SubmitCreation creates a campaign owned by the actor.
func (g *Gateway) SubmitCreation(ctx context.Context, name string) (*domain.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := g.ledger
	l.mu.Lock()
	if err := l.checkOnline(); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: campaign name is empty", domain.ErrSubmissionRejected)
	}
	n := l.createLocked(name, g.actor)
	l.mu.Unlock()

	l.publish(n)
	return &domain.Confirmation{TxHash: n.ID, CampaignID: n.CampaignID, Notifications: []domain.Notification{n}}, nil
}

// SubmitDonation credits amount to the campaign.
func (g *Gateway) SubmitDonation(ctx context.Context, campaignID string, amount *big.Int) (*domain.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !domain.IsPositive(amount) {
		return nil, fmt.Errorf("donation must be positive: %w", domain.ErrInvalidAmount)
	}
	l := g.ledger
	l.mu.Lock()
	if err := l.checkOnline(); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	c, ok := l.campaigns[normalize(campaignID)]
	if !ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: unknown campaign %s", domain.ErrSubmissionRejected, campaignID)
	}
	c.totalDonations.Add(c.totalDonations, amount)
	c.balance.Add(c.balance, amount)
	n := l.recordLocked(c, domain.Notification{
		Topic:      domain.TopicDonation,
		CampaignID: c.id,
		Actor:      g.actor,
		Amount:     new(big.Int).Set(amount),
	})
	l.mu.Unlock()

	l.publish(n)
	return &domain.Confirmation{TxHash: n.ID, CampaignID: c.id, Notifications: []domain.Notification{n}}, nil
}

// SubmitWithdrawal transfers the full balance to the owner.
func (g *Gateway) SubmitWithdrawal(ctx context.Context, campaignID string) (*domain.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := g.ledger
	l.mu.Lock()
	if err := l.checkOnline(); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	c, ok := l.campaigns[normalize(campaignID)]
	if !ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: unknown campaign %s", domain.ErrSubmissionRejected, campaignID)
	}
	if !strings.EqualFold(c.owner, g.actor) {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: only the owner can withdraw", domain.ErrSubmissionRejected)
	}
	if c.balance.Sign() == 0 {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: no funds to withdraw", domain.ErrSubmissionRejected)
	}
	amount := new(big.Int).Set(c.balance)
	c.balance.SetInt64(0)
	n := l.recordLocked(c, domain.Notification{
		Topic:      domain.TopicWithdrawal,
		CampaignID: c.id,
		Actor:      g.actor,
		Amount:     amount,
	})
	l.mu.Unlock()

	l.publish(n)
	return &domain.Confirmation{TxHash: n.ID, CampaignID: c.id, Notifications: []domain.Notification{n}}, nil
}

// ReadAllCampaigns snapshots every campaign at the current sequence.
func (g *Gateway) ReadAllCampaigns(ctx context.Context) (*domain.BulkRead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := g.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkOnline(); err != nil {
		return nil, err
	}
	out := &domain.BulkRead{Checkpoint: l.seq}
	for _, key := range l.order {
		out.Campaigns = append(out.Campaigns, l.campaigns[key].snapshot())
	}
	return out, nil
}

// ReadTransactionHistory returns records with a sequence up to upTo.
func (g *Gateway) ReadTransactionHistory(ctx context.Context, campaignID string, upTo uint64) ([]domain.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := g.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkOnline(); err != nil {
		return nil, err
	}
	c, ok := l.campaigns[normalize(campaignID)]
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, domain.ErrNotFound)
	}
	var out []domain.TransactionRecord
	for _, e := range c.history {
		if upTo > 0 && e.seq > upTo {
			break
		}
		out = append(out, e.record.Clone())
	}
	return out, nil
}

// Subscribe registers handler for the filtered topics.
func (g *Gateway) Subscribe(ctx context.Context, filter domain.SubscriptionFilter, handler domain.NotificationHandler) (domain.Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("memledger: handler is required")
	}
	l := g.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkOnline(); err != nil {
		return nil, err
	}
	topics := make(map[domain.Topic]struct{}, len(filter.Topics))
	for _, t := range filter.Topics {
		topics[t] = struct{}{}
	}
	id := l.nextSubID
	l.nextSubID++
	s := &subscription{
		ledger:   l,
		id:       id,
		topics:   topics,
		campaign: normalize(filter.CampaignID),
		handler:  handler,
		errs:     make(chan error, 1),
	}
	l.subs[id] = s
	return s, nil
}

// Fail terminates every live subscription with err.
func (l *Ledger) Fail(err error) {
	l.mu.Lock()
	subs := make([]*subscription, 0, len(l.subs))
	for id, s := range l.subs {
		subs = append(subs, s)
		delete(l.subs, id)
	}
	l.mu.Unlock()
	for _, s := range subs {
		s.fail(err)
	}
}

// Subscribers returns the number of live subscriptions.
func (l *Ledger) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

type subscription struct {
	ledger   *Ledger
	id       int
	topics   map[domain.Topic]struct{}
	campaign string
	handler  domain.NotificationHandler

	mu     sync.Mutex
	closed bool
	errs   chan error
}

func (s *subscription) matches(n domain.Notification) bool {
	if _, ok := s.topics[n.Topic]; !ok {
		return false
	}
	return s.campaign == "" || s.campaign == normalize(n.CampaignID)
}

// deliver runs the handler while holding the subscription lock, so
// Unsubscribe returns only after any in-flight delivery finished.
func (s *subscription) deliver(n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	n.Amount = domain.CopyAmount(n.Amount)
	s.handler(n)
}

func (s *subscription) Unsubscribe() {
	s.ledger.mu.Lock()
	delete(s.ledger.subs, s.id)
	s.ledger.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.errs)
}

func (s *subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.errs <- err
	close(s.errs)
}

func (s *subscription) Err() <-chan error {
	return s.errs
}
