package reconcile

import (
	"context"
	"math/big"
	"sync"

	"donationledger/internal/domain"
)

// fakeGateway lets tests drive the subscription and bulk read by hand.
type fakeGateway struct {
	mu           sync.Mutex
	actor        string
	handler      domain.NotificationHandler
	bulk         domain.BulkRead
	histories    map[string][]domain.TransactionRecord
	bulkStarted  chan struct{}
	releaseBulk  chan struct{}
	bulkErr      error
	unsubscribed int
	errs         chan error
	submitConf   *domain.Confirmation
	submitErr    error
}

func newFakeGateway(actor string) *fakeGateway {
	return &fakeGateway{
		actor:     actor,
		histories: make(map[string][]domain.TransactionRecord),
		errs:      make(chan error, 1),
	}
}

func (f *fakeGateway) gateBulk() {
	f.bulkStarted = make(chan struct{})
	f.releaseBulk = make(chan struct{})
}

func (f *fakeGateway) push(ns ...domain.Notification) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	for _, n := range ns {
		h(n)
	}
}

func (f *fakeGateway) Actor() string { return f.actor }

// submitResult is what every submission returns. Without a configured
// result submissions are rejected.
func (f *fakeGateway) submitResult() (*domain.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitConf == nil && f.submitErr == nil {
		return nil, domain.ErrSubmissionRejected
	}
	return f.submitConf, f.submitErr
}

func (f *fakeGateway) SubmitCreation(context.Context, string) (*domain.Confirmation, error) {
	return f.submitResult()
}

func (f *fakeGateway) SubmitDonation(context.Context, string, *big.Int) (*domain.Confirmation, error) {
	return f.submitResult()
}

func (f *fakeGateway) SubmitWithdrawal(context.Context, string) (*domain.Confirmation, error) {
	return f.submitResult()
}

func (f *fakeGateway) ReadAllCampaigns(ctx context.Context) (*domain.BulkRead, error) {
	if f.bulkStarted != nil {
		close(f.bulkStarted)
		select {
		case <-f.releaseBulk:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	out := f.bulk
	out.Campaigns = make([]domain.Campaign, len(f.bulk.Campaigns))
	for i, c := range f.bulk.Campaigns {
		out.Campaigns[i] = c.Clone()
	}
	return &out, nil
}

func (f *fakeGateway) ReadTransactionHistory(_ context.Context, id string, _ uint64) ([]domain.TransactionRecord, error) {
	var out []domain.TransactionRecord
	for _, rec := range f.histories[id] {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (f *fakeGateway) Subscribe(_ context.Context, _ domain.SubscriptionFilter, h domain.NotificationHandler) (domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
	return &fakeSubscription{gw: f}, nil
}

type fakeSubscription struct {
	gw   *fakeGateway
	once sync.Once
}

func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.gw.mu.Lock()
		s.gw.unsubscribed++
		s.gw.mu.Unlock()
	})
}

func (s *fakeSubscription) Err() <-chan error { return s.gw.errs }

func donation(id, campaign string, amount int64, ts int64) domain.Notification {
	return domain.Notification{
		ID:         id,
		Topic:      domain.TopicDonation,
		CampaignID: campaign,
		Actor:      "0xdonor",
		Amount:     big.NewInt(amount),
		Timestamp:  ts,
	}
}

func withdrawal(id, campaign string, amount int64, ts int64) domain.Notification {
	n := donation(id, campaign, amount, ts)
	n.Topic = domain.TopicWithdrawal
	n.Actor = "0xowner"
	return n
}

func creation(id, campaign, name string, ts int64) domain.Notification {
	return domain.Notification{
		ID:         id,
		Topic:      domain.TopicCreation,
		CampaignID: campaign,
		Actor:      "0xowner",
		Owner:      "0xowner",
		Name:       name,
		Timestamp:  ts,
	}
}
