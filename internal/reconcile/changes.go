package reconcile

import (
	"sync"
	"time"

	"donationledger/internal/domain"
)

// ChangeType names a state change published to subscribers.
type ChangeType string

const (
	ChangeSynced             ChangeType = "synced"
	ChangeCampaignRegistered ChangeType = "campaign_registered"
	ChangeDonationApplied    ChangeType = "donation_applied"
	ChangeWithdrawalApplied  ChangeType = "withdrawal_applied"
	ChangeActionUpdated      ChangeType = "action_updated"
	ChangeDisconnected       ChangeType = "disconnected"
)

// Change tells readers that the projection moved. Payload fields are copies
// and may be nil depending on Type.
type Change struct {
	Type       ChangeType
	CampaignID string
	Campaign   *domain.Campaign
	Record     *domain.TransactionRecord
	Action     *domain.PendingAction
	At         time.Time
}

const defaultSubscriberBuffer = 64

type subscriber struct {
	ch      chan Change
	once    sync.Once
	dropped int
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Subscribe registers for state-change events. A subscriber that falls behind
// loses events rather than stalling reconciliation; it should re-read
// snapshots when it sees a gap. The returned func unregisters and closes the
// channel.
func (e *Engine) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	s := &subscriber{ch: make(chan Change, buffer)}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		s.close()
		return s.ch, func() {}
	}
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = s
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		delete(e.subscribers, id)
		e.mu.Unlock()
		s.close()
	}
	return s.ch, cancel
}

// emitLocked fans a change out without blocking. Callers hold e.mu.
func (e *Engine) emitLocked(c Change) {
	if c.At.IsZero() {
		c.At = e.now()
	}
	for id, s := range e.subscribers {
		select {
		case s.ch <- c:
		default:
			s.dropped++
			e.logger.Debug().Int("subscriber", id).Int("dropped", s.dropped).Msg("reconcile: slow subscriber dropped change")
		}
	}
}
