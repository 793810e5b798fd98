package ledger

import "donationledger/internal/domain"

// cursor remembers which notification ids were applied, per topic.
type cursor struct {
	applied map[domain.Topic]map[string]struct{}
}

func newCursor() *cursor {
	return &cursor{applied: make(map[domain.Topic]map[string]struct{}, len(domain.AllTopics))}
}

func (c *cursor) seen(topic domain.Topic, id string) bool {
	_, ok := c.applied[topic][id]
	return ok
}

func (c *cursor) mark(topic domain.Topic, id string) {
	ids, ok := c.applied[topic]
	if !ok {
		ids = make(map[string]struct{})
		c.applied[topic] = ids
	}
	ids[id] = struct{}{}
}

func (c *cursor) len() int {
	n := 0
	for _, ids := range c.applied {
		n += len(ids)
	}
	return n
}

func topicForKind(kind domain.TransactionKind) domain.Topic {
	switch kind {
	case domain.TransactionDonation:
		return domain.TopicDonation
	case domain.TransactionWithdrawal:
		return domain.TopicWithdrawal
	default:
		return domain.TopicCreation
	}
}
