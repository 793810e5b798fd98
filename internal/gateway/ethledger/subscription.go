package ethledger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"donationledger/internal/domain"
)

type subscription struct {
	sub      ethereum.Subscription
	logs     chan types.Log
	codec    *codec
	logger   zerolog.Logger
	handler  domain.NotificationHandler
	campaign string

	errs chan error
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *subscription) loop() {
	defer close(s.done)
	defer close(s.errs)
	for {
		select {
		case <-s.quit:
			return
		case err, ok := <-s.sub.Err():
			if ok && err != nil {
				s.errs <- fmt.Errorf("log subscription: %w: %v", domain.ErrConnectionUnavailable, err)
			}
			return
		case lg := <-s.logs:
			s.dispatch(lg)
		}
	}
}

func (s *subscription) dispatch(lg types.Log) {
	n, ok, err := s.codec.decode(lg)
	if err != nil {
		s.logger.Warn().Err(err).Str("tx_hash", lg.TxHash.Hex()).Msg("ethledger: undecodable log skipped")
		return
	}
	if !ok {
		return
	}
	if s.campaign != "" && !strings.EqualFold(s.campaign, n.CampaignID) {
		return
	}
	s.handler(n)
}

// Unsubscribe stops delivery and waits for an in-flight handler to return.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.quit)
		s.sub.Unsubscribe()
		<-s.done
	})
}

func (s *subscription) Err() <-chan error {
	return s.errs
}
