package ethledger

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"donationledger/internal/domain"
)

var (
	factoryAddr  = common.HexToAddress("0x00000000000000000000000000000000000fac70")
	campaignAddr = common.HexToAddress("0x0000000000000000000000000000000000c0ffee")
	ownerAddr    = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	donorAddr    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func testCodec(t *testing.T) *codec {
	t.Helper()
	c, err := newCodec(factoryAddr)
	if err != nil {
		t.Fatalf("newCodec: %v", err)
	}
	return c
}

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func donationLog(t *testing.T, c *codec, amount int64, index uint) types.Log {
	t.Helper()
	data, err := c.campaign.Events[eventDonation].Inputs.NonIndexed().Pack(big.NewInt(amount), big.NewInt(1700000000))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return types.Log{
		Address:     campaignAddr,
		Topics:      []common.Hash{c.topicIDs[domain.TopicDonation], addressTopic(donorAddr)},
		Data:        data,
		BlockNumber: 42,
		TxHash:      common.HexToHash("0xabc"),
		Index:       index,
	}
}

func creationLog(t *testing.T, c *codec, emitter common.Address) types.Log {
	t.Helper()
	data, err := c.factoryA.Events[eventCreated].Inputs.NonIndexed().Pack("Sample Campaign", big.NewInt(1700000000))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return types.Log{
		Address: emitter,
		Topics: []common.Hash{
			c.topicIDs[domain.TopicCreation],
			addressTopic(campaignAddr),
			addressTopic(ownerAddr),
		},
		Data:        data,
		BlockNumber: 40,
		TxHash:      common.HexToHash("0xdef"),
	}
}

func TestDecodeDonation(t *testing.T) {
	c := testCodec(t)
	n, ok, err := c.decode(donationLog(t, c, 1500, 3))
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if n.Topic != domain.TopicDonation {
		t.Fatalf("topic = %s", n.Topic)
	}
	if n.CampaignID != campaignAddr.Hex() || n.Actor != donorAddr.Hex() {
		t.Fatalf("campaign/actor = %s/%s", n.CampaignID, n.Actor)
	}
	if n.Amount.Int64() != 1500 || n.Timestamp != 1700000000 || n.Seq != 42 {
		t.Fatalf("unexpected notification %+v", n)
	}
	if want := common.HexToHash("0xabc").Hex() + ":3"; n.ID != want {
		t.Fatalf("ID = %s, want %s", n.ID, want)
	}
}

func TestDecodeWithdrawal(t *testing.T) {
	c := testCodec(t)
	data, err := c.campaign.Events[eventWithdrawn].Inputs.NonIndexed().Pack(big.NewInt(9), big.NewInt(5))
	if err != nil {
		t.Fatal(err)
	}
	n, ok, err := c.decode(types.Log{
		Address: campaignAddr,
		Topics:  []common.Hash{c.topicIDs[domain.TopicWithdrawal], addressTopic(ownerAddr)},
		Data:    data,
	})
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if n.Topic != domain.TopicWithdrawal || n.Actor != ownerAddr.Hex() || n.Amount.Int64() != 9 {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestDecodeCreationOnlyFromFactory(t *testing.T) {
	c := testCodec(t)
	n, ok, err := c.decode(creationLog(t, c, factoryAddr))
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if n.Name != "Sample Campaign" || n.Owner != ownerAddr.Hex() || n.CampaignID != campaignAddr.Hex() {
		t.Fatalf("unexpected notification %+v", n)
	}

	if _, ok, _ := c.decode(creationLog(t, c, donorAddr)); ok {
		t.Fatalf("creation from a non-factory contract was accepted")
	}
}

func TestDecodeSkipsRemovedAndForeignLogs(t *testing.T) {
	c := testCodec(t)
	removed := donationLog(t, c, 1, 0)
	removed.Removed = true
	if _, ok, _ := c.decode(removed); ok {
		t.Fatalf("removed log decoded")
	}
	foreign := types.Log{Address: campaignAddr, Topics: []common.Hash{common.HexToHash("0x01")}}
	if _, ok, err := c.decode(foreign); ok || err != nil {
		t.Fatalf("foreign log: ok=%v err=%v", ok, err)
	}
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	c := testCodec(t)
	lg := donationLog(t, c, 1, 0)
	lg.Data = lg.Data[:10]
	if _, ok, err := c.decode(lg); ok || err == nil {
		t.Fatalf("truncated log: ok=%v err=%v", ok, err)
	}
}

func TestDecodeRejectsOverflowingTimestamp(t *testing.T) {
	c := testCodec(t)
	lg := donationLog(t, c, 1, 0)
	huge := new(big.Int).Lsh(big.NewInt(1), 64)
	data, err := c.campaign.Events[eventDonation].Inputs.NonIndexed().Pack(big.NewInt(1), huge)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	lg.Data = data
	if _, ok, err := c.decode(lg); ok || err == nil {
		t.Fatalf("timestamp 2^64: ok=%v err=%v", ok, err)
	}
}

func TestTopicsSelection(t *testing.T) {
	c := testCodec(t)
	if got := len(c.topics(nil)); got != 3 {
		t.Fatalf("all topics = %d, want 3", got)
	}
	got := c.topics([]domain.Topic{domain.TopicDonation})
	if len(got) != 1 || got[0] != c.topicIDs[domain.TopicDonation] {
		t.Fatalf("donation topics = %v", got)
	}
}

type fakeLogSub struct {
	err          chan error
	unsubscribed bool
}

func (f *fakeLogSub) Unsubscribe()      { f.unsubscribed = true }
func (f *fakeLogSub) Err() <-chan error { return f.err }

func newTestSubscription(t *testing.T, campaign string, handler domain.NotificationHandler) (*subscription, *fakeLogSub) {
	fake := &fakeLogSub{err: make(chan error, 1)}
	s := &subscription{
		sub:      fake,
		logs:     make(chan types.Log, 8),
		codec:    testCodec(t),
		logger:   zerolog.Nop(),
		handler:  handler,
		campaign: campaign,
		errs:     make(chan error, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.loop()
	return s, fake
}

func TestSubscriptionDeliversInOrder(t *testing.T) {
	got := make(chan domain.Notification, 4)
	s, fake := newTestSubscription(t, "", func(n domain.Notification) { got <- n })
	for i := uint(0); i < 3; i++ {
		s.logs <- donationLog(t, s.codec, int64(i+1), i)
	}
	for i := 1; i <= 3; i++ {
		select {
		case n := <-got:
			if n.Amount.Int64() != int64(i) {
				t.Fatalf("delivery %d amount = %s", i, n.Amount)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("delivery %d missing", i)
		}
	}
	s.Unsubscribe()
	s.Unsubscribe()
	if !fake.unsubscribed {
		t.Fatalf("node subscription not released")
	}
	if _, ok := <-s.Err(); ok {
		t.Fatalf("Err channel not closed after Unsubscribe")
	}
}

func TestSubscriptionFiltersCampaign(t *testing.T) {
	got := make(chan domain.Notification, 4)
	s, _ := newTestSubscription(t, donorAddr.Hex(), func(n domain.Notification) { got <- n })
	defer s.Unsubscribe()
	s.logs <- donationLog(t, s.codec, 1, 0)
	select {
	case n := <-got:
		t.Fatalf("delivered notification for another campaign: %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionReportsNodeError(t *testing.T) {
	s, fake := newTestSubscription(t, "", func(domain.Notification) {})
	fake.err <- errors.New("connection reset")
	select {
	case err := <-s.Err():
		if !errors.Is(err, domain.ErrConnectionUnavailable) {
			t.Fatalf("error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported")
	}
	s.Unsubscribe()
}

func TestSubmitErrorClassification(t *testing.T) {
	if err := submitError("donate", errors.New("dial tcp: connection refused")); !errors.Is(err, domain.ErrConnectionUnavailable) {
		t.Fatalf("network error mapped to %v", err)
	}
	if err := submitError("donate", rpcError{}); !errors.Is(err, domain.ErrSubmissionRejected) {
		t.Fatalf("rpc error mapped to %v", err)
	}
}

func TestSentConfirmationCarriesOnlyHash(t *testing.T) {
	if sent(nil) != nil {
		t.Fatal("sent(nil) should be nil")
	}
	tx := types.NewTx(&types.LegacyTx{Nonce: 7, GasPrice: big.NewInt(1), Gas: 21000, Value: big.NewInt(5)})
	conf := sent(tx)
	if conf == nil || conf.TxHash != tx.Hash().Hex() {
		t.Fatalf("sent = %+v, want hash %s", conf, tx.Hash().Hex())
	}
	if conf.CampaignID != "" || len(conf.Notifications) != 0 {
		t.Fatalf("sent carries more than the hash: %+v", conf)
	}
}

type rpcError struct{}

func (rpcError) Error() string  { return "execution reverted: Only owner" }
func (rpcError) ErrorCode() int { return 3 }
