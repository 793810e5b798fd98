package ethledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"donationledger/internal/domain"
)

const factoryABI = `[
	{
		"inputs": [{"name": "name", "type": "string"}],
		"name": "createCampaign",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getCampaigns",
		"outputs": [{"name": "", "type": "address[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "campaign", "type": "address"},
			{"indexed": true, "name": "owner", "type": "address"},
			{"indexed": false, "name": "name", "type": "string"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "CampaignCreated",
		"type": "event"
	}
]`

const campaignABI = `[
	{"inputs": [], "name": "name", "outputs": [{"name": "", "type": "string"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "owner", "outputs": [{"name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "totalDonations", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "getBalance", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "donate", "outputs": [], "stateMutability": "payable", "type": "function"},
	{"inputs": [], "name": "withdraw", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "donor", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "DonationReceived",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "owner", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"},
			{"indexed": false, "name": "timestamp", "type": "uint256"}
		],
		"name": "FundsWithdrawn",
		"type": "event"
	}
]`

const (
	eventCreated   = "CampaignCreated"
	eventDonation  = "DonationReceived"
	eventWithdrawn = "FundsWithdrawn"
)

// codec turns contract logs into notifications.
type codec struct {
	factory  common.Address
	factoryA abi.ABI
	campaign abi.ABI
	topicIDs map[domain.Topic]common.Hash
}

func newCodec(factory common.Address) (*codec, error) {
	fa, err := abi.JSON(strings.NewReader(factoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse factory ABI: %w", err)
	}
	ca, err := abi.JSON(strings.NewReader(campaignABI))
	if err != nil {
		return nil, fmt.Errorf("parse campaign ABI: %w", err)
	}
	return &codec{
		factory:  factory,
		factoryA: fa,
		campaign: ca,
		topicIDs: map[domain.Topic]common.Hash{
			domain.TopicCreation:   fa.Events[eventCreated].ID,
			domain.TopicDonation:   ca.Events[eventDonation].ID,
			domain.TopicWithdrawal: ca.Events[eventWithdrawn].ID,
		},
	}, nil
}

// topics returns the event signatures for the requested topics, every topic
// when none are given.
func (c *codec) topics(want []domain.Topic) []common.Hash {
	if len(want) == 0 {
		want = domain.AllTopics
	}
	out := make([]common.Hash, 0, len(want))
	for _, t := range want {
		if id, ok := c.topicIDs[t]; ok {
			out = append(out, id)
		}
	}
	return out
}

// decode reports ok == false for logs that are not campaign events, were
// removed by a reorg, or claim a creation from a contract other than the
// factory.
func (c *codec) decode(lg types.Log) (domain.Notification, bool, error) {
	if lg.Removed || len(lg.Topics) == 0 {
		return domain.Notification{}, false, nil
	}
	n := domain.Notification{
		ID:  fmt.Sprintf("%s:%d", lg.TxHash.Hex(), lg.Index),
		Seq: lg.BlockNumber,
	}

	switch lg.Topics[0] {
	case c.topicIDs[domain.TopicCreation]:
		if lg.Address != c.factory || len(lg.Topics) < 3 {
			return domain.Notification{}, false, nil
		}
		values, err := c.factoryA.Unpack(eventCreated, lg.Data)
		if err != nil {
			return domain.Notification{}, false, fmt.Errorf("unpack %s: %w", eventCreated, err)
		}
		name, _ := values[0].(string)
		ts, err := timestampOf(values[1])
		if err != nil {
			return domain.Notification{}, false, err
		}
		owner := common.BytesToAddress(lg.Topics[2].Bytes()).Hex()
		n.Topic = domain.TopicCreation
		n.CampaignID = common.BytesToAddress(lg.Topics[1].Bytes()).Hex()
		n.Actor = owner
		n.Owner = owner
		n.Name = name
		n.Timestamp = ts
		return n, true, nil

	case c.topicIDs[domain.TopicDonation], c.topicIDs[domain.TopicWithdrawal]:
		if len(lg.Topics) < 2 {
			return domain.Notification{}, false, nil
		}
		event, topic := eventDonation, domain.TopicDonation
		if lg.Topics[0] == c.topicIDs[domain.TopicWithdrawal] {
			event, topic = eventWithdrawn, domain.TopicWithdrawal
		}
		values, err := c.campaign.Unpack(event, lg.Data)
		if err != nil {
			return domain.Notification{}, false, fmt.Errorf("unpack %s: %w", event, err)
		}
		amount, ok := values[0].(*big.Int)
		if !ok {
			return domain.Notification{}, false, fmt.Errorf("%s amount has type %T", event, values[0])
		}
		ts, err := timestampOf(values[1])
		if err != nil {
			return domain.Notification{}, false, err
		}
		n.Topic = topic
		n.CampaignID = lg.Address.Hex()
		n.Actor = common.BytesToAddress(lg.Topics[1].Bytes()).Hex()
		n.Amount = amount
		n.Timestamp = ts
		return n, true, nil
	}
	return domain.Notification{}, false, nil
}

func timestampOf(v interface{}) (int64, error) {
	ts, ok := v.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("timestamp has type %T", v)
	}
	if !ts.IsInt64() {
		return 0, fmt.Errorf("timestamp %s overflows int64", ts)
	}
	return ts.Int64(), nil
}
