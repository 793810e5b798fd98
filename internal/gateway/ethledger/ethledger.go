// Package ethledger implements the ledger gateway on an Ethereum JSON-RPC
// node running the DonationFactory and DonationCampaign contracts.
package ethledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"donationledger/internal/domain"
)

// Config holds what the gateway needs to reach the contracts.
type Config struct {
	RPCURL         string
	FactoryAddress string
	// PrivateKey is a hex secp256k1 key. Without it the gateway is read-only.
	PrivateKey  string
	DeployBlock uint64
}

// Gateway implements domain.LedgerGateway over go-ethereum.
type Gateway struct {
	client      *ethclient.Client
	logger      zerolog.Logger
	codec       *codec
	factory     *bind.BoundContract
	chainID     *big.Int
	auth        *bind.TransactOpts
	deployBlock uint64

	// submitMu serialises nonce assignment across concurrent submissions.
	submitMu sync.Mutex
}

var _ domain.LedgerGateway = (*Gateway)(nil)

// Dial connects to the node and resolves the chain id. Use a ws:// or ipc
// endpoint; plain HTTP endpoints cannot push log subscriptions.
func Dial(ctx context.Context, cfg Config, logger zerolog.Logger) (*Gateway, error) {
	if !common.IsHexAddress(cfg.FactoryAddress) {
		return nil, fmt.Errorf("invalid factory address %q", cfg.FactoryAddress)
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %v", cfg.RPCURL, domain.ErrConnectionUnavailable, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain id: %w: %v", domain.ErrConnectionUnavailable, err)
	}

	factoryAddr := common.HexToAddress(cfg.FactoryAddress)
	c, err := newCodec(factoryAddr)
	if err != nil {
		client.Close()
		return nil, err
	}
	g := &Gateway{
		client:      client,
		logger:      logger.With().Str("component", "ethledger").Logger(),
		codec:       c,
		factory:     bind.NewBoundContract(factoryAddr, c.factoryA, client, client, client),
		chainID:     chainID,
		deployBlock: cfg.DeployBlock,
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("invalid signer key: %w", err)
		}
		auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("signer: %w", err)
		}
		g.auth = auth
	}

	g.logger.Info().
		Str("chain_id", chainID.String()).
		Str("factory", factoryAddr.Hex()).
		Str("actor", g.Actor()).
		Msg("ethledger: connected")
	return g, nil
}

// Close releases the RPC connection.
func (g *Gateway) Close() {
	g.client.Close()
}

// Actor returns the signer address, or "" for a read-only gateway.
func (g *Gateway) Actor() string {
	if g.auth == nil {
		return ""
	}
	return g.auth.From.Hex()
}

// SubmitCreation calls createCampaign and waits for the receipt.
func (g *Gateway) SubmitCreation(ctx context.Context, name string) (*domain.Confirmation, error) {
	tx, receipt, err := g.transact(ctx, g.factory, nil, "createCampaign", name)
	if err != nil {
		return sent(tx), err
	}
	conf := g.confirmation(tx, receipt)
	for _, n := range conf.Notifications {
		if n.Topic == domain.TopicCreation {
			conf.CampaignID = n.CampaignID
		}
	}
	if conf.CampaignID == "" {
		return nil, fmt.Errorf("createCampaign %s emitted no %s event: %w", tx.Hash().Hex(), eventCreated, domain.ErrSubmissionRejected)
	}
	return conf, nil
}

// SubmitDonation sends amount wei to the campaign's donate function.
func (g *Gateway) SubmitDonation(ctx context.Context, campaignID string, amount *big.Int) (*domain.Confirmation, error) {
	if !domain.IsPositive(amount) {
		return nil, fmt.Errorf("donation must be positive: %w", domain.ErrInvalidAmount)
	}
	contract, err := g.campaignContract(campaignID)
	if err != nil {
		return nil, err
	}
	tx, receipt, err := g.transact(ctx, contract, amount, "donate")
	if err != nil {
		return sent(tx), err
	}
	conf := g.confirmation(tx, receipt)
	conf.CampaignID = campaignID
	return conf, nil
}

// SubmitWithdrawal calls withdraw, which drains the whole balance to the owner.
func (g *Gateway) SubmitWithdrawal(ctx context.Context, campaignID string) (*domain.Confirmation, error) {
	contract, err := g.campaignContract(campaignID)
	if err != nil {
		return nil, err
	}
	tx, receipt, err := g.transact(ctx, contract, nil, "withdraw")
	if err != nil {
		return sent(tx), err
	}
	conf := g.confirmation(tx, receipt)
	conf.CampaignID = campaignID
	return conf, nil
}

// ReadAllCampaigns reads every campaign pinned to the current head block.
func (g *Gateway) ReadAllCampaigns(ctx context.Context) (*domain.BulkRead, error) {
	head, err := g.client.BlockNumber(ctx)
	if err != nil {
		return nil, readError("block number", err)
	}
	opts := &bind.CallOpts{Context: ctx, BlockNumber: new(big.Int).SetUint64(head)}

	raw, err := call(opts, g.factory, "getCampaigns")
	if err != nil {
		return nil, err
	}
	addrs := *abi.ConvertType(raw, new([]common.Address)).(*[]common.Address)

	out := &domain.BulkRead{Checkpoint: head, Campaigns: make([]domain.Campaign, 0, len(addrs))}
	for _, addr := range addrs {
		c, err := g.readCampaign(opts, addr)
		if err != nil {
			return nil, err
		}
		out.Campaigns = append(out.Campaigns, c)
	}
	g.logger.Debug().Uint64("block", head).Int("campaigns", len(out.Campaigns)).Msg("ethledger: bulk read")
	return out, nil
}

func (g *Gateway) readCampaign(opts *bind.CallOpts, addr common.Address) (domain.Campaign, error) {
	contract := bind.NewBoundContract(addr, g.codec.campaign, g.client, g.client, g.client)
	c := domain.Campaign{ID: addr.Hex()}

	name, err := call(opts, contract, "name")
	if err != nil {
		return c, err
	}
	owner, err := call(opts, contract, "owner")
	if err != nil {
		return c, err
	}
	total, err := call(opts, contract, "totalDonations")
	if err != nil {
		return c, err
	}
	balance, err := call(opts, contract, "getBalance")
	if err != nil {
		return c, err
	}

	c.Name, _ = name.(string)
	if a, ok := owner.(common.Address); ok {
		c.Owner = a.Hex()
	}
	c.TotalDonations, _ = total.(*big.Int)
	c.Balance, _ = balance.(*big.Int)
	return c.Clone(), nil
}

// ReadTransactionHistory rebuilds the campaign history from its event logs
// between the deploy block and upTo (the head when upTo is zero). Records
// carry the same ids as pushed notifications.
func (g *Gateway) ReadTransactionHistory(ctx context.Context, campaignID string, upTo uint64) ([]domain.TransactionRecord, error) {
	if !common.IsHexAddress(campaignID) {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, domain.ErrNotFound)
	}
	campaign := common.HexToAddress(campaignID)
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(g.deployBlock),
		Addresses: []common.Address{g.codec.factory, campaign},
		Topics:    [][]common.Hash{g.codec.topics(nil)},
	}
	if upTo > 0 {
		q.ToBlock = new(big.Int).SetUint64(upTo)
	}
	logs, err := g.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, readError("filter logs", err)
	}

	var out []domain.TransactionRecord
	for _, lg := range logs {
		n, ok, err := g.codec.decode(lg)
		if err != nil {
			g.logger.Warn().Err(err).Str("tx_hash", lg.TxHash.Hex()).Msg("ethledger: undecodable log skipped")
			continue
		}
		if !ok || !strings.EqualFold(n.CampaignID, campaign.Hex()) {
			continue
		}
		out = append(out, n.Record())
	}
	return out, nil
}

// Subscribe streams decoded logs to handler in node order. The handler runs
// on the subscription goroutine and must not call Unsubscribe.
func (g *Gateway) Subscribe(ctx context.Context, filter domain.SubscriptionFilter, handler domain.NotificationHandler) (domain.Subscription, error) {
	if handler == nil {
		return nil, errors.New("ethledger: handler is required")
	}
	q := ethereum.FilterQuery{Topics: [][]common.Hash{g.codec.topics(filter.Topics)}}
	if filter.CampaignID != "" {
		q.Addresses = []common.Address{g.codec.factory, common.HexToAddress(filter.CampaignID)}
	}
	logs := make(chan types.Log, 128)
	sub, err := g.client.SubscribeFilterLogs(ctx, q, logs)
	if err != nil {
		return nil, readError("subscribe logs", err)
	}

	s := &subscription{
		sub:      sub,
		logs:     logs,
		codec:    g.codec,
		logger:   g.logger,
		handler:  handler,
		campaign: filter.CampaignID,
		errs:     make(chan error, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

func (g *Gateway) campaignContract(campaignID string) (*bind.BoundContract, error) {
	if !common.IsHexAddress(campaignID) {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, domain.ErrNotFound)
	}
	return bind.NewBoundContract(common.HexToAddress(campaignID), g.codec.campaign, g.client, g.client, g.client), nil
}

func (g *Gateway) transact(ctx context.Context, contract *bind.BoundContract, value *big.Int, method string, args ...interface{}) (*types.Transaction, *types.Receipt, error) {
	if g.auth == nil {
		return nil, nil, fmt.Errorf("%s: no signer configured: %w", method, domain.ErrSubmissionRejected)
	}
	opts := *g.auth
	opts.Context = ctx
	opts.Value = value

	g.submitMu.Lock()
	tx, err := contract.Transact(&opts, method, args...)
	g.submitMu.Unlock()
	if err != nil {
		return nil, nil, submitError(method, err)
	}
	g.logger.Info().Str("method", method).Str("tx_hash", tx.Hash().Hex()).Msg("ethledger: transaction sent")

	receipt, err := bind.WaitMined(ctx, g.client, tx)
	if err != nil {
		g.logger.Warn().Err(err).Str("method", method).Str("tx_hash", tx.Hash().Hex()).Msg("ethledger: receipt wait aborted")
		return tx, nil, submitError(method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, nil, fmt.Errorf("%s %s reverted: %w", method, tx.Hash().Hex(), domain.ErrSubmissionRejected)
	}
	return tx, receipt, nil
}

// sent identifies a transaction that left the signer but was never seen
// mined. It is nil when nothing was sent.
func sent(tx *types.Transaction) *domain.Confirmation {
	if tx == nil {
		return nil
	}
	return &domain.Confirmation{TxHash: tx.Hash().Hex()}
}

func (g *Gateway) confirmation(tx *types.Transaction, receipt *types.Receipt) *domain.Confirmation {
	conf := &domain.Confirmation{TxHash: tx.Hash().Hex()}
	for _, lg := range receipt.Logs {
		if lg == nil {
			continue
		}
		n, ok, err := g.codec.decode(*lg)
		if err != nil {
			g.logger.Warn().Err(err).Str("tx_hash", conf.TxHash).Msg("ethledger: undecodable receipt log")
			continue
		}
		if ok {
			conf.Notifications = append(conf.Notifications, n)
		}
	}
	return conf
}

func call(opts *bind.CallOpts, contract *bind.BoundContract, method string) (interface{}, error) {
	var out []interface{}
	if err := contract.Call(opts, &out, method); err != nil {
		return nil, readError(method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return out[0], nil
}

// submitError maps node errors: a JSON-RPC error means the node refused the
// transaction, anything else means it could not be reached.
func submitError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrSubmissionRejected, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrConnectionUnavailable, err)
}

func readError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrConnectionUnavailable, err)
}
