package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/lootboard/pkg/rewards"
	"github.com/canopy-network/lootboard/pkg/rpc"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// ErrNoContract is returned when the contract address is missing or invalid.
var ErrNoContract = errors.New("contract address not specified")

// headReader is the subset of ethclient used for the chain head.
type headReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Client reads the loot-box contract through an Ethereum JSON-RPC backend.
type Client struct {
	contract  common.Address
	abi       abi.ABI
	eventID   common.Hash
	logs      ethereum.LogFilterer
	caller    ethereum.ContractCaller
	heads     headReader
	chunkSize uint64
	logger    *zap.Logger

	eth *ethclient.Client
}

// Options configure Dial.
type Options struct {
	Contract string
	RPC      rpc.Opts
	Timeout  time.Duration
	// ChunkSize splits log queries into block ranges of this size. Zero
	// queries the whole range at once.
	ChunkSize uint64
}

// Dial connects to the configured endpoints through a failover Transport.
func Dial(ctx context.Context, o Options, logger *zap.Logger) (*Client, error) {
	transport, err := rpc.NewTransport(o.RPC)
	if err != nil {
		return nil, err
	}
	raw, err := gethrpc.DialOptions(ctx, transport.Primary(), gethrpc.WithHTTPClient(transport.Client(o.Timeout)))
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	eth := ethclient.NewClient(raw)
	c, err := New(o.Contract, eth, eth, eth, o.ChunkSize, logger)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.eth = eth
	return c, nil
}

// New builds a Client over explicit backends.
func New(contract string, logs ethereum.LogFilterer, caller ethereum.ContractCaller, heads headReader, chunkSize uint64, logger *zap.Logger) (*Client, error) {
	if !common.IsHexAddress(contract) {
		return nil, ErrNoContract
	}
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		contract:  common.HexToAddress(contract),
		abi:       parsed,
		eventID:   parsed.Events[rewards.EventName].ID,
		logs:      logs,
		caller:    caller,
		heads:     heads,
		chunkSize: chunkSize,
		logger:    logger,
	}, nil
}

// Ethereum exposes the dialed ethclient, nil for clients built with New.
func (c *Client) Ethereum() *ethclient.Client { return c.eth }

// Contract returns the contract address.
func (c *Client) Contract() common.Address { return c.contract }

// Close releases the underlying connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// Head returns the latest block number.
func (c *Client) Head(ctx context.Context) (uint64, error) {
	n, err := c.heads.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return n, nil
}
