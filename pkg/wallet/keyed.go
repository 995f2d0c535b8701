package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canopy-network/lootboard/pkg/chain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Backend is what KeyedProvider needs from an Ethereum client.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

type transactFunc func(opts *bind.TransactOpts, contract common.Address, method string, params ...interface{}) (*types.Transaction, error)

// KeyedProvider signs with a local private key through go-ethereum's
// keyed transactor.
type KeyedProvider struct {
	backend   Backend
	networkID uint64
	abi       abi.ABI
	logger    *zap.Logger

	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	account common.Address

	lastNetwork atomic.Uint64
	subs        *xsync.Map[uint64, func(Notification)]
	nextSub     atomic.Uint64

	transact transactFunc
}

// NewKeyedProvider builds a provider for hexKey on the network networkID.
// An empty key yields a provider whose Connect returns ErrNoWallet.
func NewKeyedProvider(backend Backend, hexKey string, networkID uint64, logger *zap.Logger) (*KeyedProvider, error) {
	parsed, err := chain.ParseABI()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &KeyedProvider{
		backend:   backend,
		networkID: networkID,
		abi:       parsed,
		logger:    logger,
		subs:      xsync.NewMap[uint64, func(Notification)](),
	}
	p.transact = p.boundTransact
	if hexKey != "" {
		key, err := parseKey(hexKey)
		if err != nil {
			return nil, err
		}
		p.key = key
		p.account = crypto.PubkeyToAddress(key.PublicKey)
	}
	return p, nil
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Connect implements Provider.
func (p *KeyedProvider) Connect(ctx context.Context) (string, error) {
	account := p.Account()
	if account == "" {
		return "", ErrNoWallet
	}
	id, err := p.NetworkID(ctx)
	if err != nil {
		return "", err
	}
	p.lastNetwork.Store(id)
	if id != p.networkID {
		return "", fmt.Errorf("%w: connected to %d, expected %d", ErrWrongNetwork, id, p.networkID)
	}
	return account, nil
}

// Account implements Provider.
func (p *KeyedProvider) Account() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.key == nil {
		return ""
	}
	return p.account.Hex()
}

// NetworkID implements Provider.
func (p *KeyedProvider) NetworkID(ctx context.Context) (uint64, error) {
	id, err := p.backend.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain id: %w", err)
	}
	return id.Uint64(), nil
}

// SwitchAccount replaces the signing key and notifies subscribers.
func (p *KeyedProvider) SwitchAccount(hexKey string) (string, error) {
	key, err := parseKey(hexKey)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	p.key = key
	p.account = crypto.PubkeyToAddress(key.PublicKey)
	account := p.account.Hex()
	p.mu.Unlock()

	p.logger.Info("wallet account changed", zap.String("account", account))
	p.notify(Notification{Kind: AccountChanged, Account: account, NetworkID: p.lastNetwork.Load()})
	return account, nil
}

// OpenItem implements Provider.
func (p *KeyedProvider) OpenItem(ctx context.Context, contract, itemID string, gasLimit uint64) (Receipt, error) {
	p.mu.RLock()
	key := p.key
	p.mu.RUnlock()
	if key == nil {
		return Receipt{}, ErrNoWallet
	}
	if !common.IsHexAddress(contract) {
		return Receipt{}, chain.ErrNoContract
	}
	id, ok := new(big.Int).SetString(itemID, 10)
	if !ok || id.Sign() < 0 {
		return Receipt{}, fmt.Errorf("invalid item id %q", itemID)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(p.networkID))
	if err != nil {
		return Receipt{}, fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = gasLimit

	tx, err := p.transact(opts, common.HexToAddress(contract), chain.OpenMethod, id)
	if err != nil {
		return Receipt{}, fmt.Errorf("submit %s: %w", chain.OpenMethod, err)
	}
	p.logger.Debug("open item submitted", zap.String("item", itemID), zap.String("tx", tx.Hash().Hex()))

	rcpt, err := bind.WaitMined(ctx, p.backend, tx)
	if err != nil {
		return Receipt{}, fmt.Errorf("wait mined: %w", err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return Receipt{}, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return Receipt{TxHash: tx.Hash().Hex(), BlockNumber: rcpt.BlockNumber.Uint64()}, nil
}

func (p *KeyedProvider) boundTransact(opts *bind.TransactOpts, contract common.Address, method string, params ...interface{}) (*types.Transaction, error) {
	bc := bind.NewBoundContract(contract, p.abi, p.backend, p.backend, p.backend)
	return bc.Transact(opts, method, params...)
}

// Subscribe implements Provider.
func (p *KeyedProvider) Subscribe(fn func(Notification)) func() {
	id := p.nextSub.Add(1)
	p.subs.Store(id, fn)
	return func() { p.subs.Delete(id) }
}

func (p *KeyedProvider) notify(n Notification) {
	p.subs.Range(func(_ uint64, fn func(Notification)) bool {
		fn(n)
		return true
	})
}

// WatchNetwork polls the backend chain id every interval and notifies
// subscribers when it changes. It returns when ctx is done.
func (p *KeyedProvider) WatchNetwork(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkNetwork(ctx)
		}
	}
}

func (p *KeyedProvider) checkNetwork(ctx context.Context) {
	id, err := p.NetworkID(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Warn("network check failed", zap.Error(err))
		}
		return
	}
	prev := p.lastNetwork.Swap(id)
	if prev == 0 || prev == id {
		return
	}
	p.logger.Info("wallet network changed", zap.Uint64("from", prev), zap.Uint64("to", id))
	p.notify(Notification{Kind: NetworkChanged, Account: p.Account(), NetworkID: id})
}

var _ Provider = (*KeyedProvider)(nil)
