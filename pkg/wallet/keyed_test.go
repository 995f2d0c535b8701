package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testContract = "0x00000000000000000000000000000000000000c0"

type fakeBackend struct {
	bind.ContractBackend
	chainID  atomic.Uint64
	chainErr error
	receipt  *types.Receipt
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return new(big.Int).SetUint64(f.chainID.Load()), nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return f.receipt, nil
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x1}, nil
}

func newKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hex.EncodeToString(crypto.FromECDSA(key))
}

func newBackend(id uint64) *fakeBackend {
	b := &fakeBackend{}
	b.chainID.Store(id)
	return b
}

func TestConnectNoWallet(t *testing.T) {
	p, err := NewKeyedProvider(newBackend(56), "", 56, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = p.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoWallet)
	assert.Empty(t, p.Account())
}

func TestConnectWrongNetwork(t *testing.T) {
	p, err := NewKeyedProvider(newBackend(1), newKey(t), 56, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = p.Connect(context.Background())
	assert.ErrorIs(t, err, ErrWrongNetwork)
}

func TestConnectBackendError(t *testing.T) {
	b := newBackend(56)
	b.chainErr = errors.New("dial tcp: refused")
	p, err := NewKeyedProvider(b, newKey(t), 56, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = p.Connect(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrWrongNetwork)
	assert.NotErrorIs(t, err, ErrNoWallet)
}

func TestConnectSuccess(t *testing.T) {
	hexKey := newKey(t)
	p, err := NewKeyedProvider(newBackend(56), "0x"+hexKey, 56, zaptest.NewLogger(t))
	require.NoError(t, err)
	account, err := p.Connect(context.Background())
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(account))
	assert.Equal(t, account, p.Account())
}

func TestInvalidKey(t *testing.T) {
	_, err := NewKeyedProvider(newBackend(56), "zz", 56, nil)
	assert.Error(t, err)
}

func TestSwitchAccountNotifies(t *testing.T) {
	p, err := NewKeyedProvider(newBackend(56), newKey(t), 56, zaptest.NewLogger(t))
	require.NoError(t, err)

	var got []Notification
	unsubscribe := p.Subscribe(func(n Notification) { got = append(got, n) })

	account, err := p.SwitchAccount(newKey(t))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, AccountChanged, got[0].Kind)
	assert.Equal(t, account, got[0].Account)

	unsubscribe()
	_, err = p.SwitchAccount(newKey(t))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCheckNetworkNotifiesOnChange(t *testing.T) {
	b := newBackend(56)
	p, err := NewKeyedProvider(b, newKey(t), 56, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = p.Connect(context.Background())
	require.NoError(t, err)

	notes := make(chan Notification, 1)
	p.Subscribe(func(n Notification) { notes <- n })

	p.checkNetwork(context.Background())
	assert.Empty(t, notes)

	b.chainID.Store(97)
	p.checkNetwork(context.Background())
	select {
	case n := <-notes:
		assert.Equal(t, NetworkChanged, n.Kind)
		assert.Equal(t, uint64(97), n.NetworkID)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
}

func TestOpenItem(t *testing.T) {
	b := newBackend(56)
	b.receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(321)}
	p, err := NewKeyedProvider(b, newKey(t), 56, zaptest.NewLogger(t))
	require.NoError(t, err)

	var method string
	var gas uint64
	p.transact = func(opts *bind.TransactOpts, _ common.Address, m string, params ...interface{}) (*types.Transaction, error) {
		method = m
		gas = opts.GasLimit
		require.Len(t, params, 1)
		assert.Equal(t, "9", params[0].(*big.Int).String())
		return types.NewTx(&types.LegacyTx{Nonce: 1}), nil
	}

	rcpt, err := p.OpenItem(context.Background(), testContract, "9", 3000000)
	require.NoError(t, err)
	assert.Equal(t, "openLootBox", method)
	assert.Equal(t, uint64(3000000), gas)
	assert.Equal(t, uint64(321), rcpt.BlockNumber)
	assert.NotEmpty(t, rcpt.TxHash)
}

func TestOpenItemFailures(t *testing.T) {
	b := newBackend(56)
	b.receipt = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(1)}
	p, err := NewKeyedProvider(b, newKey(t), 56, zaptest.NewLogger(t))
	require.NoError(t, err)
	p.transact = func(*bind.TransactOpts, common.Address, string, ...interface{}) (*types.Transaction, error) {
		return types.NewTx(&types.LegacyTx{Nonce: 1}), nil
	}

	_, err = p.OpenItem(context.Background(), testContract, "1", 0)
	assert.ErrorContains(t, err, "reverted")

	_, err = p.OpenItem(context.Background(), testContract, "-1", 0)
	assert.Error(t, err)

	p.transact = func(*bind.TransactOpts, common.Address, string, ...interface{}) (*types.Transaction, error) {
		return nil, errors.New("insufficient funds")
	}
	_, err = p.OpenItem(context.Background(), testContract, "1", 0)
	assert.ErrorContains(t, err, "insufficient funds")

	empty, err := NewKeyedProvider(b, "", 56, nil)
	require.NoError(t, err)
	_, err = empty.OpenItem(context.Background(), testContract, "1", 0)
	assert.ErrorIs(t, err, ErrNoWallet)
}
