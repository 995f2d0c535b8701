package wallet

import (
	"context"
	"errors"
)

var (
	// ErrNoWallet is returned when no signing account is configured.
	ErrNoWallet = errors.New("no wallet configured")
	// ErrWrongNetwork is returned when the backend chain id differs from the configured network.
	ErrWrongNetwork = errors.New("wrong network")
)

// Receipt is the mined result of an open-item transaction.
type Receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// NotificationKind distinguishes provider notifications.
type NotificationKind int

const (
	AccountChanged NotificationKind = iota
	NetworkChanged
)

func (k NotificationKind) String() string {
	switch k {
	case AccountChanged:
		return "accountChanged"
	case NetworkChanged:
		return "networkChanged"
	default:
		return "unknown"
	}
}

// Notification is delivered to subscribers when the active account or the
// network changes.
type Notification struct {
	Kind      NotificationKind
	Account   string
	NetworkID uint64
}

// Provider is the wallet capability: it holds the active account, reports
// the network and submits open-item transactions.
type Provider interface {
	// Connect verifies the wallet is usable on the expected network and
	// returns the active account.
	Connect(ctx context.Context) (string, error)
	Account() string
	NetworkID(ctx context.Context) (uint64, error)
	// OpenItem submits openLootBox(itemID) to contract and waits for it to be mined.
	OpenItem(ctx context.Context, contract, itemID string, gasLimit uint64) (Receipt, error)
	// Subscribe registers fn for notifications and returns a func that
	// removes it.
	Subscribe(fn func(Notification)) (unsubscribe func())
}
