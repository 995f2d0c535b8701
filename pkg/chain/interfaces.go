package chain

import (
	"context"
	"math/big"

	"github.com/canopy-network/lootboard/pkg/rewards"
)

// Filter scopes a RewardClaimed query. Empty Account/ItemID match all;
// a nil ToBlock means the latest block.
type Filter struct {
	Account   string
	ItemID    string
	FromBlock uint64
	ToBlock   *uint64
}

// EventSource is the chain-query capability: past RewardClaimed events.
type EventSource interface {
	RewardEvents(ctx context.Context, f Filter) ([]rewards.Event, error)
}

// ItemSource enumerates the items an account owns.
type ItemSource interface {
	BalanceOf(ctx context.Context, owner string) (uint64, error)
	TokenOfOwnerByIndex(ctx context.Context, owner string, index uint64) (*big.Int, error)
}

// Reader is everything the session needs to read from the chain.
type Reader interface {
	EventSource
	ItemSource
	Head(ctx context.Context) (uint64, error)
}
