package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/canopy-network/lootboard/pkg/rewards"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// RewardEvents returns RewardClaimed logs matching f, oldest first.
func (c *Client) RewardEvents(ctx context.Context, f Filter) ([]rewards.Event, error) {
	topics, err := c.topics(f)
	if err != nil {
		return nil, err
	}

	to := f.ToBlock
	if c.chunkSize > 0 && to == nil {
		head, err := c.Head(ctx)
		if err != nil {
			return nil, err
		}
		to = &head
	}

	if c.chunkSize == 0 || to == nil {
		return c.query(ctx, topics, f.FromBlock, to)
	}

	var out []rewards.Event
	for start := f.FromBlock; start <= *to; start += c.chunkSize {
		end := start + c.chunkSize - 1
		if end > *to {
			end = *to
		}
		batch, err := c.query(ctx, topics, start, &end)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if end == *to {
			break
		}
	}
	return out, nil
}

func (c *Client) topics(f Filter) ([][]common.Hash, error) {
	topics := [][]common.Hash{{c.eventID}, nil, nil}
	if f.Account != "" {
		if !common.IsHexAddress(f.Account) {
			return nil, fmt.Errorf("invalid account %q", f.Account)
		}
		topics[1] = []common.Hash{common.BytesToHash(common.HexToAddress(f.Account).Bytes())}
	}
	if f.ItemID != "" {
		id, ok := new(big.Int).SetString(f.ItemID, 10)
		if !ok || id.Sign() < 0 {
			return nil, fmt.Errorf("invalid item id %q", f.ItemID)
		}
		topics[2] = []common.Hash{common.BigToHash(id)}
	}
	// trailing wildcards are dropped
	for len(topics) > 1 && topics[len(topics)-1] == nil {
		topics = topics[:len(topics)-1]
	}
	return topics, nil
}

func (c *Client) query(ctx context.Context, topics [][]common.Hash, from uint64, to *uint64) ([]rewards.Event, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		Addresses: []common.Address{c.contract},
		Topics:    topics,
	}
	if to != nil {
		q.ToBlock = new(big.Int).SetUint64(*to)
	}
	logs, err := c.logs.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("filter logs: %w", err)
	}
	out := make([]rewards.Event, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		out = append(out, c.decode(l))
	}
	return out, nil
}

// decode converts a log into an Event. Malformed logs yield events with an
// empty Account or Amount so the aggregator can count and skip them.
func (c *Client) decode(l types.Log) rewards.Event {
	ev := rewards.Event{
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash.Hex(),
	}
	if len(l.Topics) != 3 {
		c.logger.Warn("RewardClaimed log with unexpected topics",
			zap.String("tx", ev.TxHash),
			zap.Int("topics", len(l.Topics)),
		)
		return ev
	}
	ev.Account = common.BytesToAddress(l.Topics[1].Bytes()).Hex()
	ev.ItemID = new(big.Int).SetBytes(l.Topics[2].Bytes()).String()

	vals, err := c.abi.Unpack(rewards.EventName, l.Data)
	if err != nil || len(vals) != 1 {
		c.logger.Warn("RewardClaimed log with undecodable data",
			zap.String("tx", ev.TxHash),
			zap.Error(err),
		)
		return ev
	}
	if amount, ok := vals[0].(*big.Int); ok {
		ev.Amount = amount.String()
	}
	return ev
}
