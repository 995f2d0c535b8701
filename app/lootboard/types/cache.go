package types

import (
	"context"
	"time"

	"github.com/canopy-network/lootboard/pkg/poller"
	"github.com/canopy-network/lootboard/pkg/redis"
	"github.com/canopy-network/lootboard/pkg/rewards"
	"github.com/canopy-network/lootboard/pkg/session"
)

// CachedLeaderboard is the leaderboard as stored in Redis.
type CachedLeaderboard struct {
	Entries  []rewards.Entry `json:"entries"`
	Accounts int             `json:"accounts"`
	Skipped  int             `json:"skipped"`
	At       time.Time       `json:"at"`
}

// RedisSinks persists ledgers and poll outcomes to Redis.
type RedisSinks struct {
	Client *redis.Client
	TTL    time.Duration
	Stream string
	Window int
}

// SaveLedger caches the top of l and announces the update.
func (r *RedisSinks) SaveLedger(ctx context.Context, l *session.Ledger) error {
	top, err := l.Ranking.TopN(r.Window)
	if err != nil {
		return err
	}
	cached := CachedLeaderboard{
		Entries:  top,
		Accounts: l.Ranking.Len(),
		Skipped:  l.Skipped,
		At:       l.At,
	}
	if err := r.Client.SetJSON(ctx, redis.SnapshotKey, cached, r.TTL); err != nil {
		return err
	}
	r.Client.Publish(ctx, redis.StateChannel, l.At.Format(time.RFC3339Nano))
	return nil
}

// RecordOutcome appends out to the outcome stream.
func (r *RedisSinks) RecordOutcome(ctx context.Context, out poller.Outcome) error {
	_, err := r.Client.AppendJSON(ctx, r.Stream, out, map[string]interface{}{
		"item":  out.ItemID,
		"state": out.State.String(),
	})
	return err
}

// CachedLeaderboard reads the last cached leaderboard.
func (a *App) CachedLeaderboard(ctx context.Context) (*CachedLeaderboard, error) {
	if a.RedisClient == nil {
		return nil, redis.ErrCacheMiss
	}
	var out CachedLeaderboard
	if err := a.RedisClient.GetJSON(ctx, redis.SnapshotKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var (
	_ session.LedgerSink  = (*RedisSinks)(nil)
	_ session.OutcomeSink = (*RedisSinks)(nil)
)
