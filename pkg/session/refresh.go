package session

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/lootboard/pkg/chain"
	"github.com/canopy-network/lootboard/pkg/rewards"
	"github.com/canopy-network/lootboard/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RequestRefresh schedules a Refresh after the debounce window. Bursts of
// requests collapse into one refresh.
func (s *Session) RequestRefresh() {
	s.debouncer.Trigger()
}

// FlushRefresh runs a refresh now on the caller's goroutine, absorbing any
// pending debounced request. It reports whether a request was pending.
func (s *Session) FlushRefresh() bool {
	pending := s.debouncer.Pending()
	if !pending {
		s.debouncer.Trigger()
	}
	s.debouncer.Flush()
	return pending
}

func (s *Session) debouncedRefresh() {
	if !s.track() {
		return
	}
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, refreshTimeout)
	defer cancel()
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh failed", zap.Error(err))
	}
}

// Refresh loads the full RewardClaimed history, aggregates and ranks it.
// On a chain-read error the rewards status becomes unavailable and the
// previous ledger is kept but not republished as fresh.
func (s *Session) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.chain == nil {
		s.store.Dispatch(store.Action{Kind: store.RewardsUnavailable, Message: MsgConfigMissing})
		return ErrActionsDisabled
	}

	start := time.Now()
	s.store.Dispatch(store.Action{Kind: store.RewardsRequest})

	events, err := s.chain.RewardEvents(ctx, chain.Filter{})
	if err != nil {
		s.metrics.Refresh(time.Since(start), false, 0, 0)
		s.store.Dispatch(store.Action{Kind: store.RewardsUnavailable, Message: "Leaderboard unavailable. Check later."})
		return fmt.Errorf("load reward events: %w", err)
	}

	agg := rewards.Aggregate(events, s.logger)
	ledger := &Ledger{
		Ranking: rewards.Rank(agg.Totals),
		Totals:  agg.Totals,
		Skipped: agg.Skipped,
		At:      time.Now().UTC(),
	}
	s.ledger.Store(ledger)

	top, _ := ledger.Ranking.TopN(s.window)
	snap := &store.RewardsSnapshot{
		Leaderboard: top,
		Accounts:    ledger.Ranking.Len(),
		Skipped:     agg.Skipped,
		At:          ledger.At,
	}
	if account := s.store.Snapshot().Blockchain.Account; account != "" {
		sum := s.Summary(account)
		snap.AccountTotal = sum.Total
		snap.AccountRank = sum.Rank
		snap.Placement = sum.Placement.String()
	}
	s.store.Dispatch(store.Action{Kind: store.RewardsLoaded, Snapshot: snap})
	s.metrics.Refresh(time.Since(start), true, ledger.Ranking.Len(), agg.Skipped)

	s.logger.Info("leaderboard refreshed",
		zap.Int("events", len(events)),
		zap.Int("accounts", ledger.Ranking.Len()),
		zap.Int("skipped", agg.Skipped),
		zap.Duration("took", time.Since(start)))

	if s.ledgers != nil {
		if err := s.ledgers.SaveLedger(ctx, ledger); err != nil {
			s.logger.Warn("ledger cache write failed", zap.Error(err))
		}
	}
	return nil
}

// Summary is one account's standing in the last ledger.
type Summary struct {
	Account   string            `json:"account"`
	Total     string            `json:"total"`
	Rank      int               `json:"rank,omitempty"`
	Placement rewards.Placement `json:"-"`
	Window    int               `json:"window"`
}

// Summary reports account's total, rank and placement. Without a ledger
// the account is reported as not ranked with a zero total.
func (s *Session) Summary(account string) Summary {
	out := Summary{
		Account:   rewards.NormalizeAccount(account),
		Total:     rewards.FormatAmount(decimal.Zero),
		Placement: rewards.NotRanked,
		Window:    s.window,
	}
	l := s.ledger.Load()
	if l == nil {
		return out
	}
	if total, ok := l.Totals.Get(account); ok {
		out.Total = rewards.FormatAmount(total)
	}
	if rank, ok := l.Ranking.RankOf(account); ok {
		out.Rank = rank
	}
	out.Placement = l.Ranking.Placement(account, s.window)
	return out
}
