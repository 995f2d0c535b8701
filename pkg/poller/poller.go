// Package poller waits for the RewardClaimed event produced by an opened item.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/lootboard/pkg/chain"
	"github.com/canopy-network/lootboard/pkg/rewards"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 60 * time.Second

	MsgTimedOut    = "Reward not received. Check later."
	MsgQueryFailed = "Error fetching reward. Check later."
)

// State is a poll run's position in its lifecycle.
type State int

const (
	Opening State = iota
	Polling
	Rewarded
	TimedOut
	QueryFailed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Polling:
		return "polling"
	case Rewarded:
		return "rewarded"
	case TimedOut:
		return "timed_out"
	case QueryFailed:
		return "query_failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s >= Rewarded
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for st := Opening; st <= Cancelled; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown poll state %q", b)
}

// Request identifies the reward to wait for.
type Request struct {
	Account   string
	ItemID    string
	FromBlock uint64
	TxHash    string
}

// Outcome is the terminal result of a run.
type Outcome struct {
	RunID      string         `json:"runId"`
	Account    string         `json:"account"`
	ItemID     string         `json:"itemId"`
	TxHash     string         `json:"txHash,omitempty"`
	State      State          `json:"state"`
	Message    string         `json:"message,omitempty"`
	Event      *rewards.Event `json:"event,omitempty"`
	Amount     string         `json:"amount,omitempty"`
	Attempts   int            `json:"attempts"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Err        error          `json:"-"`
}

// Options configure a Poller. Zero values take the defaults.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Symbol   string
}

// Poller queries the chain on a fixed interval until the reward appears,
// the timeout elapses or a query fails.
type Poller struct {
	source   chain.EventSource
	interval time.Duration
	timeout  time.Duration
	symbol   string
	logger   *zap.Logger
}

// New returns a Poller reading from source.
func New(source chain.EventSource, o Options, logger *zap.Logger) *Poller {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		source:   source,
		interval: o.Interval,
		timeout:  o.Timeout,
		symbol:   o.Symbol,
		logger:   logger,
	}
}

// RewardMessage is the user-facing line for a received reward.
func RewardMessage(amount, symbol, itemID string) string {
	return fmt.Sprintf("YOU HAVE RECEIVED %s $%s FROM PACK #%s.", amount, symbol, itemID)
}

// Run blocks until req reaches a terminal state. emit is called exactly
// once with the terminal message, except for Cancelled runs which end
// silently. The first query happens one interval after the call.
func (p *Poller) Run(ctx context.Context, req Request, emit func(string)) Outcome {
	out := Outcome{
		RunID:     uuid.NewString(),
		Account:   req.Account,
		ItemID:    req.ItemID,
		TxHash:    req.TxHash,
		State:     Polling,
		StartedAt: time.Now(),
	}
	logger := p.logger.With(
		zap.String("run", out.RunID),
		zap.String("item", req.ItemID),
		zap.String("account", req.Account),
	)
	logger.Debug("polling for reward",
		zap.Uint64("from_block", req.FromBlock),
		zap.Duration("interval", p.interval),
		zap.Duration("timeout", p.timeout),
	)

	// runCtx bounds queries in flight as well as the wait between them
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	filter := chain.Filter{Account: req.Account, ItemID: req.ItemID, FromBlock: req.FromBlock}
	for !out.State.Terminal() {
		select {
		case <-runCtx.Done():
			p.expire(ctx, &out)
		case <-ticker.C:
			p.step(ctx, runCtx, filter, &out, logger)
		}
	}
	out.FinishedAt = time.Now()

	logger.Info("poll finished",
		zap.Stringer("state", out.State),
		zap.Int("attempts", out.Attempts),
		zap.Duration("elapsed", out.FinishedAt.Sub(out.StartedAt)),
	)
	if out.State != Cancelled && emit != nil {
		emit(out.Message)
	}
	return out
}

// expire ends a run whose context is done: Cancelled when the caller
// cancelled, TimedOut when the run deadline passed.
func (p *Poller) expire(parent context.Context, out *Outcome) {
	if err := parent.Err(); err != nil {
		out.State = Cancelled
		out.Err = err
		return
	}
	out.State = TimedOut
	out.Message = MsgTimedOut
	out.Err = context.DeadlineExceeded
}

func (p *Poller) step(parent, runCtx context.Context, filter chain.Filter, out *Outcome, logger *zap.Logger) {
	out.Attempts++
	events, err := p.source.RewardEvents(runCtx, filter)
	if err != nil {
		if runCtx.Err() != nil {
			p.expire(parent, out)
			return
		}
		logger.Warn("reward query failed", zap.Error(err))
		out.State = QueryFailed
		out.Message = MsgQueryFailed
		out.Err = err
		return
	}
	if len(events) > 0 {
		ev := events[0]
		out.Event = &ev
		out.State = Rewarded
		amount, err := rewards.DisplayAmount(ev.Amount)
		if err != nil {
			logger.Warn("reward event with malformed amount", zap.String("amount", ev.Amount), zap.Error(err))
			out.Amount = ev.Amount
		} else {
			out.Amount = rewards.FormatAmount(amount)
		}
		out.Message = RewardMessage(out.Amount, p.symbol, out.ItemID)
		return
	}
	if time.Since(out.StartedAt) >= p.timeout {
		out.State = TimedOut
		out.Message = MsgTimedOut
	}
}
