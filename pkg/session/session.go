// Package session drives one wallet session: connecting, listing owned
// items, opening them and keeping the reward leaderboard fresh.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/lootboard/pkg/chain"
	"github.com/canopy-network/lootboard/pkg/config"
	"github.com/canopy-network/lootboard/pkg/debounce"
	"github.com/canopy-network/lootboard/pkg/metrics"
	"github.com/canopy-network/lootboard/pkg/poller"
	"github.com/canopy-network/lootboard/pkg/rewards"
	"github.com/canopy-network/lootboard/pkg/store"
	"github.com/canopy-network/lootboard/pkg/wallet"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

const (
	recentOutcomes = 50
	refreshTimeout = 2 * time.Minute
)

// Ledger is the result of the last successful refresh.
type Ledger struct {
	Ranking *rewards.Ranking
	Totals  rewards.Totals
	Skipped int
	At      time.Time
}

// LedgerSink receives every freshly computed ledger, e.g. a cache.
type LedgerSink interface {
	SaveLedger(ctx context.Context, l *Ledger) error
}

// OutcomeSink receives every finished poll outcome.
type OutcomeSink interface {
	RecordOutcome(ctx context.Context, out poller.Outcome) error
}

// Options wire a Session.
type Options struct {
	Config   *config.Config
	Chain    chain.Reader
	Wallet   wallet.Provider
	Store    *store.Store
	Metrics  *metrics.Metrics
	Ledgers  LedgerSink
	Outcomes OutcomeSink
	// Pool runs token-index calls. A small pool is created when nil.
	Pool     pond.Pool
	Poll     poller.Options
	Debounce time.Duration
	Window   int
	Logger   *zap.Logger
}

type pollHandle struct {
	cancel context.CancelFunc
	since  time.Time
}

// Session is safe for concurrent use.
type Session struct {
	cfg      *config.Config
	chain    chain.Reader
	wallet   wallet.Provider
	store    *store.Store
	metrics  *metrics.Metrics
	ledgers  LedgerSink
	outcomes OutcomeSink
	pool     pond.Pool
	ownsPool bool
	poller   *poller.Poller
	window   int
	logger   *zap.Logger

	debouncer *debounce.Debouncer
	refreshMu sync.Mutex
	ledger    atomic.Pointer[Ledger]
	pollers   *xsync.Map[string, *pollHandle]

	recentMu sync.Mutex
	recent   []poller.Outcome

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	closed      bool
	unsubscribe func()
	wg          sync.WaitGroup
}

// New builds a Session. Close releases it.
func New(o Options) *Session {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := o.Window
	if window <= 0 {
		window = rewards.DefaultWindow
	}
	wait := o.Debounce
	if wait <= 0 {
		wait = debounce.DefaultWait
	}
	if o.Poll.Symbol == "" && o.Config != nil {
		o.Poll.Symbol = o.Config.Symbol
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:      o.Config,
		chain:    o.Chain,
		wallet:   o.Wallet,
		store:    o.Store,
		metrics:  o.Metrics,
		ledgers:  o.Ledgers,
		outcomes: o.Outcomes,
		pool:     o.Pool,
		poller:   poller.New(o.Chain, o.Poll, logger.Named("poller")),
		window:   window,
		logger:   logger,
		pollers:  xsync.NewMap[string, *pollHandle](),
		ctx:      ctx,
		cancel:   cancel,
	}
	if s.pool == nil {
		s.pool = pond.NewPool(8, pond.WithQueueSize(256))
		s.ownsPool = true
	}
	s.debouncer = debounce.New(wait, s.debouncedRefresh)
	return s
}

// track registers a background goroutine. It returns false once the
// session is closed.
func (s *Session) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// State returns the current store snapshot.
func (s *Session) State() store.State {
	return s.store.Snapshot()
}

// Ledger returns the last successfully computed ledger, or nil.
func (s *Session) Ledger() *Ledger {
	return s.ledger.Load()
}

// Window is the published leaderboard size.
func (s *Session) Window() int {
	return s.window
}

// ActivePolls lists the items currently being polled.
func (s *Session) ActivePolls() []string {
	out := make([]string, 0, s.pollers.Size())
	s.pollers.Range(func(id string, _ *pollHandle) bool {
		out = append(out, id)
		return true
	})
	return out
}

// RecentOutcomes returns finished poll outcomes, newest first.
func (s *Session) RecentOutcomes() []poller.Outcome {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	out := make([]poller.Outcome, len(s.recent))
	for i, o := range s.recent {
		out[len(s.recent)-1-i] = o
	}
	return out
}

func (s *Session) remember(out poller.Outcome) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	s.recent = append(s.recent, out)
	if len(s.recent) > recentOutcomes {
		s.recent = s.recent[len(s.recent)-recentOutcomes:]
	}
}

func (s *Session) message(msg string) {
	s.store.Dispatch(store.Action{Kind: store.SetMessage, Message: msg})
}

// Close stops the debouncer, cancels active polls, drops the wallet
// subscription and waits for background work.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	s.debouncer.Stop()
	if unsubscribe != nil {
		unsubscribe()
	}
	s.pollers.Range(func(_ string, h *pollHandle) bool {
		h.cancel()
		return true
	})
	s.cancel()
	s.wg.Wait()
	if s.ownsPool {
		s.pool.StopAndWait()
	}
}

// Subscribe streams every new state. See store.Store.Subscribe.
func (s *Session) Subscribe(buffer int) (<-chan store.State, func()) {
	return s.store.Subscribe(buffer)
}
