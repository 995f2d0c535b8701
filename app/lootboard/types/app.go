package types

import (
	"context"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/lootboard/pkg/chain"
	"github.com/canopy-network/lootboard/pkg/config"
	"github.com/canopy-network/lootboard/pkg/metrics"
	"github.com/canopy-network/lootboard/pkg/poller"
	"github.com/canopy-network/lootboard/pkg/redis"
	"github.com/canopy-network/lootboard/pkg/session"
	"github.com/canopy-network/lootboard/pkg/store"
	"github.com/canopy-network/lootboard/pkg/wallet"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Session is the part of *session.Session the HTTP layer drives.
type Session interface {
	State() store.State
	Subscribe(buffer int) (<-chan store.State, func())
	Ledger() *session.Ledger
	Summary(account string) session.Summary
	Window() int
	Connect(ctx context.Context) error
	Refresh(ctx context.Context) error
	RequestRefresh()
	FlushRefresh() bool
	FetchItems(ctx context.Context) error
	OpenItem(ctx context.Context, itemID string) (wallet.Receipt, error)
	CancelPoll(itemID string) bool
	ActivePolls() []string
	RecentOutcomes() []poller.Outcome
}

type App struct {
	Config *config.Config

	// Chain adapter and signing wallet
	Chain  *chain.Client
	Wallet *wallet.KeyedProvider

	Store   *store.Store
	Session Session

	// Redis client (leaderboard cache, outcome stream), nil when disabled
	RedisClient *redis.Client

	Metrics *metrics.Metrics

	// Worker pool shared by item enumeration
	WorkerPool pond.Pool

	// Cron triggers periodic leaderboard refreshes according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	Logger *zap.Logger

	Server *http.Server
}

// SetupScheduler registers the periodic refresh. Each tick goes through the
// session's debounced trigger.
func (a *App) SetupScheduler(logger cron.Logger) error {
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))
	_, err := a.Cron.AddFunc(a.CronSpec, func() {
		a.Session.RequestRefresh()
	})
	return err
}

// Start runs the application until ctx is done, then shuts it down.
func (a *App) Start(ctx context.Context) {
	if a.Cron != nil {
		a.Cron.Start()
		a.Logger.Info("Cron started", zap.String("cronSpec", a.CronSpec))
	}

	if a.Wallet != nil {
		go a.Wallet.WatchNetwork(ctx, a.Config.Service.NetworkWatch)
	}

	if a.Config.ActionsEnabled() {
		go func() {
			if err := a.Session.Connect(ctx); err != nil {
				a.Logger.Warn("Initial connect failed", zap.Error(err))
			}
		}()
	} else {
		a.Logger.Warn("No contract configured, connect and open actions are disabled")
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}

	if s, ok := a.Session.(*session.Session); ok {
		a.Logger.Info("closing session")
		s.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.WorkerPool != nil {
		a.WorkerPool.StopAndWait()
	}
	if a.Chain != nil {
		a.Chain.Close()
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
