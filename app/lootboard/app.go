package lootboard

import (
	"context"
	"errors"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/lootboard/app/lootboard/types"
	"github.com/canopy-network/lootboard/pkg/chain"
	"github.com/canopy-network/lootboard/pkg/config"
	"github.com/canopy-network/lootboard/pkg/logging"
	"github.com/canopy-network/lootboard/pkg/metrics"
	"github.com/canopy-network/lootboard/pkg/poller"
	"github.com/canopy-network/lootboard/pkg/redis"
	"github.com/canopy-network/lootboard/pkg/retry"
	"github.com/canopy-network/lootboard/pkg/rpc"
	"github.com/canopy-network/lootboard/pkg/session"
	"github.com/canopy-network/lootboard/pkg/store"
	"github.com/canopy-network/lootboard/pkg/utils"
	"github.com/canopy-network/lootboard/pkg/wallet"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Unable to load configuration", zap.Error(err))
	}
	svc := cfg.Service
	if !cfg.Loaded {
		logger.Warn("No configuration document found", zap.String("path", utils.Env("LOOTBOARD_CONFIG", "config/config.json")))
	}

	app := &types.App{
		Config:   cfg,
		Store:    store.New(logger.Named("store")),
		Metrics:  metrics.New(),
		CronSpec: svc.CronSpec,
		Logger:   logger,
		// Token-index calls of item enumeration
		WorkerPool: pond.NewPool(utils.EnvInt("WORKER_POOL_SIZE", 16), pond.WithQueueSize(1024)),
	}

	// The chain reader needs a contract; without one the session runs with
	// actions disabled and the leaderboard reported unavailable.
	var reader chain.Reader
	if cfg.ActionsEnabled() {
		err = retry.WithBackoff(ctx, retry.DefaultConfig(), logger, "dial chain", func() error {
			c, err := chain.Dial(ctx, chain.Options{
				Contract: cfg.ContractAddress,
				RPC: rpc.Opts{
					Endpoints: svc.RPCEndpoints,
					Timeout:   svc.RPCTimeout,
					RPS:       svc.RPCRPS,
					Burst:     svc.RPCBurst,
				},
				Timeout:   svc.RPCTimeout,
				ChunkSize: svc.LogChunk,
			}, logger.Named("chain"))
			if errors.Is(err, chain.ErrNoContract) || errors.Is(err, rpc.ErrNoEndpoints) {
				return retry.Permanent(err)
			}
			if err != nil {
				return err
			}
			app.Chain = c
			return nil
		})
		if err != nil {
			logger.Fatal("Unable to connect to chain RPC", zap.Error(err))
		}
		reader = app.Chain

		app.Wallet, err = wallet.NewKeyedProvider(app.Chain.Ethereum(), svc.WalletKey, cfg.Network.ID, logger.Named("wallet"))
		if err != nil {
			logger.Fatal("Unable to initialize wallet", zap.Error(err))
		}
	}

	// Redis caches the leaderboard and records poll outcomes (optional)
	var sinks *types.RedisSinks
	if svc.RedisEnabled {
		err = retry.WithBackoff(ctx, retry.DefaultConfig(), logger, "connect redis", func() error {
			rc, err := redis.NewClient(ctx, logger.Named("redis"), svc.OutcomeMaxLen)
			if err != nil {
				return err
			}
			app.RedisClient = rc
			return nil
		})
		if err != nil {
			logger.Warn("Failed to initialize Redis client - leaderboard cache and outcome stream disabled", zap.Error(err))
			app.RedisClient = nil
		} else {
			sinks = &types.RedisSinks{
				Client: app.RedisClient,
				TTL:    svc.SnapshotTTL,
				Stream: svc.OutcomeStream,
				Window: svc.LeaderboardSize,
			}
		}
	} else {
		logger.Info("Redis disabled - leaderboard cache and outcome stream will not be available")
	}

	opts := session.Options{
		Config:  cfg,
		Chain:   reader,
		Store:   app.Store,
		Metrics: app.Metrics,
		Pool:    app.WorkerPool,
		Poll: poller.Options{
			Interval: svc.PollInterval,
			Timeout:  svc.PollTimeout,
			Symbol:   cfg.Symbol,
		},
		Debounce: svc.Debounce,
		Window:   svc.LeaderboardSize,
		Logger:   logger.Named("session"),
	}
	if app.Wallet != nil {
		opts.Wallet = app.Wallet
	}
	if sinks != nil {
		opts.Ledgers = sinks
		opts.Outcomes = sinks
	}
	app.Session = session.New(opts)

	if err := app.SetupScheduler(cronLogger{logger.Named("cron")}); err != nil {
		logger.Fatal("Unable to schedule leaderboard refresh", zap.String("cronSpec", svc.CronSpec), zap.Error(err))
	}

	return app
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
