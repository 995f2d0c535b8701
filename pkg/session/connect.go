package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/canopy-network/lootboard/pkg/rewards"
	"github.com/canopy-network/lootboard/pkg/store"
	"github.com/canopy-network/lootboard/pkg/wallet"
	"go.uber.org/zap"
)

// Connect performs the wallet handshake. On success the contract is bound,
// owned items are fetched and a refresh is requested.
func (s *Session) Connect(ctx context.Context) error {
	s.store.Dispatch(store.Action{Kind: store.ConnectRequest})

	if err := s.cfg.Validate(); err != nil {
		s.connectFailed(MsgConfigMissing, err)
		return fmt.Errorf("%w: %w", ErrActionsDisabled, err)
	}
	if s.wallet == nil {
		s.connectFailed(MsgNoWallet, wallet.ErrNoWallet)
		return wallet.ErrNoWallet
	}

	account, err := s.wallet.Connect(ctx)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrNoWallet):
			s.connectFailed(MsgNoWallet, err)
		case errors.Is(err, wallet.ErrWrongNetwork):
			s.connectFailed(s.cfg.WrongNetworkMessage(), err)
		default:
			s.connectFailed(MsgConnectFailed, err)
		}
		return err
	}

	s.store.Dispatch(store.Action{
		Kind:      store.ConnectSuccess,
		Account:   account,
		NetworkID: s.cfg.Network.ID,
	})
	s.logger.Info("wallet connected",
		zap.String("account", account),
		zap.Uint64("network", s.cfg.Network.ID))

	s.subscribe()
	s.bind(ctx)
	return nil
}

func (s *Session) connectFailed(msg string, err error) {
	s.logger.Warn("connect failed", zap.String("reason", msg), zap.Error(err))
	s.store.Dispatch(store.Action{Kind: store.ConnectFailed, Message: msg})
}

// bind marks the contract bound, loads items and schedules a refresh.
func (s *Session) bind(ctx context.Context) {
	s.store.Dispatch(store.Action{Kind: store.SetContract})
	if err := s.FetchItems(ctx); err != nil {
		s.logger.Warn("fetch items failed", zap.Error(err))
	}
	s.RequestRefresh()
}

func (s *Session) subscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.unsubscribe != nil {
		return
	}
	s.unsubscribe = s.wallet.Subscribe(s.onNotification)
}

// onNotification runs the handling off the notifier's goroutine.
func (s *Session) onNotification(n wallet.Notification) {
	if !s.track() {
		return
	}
	go func() {
		defer s.wg.Done()
		s.handleNotification(s.ctx, n)
	}()
}

func (s *Session) handleNotification(ctx context.Context, n wallet.Notification) {
	logger := s.logger.With(zap.Stringer("kind", n.Kind), zap.String("account", n.Account))
	switch n.Kind {
	case wallet.AccountChanged:
		if rewards.SameAccount(n.Account, s.store.Snapshot().Blockchain.Account) {
			logger.Debug("account unchanged, ignoring notification")
			return
		}
		logger.Info("account changed")
		s.store.Dispatch(store.Action{Kind: store.UpdateAccount, Account: n.Account})
		if s.cfg.ActionsEnabled() {
			s.bind(ctx)
		}
	case wallet.NetworkChanged:
		logger.Info("network changed, reconnecting", zap.Uint64("network", n.NetworkID))
		if err := s.Connect(ctx); err != nil {
			logger.Warn("reconnect failed", zap.Error(err))
		}
	}
}
