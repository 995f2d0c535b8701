package session

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/canopy-network/lootboard/pkg/poller"
	"github.com/canopy-network/lootboard/pkg/wallet"
	"go.uber.org/zap"
)

const sinkTimeout = 5 * time.Second

// OpenItem submits the open transaction for itemID and, once mined, starts
// polling for its reward in the background. One poll per item may be active.
func (s *Session) OpenItem(ctx context.Context, itemID string) (wallet.Receipt, error) {
	if err := s.cfg.Validate(); err != nil {
		s.message(MsgConfigMissing)
		return wallet.Receipt{}, fmt.Errorf("%w: %w", ErrActionsDisabled, err)
	}
	if id, ok := new(big.Int).SetString(itemID, 10); !ok || id.Sign() < 0 {
		return wallet.Receipt{}, fmt.Errorf("%w: %q", ErrInvalidItem, itemID)
	}
	account := s.store.Snapshot().Blockchain.Account
	if account == "" || s.wallet == nil {
		return wallet.Receipt{}, ErrNotConnected
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	handle := &pollHandle{cancel: cancel, since: time.Now()}
	if _, loaded := s.pollers.LoadOrStore(itemID, handle); loaded {
		cancel()
		return wallet.Receipt{}, fmt.Errorf("%w: %s", ErrAlreadyPolling, itemID)
	}
	release := func() {
		s.pollers.Delete(itemID)
		cancel()
	}

	nft := s.cfg.NFTName
	logger := s.logger.With(zap.String("item", itemID), zap.String("account", account))

	s.message(openingMessage(nft, itemID))
	rcpt, err := s.wallet.OpenItem(ctx, s.cfg.ContractAddress, itemID, s.cfg.GasLimit)
	if err != nil {
		release()
		logger.Warn("open item failed", zap.Error(err))
		s.message(openFailedMessage(nft, itemID))
		return wallet.Receipt{}, fmt.Errorf("open item %s: %w", itemID, err)
	}
	s.message(openedMessage(nft, itemID))
	logger.Info("item opened", zap.String("tx", rcpt.TxHash), zap.Uint64("block", rcpt.BlockNumber))

	if !s.track() {
		release()
		return rcpt, nil
	}
	req := poller.Request{
		Account:   account,
		ItemID:    itemID,
		FromBlock: rcpt.BlockNumber,
		TxHash:    rcpt.TxHash,
	}
	go func() {
		defer s.wg.Done()
		defer release()
		s.poll(runCtx, req)
	}()
	return rcpt, nil
}

func (s *Session) poll(ctx context.Context, req poller.Request) {
	s.metrics.PollStarted()
	out := s.poller.Run(ctx, req, s.message)
	s.metrics.PollFinished(out.State.String())
	s.remember(out)

	if s.outcomes != nil {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		if err := s.outcomes.RecordOutcome(sinkCtx, out); err != nil {
			s.logger.Warn("outcome record failed", zap.String("run", out.RunID), zap.Error(err))
		}
		cancel()
	}

	if out.State != poller.Rewarded {
		return
	}
	if err := s.FetchItems(ctx); err != nil {
		s.logger.Warn("fetch items after reward failed", zap.Error(err))
	}
	s.RequestRefresh()
}

// CancelPoll stops the active poll for itemID, if any.
func (s *Session) CancelPoll(itemID string) bool {
	h, ok := s.pollers.Load(itemID)
	if !ok {
		return false
	}
	h.cancel()
	return true
}
