package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/lootboard/pkg/store"
	"go.uber.org/zap"
)

// maxItems bounds the enumeration of a single account.
const maxItems = 10000

// FetchItems lists the items owned by the connected account.
func (s *Session) FetchItems(ctx context.Context) error {
	st := s.store.Snapshot()
	account := st.Blockchain.Account
	if account == "" || !st.Blockchain.ContractBound {
		return ErrNotConnected
	}

	s.store.Dispatch(store.Action{Kind: store.CheckDataRequest})

	ids, err := s.enumerate(ctx, account)
	if err != nil {
		s.store.Dispatch(store.Action{Kind: store.CheckDataFailed, Message: MsgItemsFailed})
		return err
	}
	s.store.Dispatch(store.Action{Kind: store.SetItems, Items: ids})
	s.logger.Debug("items loaded", zap.String("account", account), zap.Int("count", len(ids)))
	return nil
}

func (s *Session) enumerate(ctx context.Context, account string) ([]string, error) {
	n, err := s.chain.BalanceOf(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", account, err)
	}
	if n > maxItems {
		return nil, fmt.Errorf("balance of %s: %d items exceeds limit %d", account, n, maxItems)
	}

	ids := make([]string, n)
	var (
		errMu    sync.Mutex
		firstErr error
	)

	group := s.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i := uint64(0); i < n; i++ {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			id, err := s.chain.TokenOfOwnerByIndex(groupCtx, account, i)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("token of owner by index %d: %w", i, err)
				}
				errMu.Unlock()
				return
			}
			ids[i] = id.String()
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		s.logger.Warn("item enumeration group error", zap.Error(err))
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
