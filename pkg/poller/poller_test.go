package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/canopy-network/lootboard/pkg/chain"
	"github.com/canopy-network/lootboard/pkg/rewards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sourceFunc func(ctx context.Context, f chain.Filter) ([]rewards.Event, error)

func (fn sourceFunc) RewardEvents(ctx context.Context, f chain.Filter) ([]rewards.Event, error) {
	return fn(ctx, f)
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) emit(m string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func fastOptions() Options {
	return Options{Interval: 5 * time.Millisecond, Timeout: 40 * time.Millisecond, Symbol: "MIKUL"}
}

func TestRunTimesOutWithSingleMessage(t *testing.T) {
	var calls atomic.Int32
	src := sourceFunc(func(context.Context, chain.Filter) ([]rewards.Event, error) {
		calls.Add(1)
		return nil, nil
	})
	rec := &recorder{}
	p := New(src, fastOptions(), zaptest.NewLogger(t))

	out := p.Run(context.Background(), Request{Account: "0xaa", ItemID: "7", FromBlock: 10}, rec.emit)

	assert.Equal(t, TimedOut, out.State)
	assert.Equal(t, []string{MsgTimedOut}, rec.all())
	assert.GreaterOrEqual(t, out.Attempts, 2)
	assert.Equal(t, int32(out.Attempts), calls.Load())

	// the ticker is gone: no further queries after Run returns
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(out.Attempts), calls.Load())
	assert.Len(t, rec.all(), 1)
}

func TestRunRewarded(t *testing.T) {
	var calls atomic.Int32
	var seen chain.Filter
	src := sourceFunc(func(_ context.Context, f chain.Filter) ([]rewards.Event, error) {
		seen = f
		if calls.Add(1) < 3 {
			return nil, nil
		}
		return []rewards.Event{{Account: f.Account, ItemID: f.ItemID, Amount: "1500000000000000000000"}}, nil
	})
	rec := &recorder{}
	opts := fastOptions()
	opts.Timeout = time.Second
	p := New(src, opts, zaptest.NewLogger(t))

	out := p.Run(context.Background(), Request{Account: "0xaa", ItemID: "7", FromBlock: 10, TxHash: "0x1"}, rec.emit)

	require.Equal(t, Rewarded, out.State)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, "1,500.00", out.Amount)
	assert.Equal(t, []string{"YOU HAVE RECEIVED 1,500.00 $MIKUL FROM PACK #7."}, rec.all())
	assert.Equal(t, chain.Filter{Account: "0xaa", ItemID: "7", FromBlock: 10}, seen)
	require.NotNil(t, out.Event)
	assert.NotEmpty(t, out.RunID)
	assert.False(t, out.FinishedAt.Before(out.StartedAt))
}

func TestRunQueryFailed(t *testing.T) {
	src := sourceFunc(func(context.Context, chain.Filter) ([]rewards.Event, error) {
		return nil, errors.New("rpc unavailable")
	})
	rec := &recorder{}
	p := New(src, fastOptions(), zaptest.NewLogger(t))

	out := p.Run(context.Background(), Request{ItemID: "1"}, rec.emit)

	assert.Equal(t, QueryFailed, out.State)
	assert.Equal(t, 1, out.Attempts)
	assert.ErrorContains(t, out.Err, "rpc unavailable")
	assert.Equal(t, []string{MsgQueryFailed}, rec.all())
}

func TestRunCancelled(t *testing.T) {
	src := sourceFunc(func(context.Context, chain.Filter) ([]rewards.Event, error) {
		return nil, nil
	})
	rec := &recorder{}
	opts := fastOptions()
	opts.Timeout = time.Minute
	p := New(src, opts, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := p.Run(ctx, Request{ItemID: "1"}, rec.emit)

	assert.Equal(t, Cancelled, out.State)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Empty(t, rec.all())
}

func TestRunTimesOutDuringSlowQuery(t *testing.T) {
	var calls atomic.Int32
	src := sourceFunc(func(ctx context.Context, _ chain.Filter) ([]rewards.Event, error) {
		calls.Add(1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return nil, nil
		}
	})
	rec := &recorder{}
	p := New(src, Options{Interval: 10 * time.Millisecond, Timeout: 100 * time.Millisecond}, zaptest.NewLogger(t))

	start := time.Now()
	out := p.Run(context.Background(), Request{ItemID: "3"}, rec.emit)

	assert.Equal(t, TimedOut, out.State)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{MsgTimedOut}, rec.all())
}

func TestRunCancelledDuringSlowQuery(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, _ chain.Filter) ([]rewards.Event, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	rec := &recorder{}
	p := New(src, Options{Interval: 5 * time.Millisecond, Timeout: time.Minute}, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	out := p.Run(ctx, Request{ItemID: "3"}, rec.emit)

	assert.Equal(t, Cancelled, out.State)
	assert.Empty(t, rec.all())
}

func TestRunFirstQueryAfterInterval(t *testing.T) {
	start := time.Now()
	var first time.Duration
	src := sourceFunc(func(context.Context, chain.Filter) ([]rewards.Event, error) {
		first = time.Since(start)
		return []rewards.Event{{Amount: "1"}}, nil
	})
	p := New(src, Options{Interval: 20 * time.Millisecond, Timeout: time.Second}, zaptest.NewLogger(t))

	out := p.Run(context.Background(), Request{ItemID: "1"}, nil)
	assert.Equal(t, Rewarded, out.State)
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
}

func TestDefaults(t *testing.T) {
	p := New(nil, Options{}, nil)
	assert.Equal(t, DefaultInterval, p.interval)
	assert.Equal(t, DefaultTimeout, p.timeout)
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, Opening.Terminal())
	assert.False(t, Polling.Terminal())
	for _, s := range []State{Rewarded, TimedOut, QueryFailed, Cancelled} {
		assert.True(t, s.Terminal(), s.String())
	}
}

func TestStateTextRoundTrip(t *testing.T) {
	b, err := TimedOut.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "timed_out", string(b))

	var s State
	require.NoError(t, s.UnmarshalText(b))
	assert.Equal(t, TimedOut, s)
	assert.Error(t, s.UnmarshalText([]byte("exploded")))
}
