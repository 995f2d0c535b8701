package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, maxLen int64) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := New(rdb, zaptest.NewLogger(t), maxLen)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

type board struct {
	Accounts int      `json:"accounts"`
	Top      []string `json:"top"`
}

func TestJSONCache(t *testing.T) {
	c, mr := newTestClient(t, 0)
	ctx := context.Background()

	var got board
	assert.ErrorIs(t, c.GetJSON(ctx, SnapshotKey, &got), ErrCacheMiss)

	require.NoError(t, c.SetJSON(ctx, SnapshotKey, board{Accounts: 2, Top: []string{"0xaa", "0xbb"}}, time.Minute))
	require.NoError(t, c.GetJSON(ctx, SnapshotKey, &got))
	assert.Equal(t, board{Accounts: 2, Top: []string{"0xaa", "0xbb"}}, got)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.GetJSON(ctx, SnapshotKey, &got), ErrCacheMiss)
}

func TestHealth(t *testing.T) {
	c, mr := newTestClient(t, 0)
	assert.NoError(t, c.Health(context.Background()))
	mr.Close()
	assert.Error(t, c.Health(context.Background()))
}

func TestAppendAndRecentJSON(t *testing.T) {
	c, _ := newTestClient(t, 0)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := c.AppendJSON(ctx, "outcomes", map[string]int{"n": i}, map[string]interface{}{"state": "rewarded"})
		require.NoError(t, err)
	}
	n, err := c.XLen(ctx, "outcomes")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	recent, err := c.RecentJSON(ctx, "outcomes", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	var first map[string]int
	require.NoError(t, json.Unmarshal(recent[0], &first))
	assert.Equal(t, 3, first["n"])
}

func TestAppendTrimsToMaxLen(t *testing.T) {
	c, _ := newTestClient(t, 2)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := c.AppendJSON(ctx, "outcomes", map[string]int{"n": i}, nil)
		require.NoError(t, err)
	}
	n, err := c.XLen(ctx, "outcomes")
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(2))
}

func TestAppendReturnsCause(t *testing.T) {
	c, mr := newTestClient(t, 0)
	ctx := context.Background()

	require.NoError(t, mr.Set("outcomes", "not a stream"))
	_, err := c.AppendJSON(ctx, "outcomes", map[string]int{"n": 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WRONGTYPE")
	assert.Contains(t, err.Error(), "xadd outcomes")

	mr.Close()
	_, err = c.XAdd(ctx, "other", map[string]interface{}{"data": "{}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xadd other: ")
	assert.NotEqual(t, "xadd other: ", err.Error())
}

func TestPublish(t *testing.T) {
	c, _ := newTestClient(t, 0)
	ctx := context.Background()

	sub := c.Subscribe(ctx, StateChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	c.Publish(ctx, StateChannel, "hello")
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Payload)
}

func TestStreamConsumer(t *testing.T) {
	c, _ := newTestClient(t, 0)

	_, err := NewStreamConsumer(nil, StreamConsumerConfig{Stream: "x"})
	assert.Error(t, err)
	_, err = NewStreamConsumer(c, StreamConsumerConfig{})
	assert.Error(t, err)

	sc, err := NewStreamConsumer(c, StreamConsumerConfig{
		Stream: "outcomes",
		LastID: "0",
		Block:  20 * time.Millisecond,
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 4)
	done := make(chan error, 1)
	go func() {
		done <- sc.Run(ctx, func(_ context.Context, msg Message) error {
			got <- msg
			return nil
		})
	}()

	_, err = c.AppendJSON(context.Background(), "outcomes", map[string]string{"item": "7"}, map[string]interface{}{"item": "7"})
	require.NoError(t, err)

	select {
	case msg := <-got:
		assert.JSONEq(t, `{"item":"7"}`, string(msg.GetData()))
		assert.Equal(t, "7", msg.GetString("item"))
	case <-time.After(2 * time.Second):
		t.Fatal("message not consumed")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
