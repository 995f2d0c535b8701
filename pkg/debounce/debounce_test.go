package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const wait = 20 * time.Millisecond

func TestTriggerCoalesces(t *testing.T) {
	var calls atomic.Int32
	d := New(wait, func() { calls.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(wait / 5)
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * wait)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Pending())
}

func TestSeparateBurstsFireSeparately(t *testing.T) {
	var calls atomic.Int32
	d := New(wait, func() { calls.Add(1) })

	d.Trigger()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	d.Trigger()
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestCancelDropsPendingCall(t *testing.T) {
	var calls atomic.Int32
	d := New(wait, func() { calls.Add(1) })

	d.Trigger()
	assert.True(t, d.Pending())
	d.Cancel()
	time.Sleep(3 * wait)
	assert.Zero(t, calls.Load())

	d.Trigger()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStopPreventsFurtherCalls(t *testing.T) {
	var calls atomic.Int32
	d := New(wait, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	d.Flush()
	time.Sleep(3 * wait)
	assert.Zero(t, calls.Load())
	assert.False(t, d.Pending())
}

func TestFlushRunsImmediately(t *testing.T) {
	var calls atomic.Int32
	d := New(time.Hour, func() { calls.Add(1) })

	d.Flush()
	assert.Zero(t, calls.Load())

	d.Trigger()
	d.Flush()
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Pending())
}

func TestDefaultWait(t *testing.T) {
	d := New(0, func() {})
	assert.Equal(t, DefaultWait, d.wait)
}
