// Package store holds the session state behind a single writer goroutine.
package store

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

type envelope struct {
	action Action
	ack    chan State
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan State
	closed bool
}

func (s *subscriber) send(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- st:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Store applies actions one at a time and publishes each resulting state.
type Store struct {
	logger  *zap.Logger
	actions chan envelope
	current atomic.Pointer[State]

	subs    *xsync.Map[uint64, *subscriber]
	nextSub atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New starts a Store at Initial().
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		logger:  logger,
		actions: make(chan envelope),
		subs:    xsync.NewMap[uint64, *subscriber](),
		done:    make(chan struct{}),
	}
	initial := Initial()
	s.current.Store(&initial)

	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Store) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case env := <-s.actions:
			prev := *s.current.Load()
			next := Reduce(prev, env.action)
			next.Version = prev.Version + 1
			s.current.Store(&next)
			s.logger.Debug("state updated",
				zap.String("action", string(env.action.Kind)),
				zap.Uint64("version", next.Version),
			)
			s.publish(next)
			env.ack <- next
		}
	}
}

func (s *Store) publish(st State) {
	s.subs.Range(func(id uint64, sub *subscriber) bool {
		if !sub.send(st) {
			s.logger.Debug("subscriber lagging, state dropped", zap.Uint64("subscriber", id))
		}
		return true
	})
}

// Dispatch applies a and returns the resulting state. After Close it
// returns the last state unchanged.
func (s *Store) Dispatch(a Action) State {
	env := envelope{action: a, ack: make(chan State, 1)}
	select {
	case s.actions <- env:
	case <-s.done:
		return s.Snapshot()
	}
	return <-env.ack
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	return *s.current.Load()
}

// Subscribe returns a channel receiving every new state. Slow readers miss
// intermediate states once buffer is full; the latest is always available
// from Snapshot.
func (s *Store) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan State, buffer)}
	id := s.nextSub.Add(1)
	s.subs.Store(id, sub)
	return sub.ch, func() {
		s.subs.Delete(id)
		sub.close()
	}
}

// Close stops the writer and closes every subscription.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.subs.Range(func(id uint64, sub *subscriber) bool {
			sub.close()
			s.subs.Delete(id)
			return true
		})
	})
}
