package controller

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/canopy-network/lootboard/app/lootboard/types"
	"github.com/canopy-network/lootboard/pkg/poller"
	"github.com/canopy-network/lootboard/pkg/redis"
	"github.com/canopy-network/lootboard/pkg/utils"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	TopicState    = "state"
	TopicOutcomes = "outcomes"
	TopicAll      = "*"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientSubscriptions tracks the topics a client is subscribed to.
type clientSubscriptions struct {
	mu     sync.RWMutex
	topics map[string]bool
}

// NewClientSubscriptions creates a new clientSubscriptions tracker.
// Exported for testing.
func NewClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{topics: make(map[string]bool)}
}

func (cs *clientSubscriptions) Subscribe(topic string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.topics[topic] = true
}

func (cs *clientSubscriptions) Unsubscribe(topic string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.topics, topic)
}

// IsSubscribed checks if a topic is subscribed. Wildcard (*) matches all topics.
func (cs *clientSubscriptions) IsSubscribed(topic string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.topics[TopicAll] || cs.topics[topic]
}

func validTopic(topic string) bool {
	return topic == TopicState || topic == TopicOutcomes || topic == TopicAll
}

// HandleWebSocket upgrades the connection and streams state changes and
// poll outcomes.
//
// Protocol:
// Client sends: {"action": "subscribe", "topic": "state"}
// Client sends: {"action": "subscribe", "topic": "*"}
// Client sends: {"action": "unsubscribe", "topic": "outcomes"}
//
// Server sends:
// - {"type": "state", "payload": {...}}
// - {"type": "message", "payload": {"message": "..."}}
// - {"type": "outcome", "payload": {...}}
// - {"type": "subscribed", "payload": {"topic": "state"}}
// - {"type": "error", "payload": {"message": "..."}}
//
// All goroutines recover from panics.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.clients.Store(r.RemoteAddr, struct{}{})
	c.App.Metrics.WSClients(c.clients.Size())
	defer func() {
		c.clients.Delete(r.RemoteAddr)
		c.App.Metrics.WSClients(c.clients.Size())
	}()
	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := NewClientSubscriptions()
	send := make(chan types.ServerMessage, 256)

	// producers feed send; the writer drains it until it is closed
	var producers, writer sync.WaitGroup
	guarded := func(wg *sync.WaitGroup, name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					c.App.Logger.Error("Panic in "+name+" goroutine",
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("remote_addr", r.RemoteAddr))
					cancel()
				}
			}()
			fn()
		}()
	}

	guarded(&producers, "state forwarder", func() { c.forwardState(ctx, send, subs) })
	if c.App.RedisClient != nil {
		guarded(&producers, "outcome tail", func() { c.tailOutcomes(ctx, send, subs) })
	}
	guarded(&producers, "ping ticker", func() { c.sendPings(ctx, conn) })
	guarded(&writer, "message writer", func() { c.writeMessages(conn, send) })

	// Blocks until the connection closes
	c.readClientMessages(ctx, conn, cancel, subs, send)

	cancel()
	producers.Wait()
	close(send)
	writer.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// forwardState pushes store states, and their status messages, to subscribed clients.
func (c *Controller) forwardState(ctx context.Context, send chan<- types.ServerMessage, subs *clientSubscriptions) {
	states, unsubscribe := c.App.Session.Subscribe(16)
	defer unsubscribe()

	lastMessage := c.App.Session.State().Message
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if !subs.IsSubscribed(TopicState) {
				lastMessage = st.Message
				continue
			}
			out := []types.ServerMessage{{Type: "state", Payload: st}}
			if st.Message != "" && st.Message != lastMessage {
				out = append(out, types.ServerMessage{Type: "message", Payload: map[string]string{"message": st.Message}})
			}
			lastMessage = st.Message
			for _, m := range out {
				select {
				case send <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// tailOutcomes follows the outcome stream from its current end, reconnecting
// with backoff when Redis is unavailable.
func (c *Controller) tailOutcomes(ctx context.Context, send chan<- types.ServerMessage, subs *clientSubscriptions) {
	consumer, err := redis.NewStreamConsumer(c.App.RedisClient, redis.StreamConsumerConfig{
		Stream: c.App.Config.Service.OutcomeStream,
		Block:  5 * time.Second,
		Logger: c.App.Logger,
	})
	if err != nil {
		c.App.Logger.Error("Unable to create outcome consumer", zap.Error(err))
		return
	}

	_ = consumer.Run(ctx, func(ctx context.Context, msg redis.Message) error {
		if !subs.IsSubscribed(TopicOutcomes) {
			return nil
		}
		var out poller.Outcome
		if err := json.Unmarshal(msg.GetData(), &out); err != nil {
			return err
		}
		select {
		case send <- types.ServerMessage{Type: "outcome", Payload: out}:
		case <-ctx.Done():
		}
		return nil
	})
}

// CalculateNextBackoff calculates the next backoff duration with exponential growth and jitter.
// Exported for testing.
func CalculateNextBackoff(current, max time.Duration, factor, jitterFactor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		next = max
	}

	// Random value between -jitterFactor and +jitterFactor
	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	nextWithJitter := time.Duration(float64(next) + jitter)

	if nextWithJitter < current {
		nextWithJitter = current
	}
	if nextWithJitter > max {
		nextWithJitter = max
	}
	return nextWithJitter
}

// sendPings sends periodic WebSocket ping frames to keep the connection alive.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan types.ServerMessage) {
	failed := false
	for msg := range send {
		if failed {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
			failed = true
		}
	}
}

func (c *Controller) reply(ctx context.Context, send chan<- types.ServerMessage, msg types.ServerMessage) {
	select {
	case send <- msg:
	case <-ctx.Done():
	}
}

// readClientMessages handles subscription requests and detects connection closure.
func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *clientSubscriptions, send chan<- types.ServerMessage) {
	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		var msg types.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.App.Logger.Warn("WebSocket read error", zap.Error(err))
			}
			cancel()
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.App.Logger.Error("Failed to reset read deadline", zap.Error(err))
			return
		}

		if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
			c.reply(ctx, send, types.ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action: " + utils.Truncate(msg.Action, 32)}})
			continue
		}
		if !validTopic(msg.Topic) {
			c.reply(ctx, send, types.ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown topic: " + utils.Truncate(msg.Topic, 32)}})
			continue
		}

		if msg.Action == "subscribe" {
			subs.Subscribe(msg.Topic)
			c.App.Logger.Debug("Client subscribed", zap.String("topic", msg.Topic))
			c.reply(ctx, send, types.ServerMessage{Type: "subscribed", Payload: map[string]string{"topic": msg.Topic}})
			// Current state so the client does not wait for the next change
			if msg.Topic != TopicOutcomes {
				c.reply(ctx, send, types.ServerMessage{Type: "state", Payload: c.App.Session.State()})
			}
			continue
		}
		subs.Unsubscribe(msg.Topic)
		c.App.Logger.Debug("Client unsubscribed", zap.String("topic", msg.Topic))
		c.reply(ctx, send, types.ServerMessage{Type: "unsubscribed", Payload: map[string]string{"topic": msg.Topic}})
	}
}
