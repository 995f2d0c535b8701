package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canopy-network/lootboard/pkg/utils"
)

// ErrNoEndpoints is returned when a Transport has nothing to dial.
var ErrNoEndpoints = errors.New("no endpoints configured")

// Transport is an http.RoundTripper for JSON-RPC traffic. It spreads requests
// over a list of equivalent endpoints, limits the request rate with a
// token-bucket and skips endpoints whose circuit-breaker is open.
type Transport struct {
	endpoints []*url.URL
	base      http.RoundTripper

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new Transport.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	Base            http.RoundTripper
}

// NewTransport creates a Transport with the given options.
func NewTransport(o Opts) (*Transport, error) {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}
	base := o.Base
	if base == nil {
		base = http.DefaultTransport
	}

	eps := utils.Dedup(o.Endpoints)
	if len(eps) == 0 {
		return nil, ErrNoEndpoints
	}
	parsed := make([]*url.URL, 0, len(eps))
	for _, ep := range eps {
		u, err := url.Parse(ep)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid rpc endpoint %q", ep)
		}
		parsed = append(parsed, u)
	}

	t := &Transport{
		endpoints:        parsed,
		base:             base,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	t.tokens = t.maxTokens
	t.lastRefill.Store(time.Now())
	return t, nil
}

// Primary returns the first endpoint. Clients dial it; RoundTrip rewrites the
// target when failing over.
func (t *Transport) Primary() string {
	return t.endpoints[0].String()
}

// Client wraps the Transport in an http.Client with the given timeout.
func (t *Transport) Client(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Transport: t, Timeout: timeout}
}

// refill refills the token-bucket with new tokens if necessary.
func (t *Transport) refill() {
	last := t.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= t.refillEvery {
		if atomic.LoadInt64(&t.tokens) < t.maxTokens {
			atomic.AddInt64(&t.tokens, 1)
		}
		t.lastRefill.Store(now)
	}
}

// acquire takes a token from the bucket, waiting until one is available or
// ctx is done.
func (t *Transport) acquire(ctx context.Context) error {
	for {
		t.refill()
		if atomic.AddInt64(&t.tokens, -1) >= 0 {
			return nil
		}
		atomic.AddInt64(&t.tokens, 1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.refillEvery / 2):
		}
	}
}

// isOpen returns true while the endpoint's breaker is open.
func (t *Transport) isOpen(ep string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	until, ok := t.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(t.opened, ep)
		t.failures[ep] = 0
		return false
	}
	return true
}

// noteFailure counts a failure and opens the breaker at the threshold.
func (t *Transport) noteFailure(ep string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[ep]++
	if t.failures[ep] >= t.breakerThreshold {
		t.opened[ep] = time.Now().Add(t.breakerCooldown)
	}
}

func (t *Transport) noteSuccess(ep string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[ep] = 0
}

// RoundTrip sends req to the first healthy endpoint, failing over on
// transport errors and 5xx responses.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var payload []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		payload = b
	}

	lastErr := ErrNoEndpoints
	tried := 0
	for _, ep := range t.endpoints {
		key := ep.String()
		if t.isOpen(key) {
			continue
		}
		tried++
		if err := t.acquire(req.Context()); err != nil {
			return nil, err
		}

		out := req.Clone(req.Context())
		out.URL = ep.ResolveReference(&url.URL{RawQuery: req.URL.RawQuery})
		out.Host = ep.Host
		out.Body = io.NopCloser(bytes.NewReader(payload))
		out.ContentLength = int64(len(payload))
		out.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(payload)), nil }

		resp, err := t.base.RoundTrip(out)
		if err != nil {
			lastErr = err
			t.noteFailure(key)
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server %d from %s", resp.StatusCode, ep.Host)
			t.noteFailure(key)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}
		t.noteSuccess(key)
		return resp, nil
	}

	if tried == 0 {
		return nil, fmt.Errorf("all %d endpoints have an open circuit-breaker", len(t.endpoints))
	}
	return nil, lastErr
}
