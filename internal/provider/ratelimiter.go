package provider

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"market-pulse/internal/domain"
)

// Doer is the subset of *http.Client every provider depends on.
// HostRateLimiter satisfies it so providers never talk to the network directly.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HostPolicy is the rate budget for one upstream bucket. A URL belongs to the
// first policy whose Match is a substring of it.
type HostPolicy struct {
	Name              string
	Match             string
	RequestsPerSecond float64
	MaxRetries        int
	RetryDelay        time.Duration
}

func (p HostPolicy) interval() time.Duration {
	if p.RequestsPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / p.RequestsPerSecond)
}

// DefaultFallbackPolicy applies to URLs no table entry matches.
var DefaultFallbackPolicy = HostPolicy{Name: "default", RequestsPerSecond: 5, MaxRetries: 3, RetryDelay: time.Second}

// DefaultHostPolicies is ordered; the first match wins.
var DefaultHostPolicies = []HostPolicy{
	{Name: "coingecko", Match: "coingecko.com", RequestsPerSecond: 10, MaxRetries: 5, RetryDelay: 2 * time.Second},
	{Name: "feargreed", Match: "alternative.me", RequestsPerSecond: 10, MaxRetries: 3, RetryDelay: time.Second},
	{Name: "binance", Match: "binance.com", RequestsPerSecond: 20, MaxRetries: 3, RetryDelay: 500 * time.Millisecond},
	{Name: "yahoo", Match: "finance.yahoo.com", RequestsPerSecond: 10, MaxRetries: 3, RetryDelay: time.Second},
	{Name: "fred", Match: "stlouisfed.org", RequestsPerSecond: 10, MaxRetries: 3, RetryDelay: time.Second},
	{Name: "cryptoquant", Match: "cryptoquant.com", RequestsPerSecond: 10, MaxRetries: 3, RetryDelay: time.Second},
	{Name: "coinglass", Match: "coinglass.com", RequestsPerSecond: 10, MaxRetries: 3, RetryDelay: time.Second},
	{Name: "reddit", Match: "reddit.com", RequestsPerSecond: 10, MaxRetries: 3, RetryDelay: 2 * time.Second},
	{Name: "mempool", Match: "mempool.space", RequestsPerSecond: 10, MaxRetries: 3, RetryDelay: time.Second},
	{Name: "blockscout", Match: "blockscout.com", RequestsPerSecond: 10, MaxRetries: 3, RetryDelay: time.Second},
	{Name: "koios", Match: "koios.rest", RequestsPerSecond: 5, MaxRetries: 3, RetryDelay: time.Second},
	{Name: "xrpscan", Match: "xrpscan.com", RequestsPerSecond: 5, MaxRetries: 3, RetryDelay: time.Second},
}

// RateLimitExhaustedError is returned once a request used its whole retry
// budget. It matches domain.ErrRateLimitExhausted.
type RateLimitExhaustedError struct {
	Bucket     string
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *RateLimitExhaustedError) Error() string {
	msg := fmt.Sprintf("%s: %d attempts for %s", e.Bucket, e.Attempts, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": last status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "rate limit exhausted: " + msg
}

func (e *RateLimitExhaustedError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrRateLimitExhausted}
	}
	return []error{domain.ErrRateLimitExhausted, e.Err}
}

// LimiterObserver receives limiter events. Implementations must not block.
type LimiterObserver interface {
	ObserveDispatch(bucket string)
	ObserveRetry(bucket string, retries int)
	ObserveExhausted(bucket string)
}

type result struct {
	resp *http.Response
	err  error
}

type pendingRequest struct {
	req     *http.Request
	retries int
	done    chan result
}

func (p *pendingRequest) deliver(resp *http.Response, err error) {
	p.done <- result{resp: resp, err: err}
}

type hostQueue struct {
	items          []*pendingRequest
	lastDispatchAt time.Time
	draining       bool
}

// RateLimiterState owns the per-bucket queues. Limiters sharing a state share
// budgets; tests give each limiter its own.
type RateLimiterState struct {
	mu      sync.Mutex
	buckets map[string]*hostQueue
}

func NewRateLimiterState() *RateLimiterState {
	return &RateLimiterState{buckets: make(map[string]*hostQueue)}
}

func (s *RateLimiterState) queue(bucket string) *hostQueue {
	q, ok := s.buckets[bucket]
	if !ok {
		q = &hostQueue{}
		s.buckets[bucket] = q
	}
	return q
}

// push appends pr and reports whether the caller must start the drain loop.
func (s *RateLimiterState) push(bucket string, pr *pendingRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queue(bucket)
	q.items = append(q.items, pr)
	if q.draining {
		return false
	}
	q.draining = true
	return true
}

func (s *RateLimiterState) pushFront(bucket string, pr *pendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queue(bucket)
	q.items = append([]*pendingRequest{pr}, q.items...)
}

// pop removes the head. An empty queue clears the draining flag under the same
// lock so a concurrent push starts a fresh loop.
func (s *RateLimiterState) pop(bucket string) (*pendingRequest, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queue(bucket)
	if len(q.items) == 0 {
		q.draining = false
		return nil, time.Time{}, false
	}
	pr := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return pr, q.lastDispatchAt, true
}

func (s *RateLimiterState) stamp(bucket string, at time.Time) {
	s.mu.Lock()
	s.queue(bucket).lastDispatchAt = at
	s.mu.Unlock()
}

func (s *RateLimiterState) queueLen(bucket string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.buckets[bucket]; ok {
		return len(q.items)
	}
	return 0
}

// HostRateLimiter queues outbound requests per upstream bucket, spacing
// dispatches by 1s/rps and retrying 429s and transport errors with
// exponential backoff at the head of the queue.
type HostRateLimiter struct {
	state    *RateLimiterState
	policies []HostPolicy
	fallback HostPolicy
	client   Doer
	observer LimiterObserver
	sleep    func(time.Duration)
	now      func() time.Time
}

type LimiterOption func(*HostRateLimiter)

func WithPolicies(policies []HostPolicy) LimiterOption {
	return func(l *HostRateLimiter) { l.policies = policies }
}

func WithFallbackPolicy(p HostPolicy) LimiterOption {
	return func(l *HostRateLimiter) { l.fallback = p }
}

func WithLimiterState(state *RateLimiterState) LimiterOption {
	return func(l *HostRateLimiter) { l.state = state }
}

func WithObserver(o LimiterObserver) LimiterOption {
	return func(l *HostRateLimiter) { l.observer = o }
}

// NewHostRateLimiter wraps client. Timeouts stay with client.
func NewHostRateLimiter(client Doer, opts ...LimiterOption) *HostRateLimiter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	l := &HostRateLimiter{
		state:    NewRateLimiterState(),
		policies: DefaultHostPolicies,
		fallback: DefaultFallbackPolicy,
		client:   client,
		sleep:    time.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the bucket policy for rawURL.
func (l *HostRateLimiter) Policy(rawURL string) HostPolicy {
	for _, p := range l.policies {
		if p.Match != "" && strings.Contains(rawURL, p.Match) {
			return p
		}
	}
	return l.fallback
}

// QueueLen reports how many requests wait in bucket, excluding one in flight
// or in backoff.
func (l *HostRateLimiter) QueueLen(bucket string) int {
	return l.state.queueLen(bucket)
}

// Do enqueues req on its bucket and waits for the outcome or req's context.
func (l *HostRateLimiter) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	policy := l.Policy(req.URL.String())
	pr := &pendingRequest{req: req, done: make(chan result, 1)}
	if l.state.push(policy.Name, pr) {
		go l.drain(policy)
	}

	select {
	case res := <-pr.done:
		return res.resp, res.err
	case <-ctx.Done():
		// The drain loop always settles pr; release whatever it produces.
		go func() {
			if res := <-pr.done; res.resp != nil {
				res.resp.Body.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (l *HostRateLimiter) drain(policy HostPolicy) {
	interval := policy.interval()
	for {
		pr, last, ok := l.state.pop(policy.Name)
		if !ok {
			return
		}
		if err := pr.req.Context().Err(); err != nil {
			pr.deliver(nil, err)
			continue
		}

		if !last.IsZero() {
			if wait := interval - l.now().Sub(last); wait > 0 {
				l.sleep(wait)
			}
		}
		l.state.stamp(policy.Name, l.now())
		if l.observer != nil {
			l.observer.ObserveDispatch(policy.Name)
		}

		resp, err := l.client.Do(pr.req)
		if err == nil && resp.StatusCode != http.StatusTooManyRequests {
			pr.deliver(resp, nil)
			continue
		}

		status := 0
		if resp != nil {
			status = resp.StatusCode
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		if ctxErr := pr.req.Context().Err(); ctxErr != nil {
			pr.deliver(nil, ctxErr)
			continue
		}
		if pr.retries >= policy.MaxRetries {
			if l.observer != nil {
				l.observer.ObserveExhausted(policy.Name)
			}
			pr.deliver(nil, &RateLimitExhaustedError{
				Bucket:     policy.Name,
				URL:        pr.req.URL.String(),
				Attempts:   pr.retries + 1,
				StatusCode: status,
				Err:        err,
			})
			continue
		}

		pr.retries++
		if l.observer != nil {
			l.observer.ObserveRetry(policy.Name, pr.retries)
		}
		// Nothing else in this bucket dispatches while the loop sleeps.
		l.sleep(policy.RetryDelay * time.Duration(1<<pr.retries))
		l.state.pushFront(policy.Name, pr)
	}
}
