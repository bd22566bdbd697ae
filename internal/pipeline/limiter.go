package pipeline

// limiter.go implements concurrency control for file pair comparisons.
//
// The limiter uses a semaphore pattern to restrict parallel comparisons to a
// configurable maximum, so a large folder or a burst of API requests cannot
// exhaust memory: every comparison holds both tables in memory.
//
// Two ways to take a slot:
//   - Acquire waits up to maxWait and then fails with ErrTooManyComparisons.
//     The HTTP API uses it so a busy server answers quickly.
//   - Wait blocks until a slot frees up or ctx ends. Folder runs use it since
//     every pair must eventually be compared.
//
// The limiter also supports graceful shutdown via WaitForDrain, which blocks
// until all active comparisons complete.

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JonMunkholm/csvcompare/internal/metrics"
)

// ErrTooManyComparisons is returned when all comparison slots are occupied
// and the wait timeout expires. Clients should retry after a short delay.
var ErrTooManyComparisons = errors.New("too many concurrent comparisons, please try again later")

// DefaultMaxConcurrent is the default limit for parallel comparisons.
const DefaultMaxConcurrent = 4

// DefaultMaxWaitTime is how long Acquire waits for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// Limiter controls concurrent comparisons using a semaphore pattern.
type Limiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimiter creates a limiter that allows at most maxConcurrent simultaneous
// comparisons. Acquire calls that cannot get a slot within maxWait receive
// ErrTooManyComparisons.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &Limiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire attempts to acquire a comparison slot within maxWait.
// Returns nil on success, ErrTooManyComparisons if the wait expires.
// The caller MUST call Release() when the comparison completes (use defer).
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.track(1)
		return nil

	case <-waitCtx.Done():
		// Check if original context was cancelled vs timeout
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyComparisons
	}
}

// Wait blocks until a slot is free or ctx is done.
// The caller MUST call Release() after a nil return.
func (l *Limiter) Wait(ctx context.Context) error {
	select {
	case l.semaphore <- struct{}{}:
		l.track(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a previously acquired slot.
// Must be called exactly once for each successful Acquire or Wait.
func (l *Limiter) Release() {
	l.track(-1)
	<-l.semaphore
}

func (l *Limiter) track(delta int) {
	l.mu.Lock()
	l.active += delta
	active := l.active
	l.mu.Unlock()

	metrics.ActiveComparisons.Set(float64(active))
}

// drainPollInterval is how often WaitForDrain rechecks the active count.
const drainPollInterval = 100 * time.Millisecond

// WaitForDrain blocks until no comparison holds a slot or ctx is done. An
// idle limiter returns nil at once, even with an expired ctx, so shutdown
// never reports a drain failure when nothing was running.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for l.Status().Active > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// LimiterStatus is a snapshot of the limiter's current state.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring/debugging.
func (l *Limiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
