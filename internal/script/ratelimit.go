package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Fallback budgets sized for a free-tier account when no limits are
// configured.
const (
	defaultRPMLimit         = 3
	defaultTPMLimit         = 1000
	defaultConcurrencyLimit = 1

	// limiterPollFloor bounds how briefly a blocked caller sleeps before
	// rechecking the buckets.
	limiterPollFloor = 250 * time.Millisecond

	secondsPerMinute = 60.0
)

var (
	// ErrDailyLimitExceeded is returned once the configured daily request cap
	// has been spent.
	ErrDailyLimitExceeded = errors.New("daily request limit exceeded")

	// ErrTokenBudgetTooLarge is returned when a single request needs more
	// tokens than the per-minute budget can ever hold.
	ErrTokenBudgetTooLarge = errors.New("estimated tokens exceed the per-minute token limit")
)

// RateLimiter enforces client-side request and token budgets: request and
// token buckets with continuous refill, an optional daily request cap, and a
// concurrency bound. It keeps the process inside provider quotas instead of
// discovering them through 429 responses.
type RateLimiter struct {
	rpmLimit   float64
	tpmLimit   float64
	dailyLimit int

	mu            sync.Mutex
	requestTokens float64
	tokenTokens   float64
	lastRefill    time.Time
	day           string
	dailyRequests int

	slots chan struct{}
	now   func() time.Time
}

// NewRateLimiter creates a limiter with the given per-minute request and
// token budgets. A dailyLimit of zero disables the daily cap. Non-positive
// budgets fall back to conservative defaults.
func NewRateLimiter(rpmLimit, tpmLimit, dailyLimit, concurrencyLimit int) *RateLimiter {
	if rpmLimit < 1 {
		rpmLimit = defaultRPMLimit
	}

	if tpmLimit < 1 {
		tpmLimit = defaultTPMLimit
	}

	if concurrencyLimit < 1 {
		concurrencyLimit = defaultConcurrencyLimit
	}

	if dailyLimit < 0 {
		dailyLimit = 0
	}

	now := time.Now()

	return &RateLimiter{
		rpmLimit:      float64(rpmLimit),
		tpmLimit:      float64(tpmLimit),
		dailyLimit:    dailyLimit,
		mu:            sync.Mutex{},
		requestTokens: float64(rpmLimit),
		tokenTokens:   float64(tpmLimit),
		lastRefill:    now,
		day:           now.Format(time.DateOnly),
		dailyRequests: 0,
		slots:         make(chan struct{}, concurrencyLimit),
		now:           time.Now,
	}
}

// Acquire blocks until a concurrency slot and enough budget for one request
// of tokensNeeded tokens are available. Every successful Acquire must be
// paired with a Release.
func (l *RateLimiter) Acquire(ctx context.Context, tokensNeeded int) error {
	if float64(tokensNeeded) > l.tpmLimit {
		return fmt.Errorf(
			"%w: need %d, limit %d",
			ErrTokenBudgetTooLarge, tokensNeeded, int(l.tpmLimit),
		)
	}

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for a request slot: %w", ctx.Err())
	}

	for {
		wait, err := l.take(tokensNeeded)
		if err != nil {
			<-l.slots

			return err
		}

		if wait == 0 {
			return nil
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			<-l.slots

			return fmt.Errorf("waiting for request budget: %w", ctx.Err())
		}
	}
}

// Release returns the concurrency slot taken by Acquire.
func (l *RateLimiter) Release() {
	<-l.slots
}

// take consumes one request and tokensNeeded tokens from the buckets, or
// returns how long to wait before the budget can cover them.
func (l *RateLimiter) take(tokensNeeded int) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollDayLocked()

	if l.dailyLimit > 0 && l.dailyRequests >= l.dailyLimit {
		return 0, fmt.Errorf(
			"%w: %d requests made today",
			ErrDailyLimitExceeded, l.dailyRequests,
		)
	}

	l.refillLocked()

	needed := float64(tokensNeeded)
	if l.requestTokens >= 1 && l.tokenTokens >= needed {
		l.requestTokens--
		l.tokenTokens -= needed
		l.dailyRequests++

		return 0, nil
	}

	var requestWait, tokenWait time.Duration

	if deficit := 1 - l.requestTokens; deficit > 0 {
		requestWait = time.Duration(deficit / l.rpmLimit * secondsPerMinute * float64(time.Second))
	}

	if deficit := needed - l.tokenTokens; deficit > 0 {
		tokenWait = time.Duration(deficit / l.tpmLimit * secondsPerMinute * float64(time.Second))
	}

	wait := max(requestWait, tokenWait, limiterPollFloor)

	return wait, nil
}

func (l *RateLimiter) refillLocked() {
	now := l.now()

	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	l.requestTokens = min(l.rpmLimit, l.requestTokens+(l.rpmLimit/secondsPerMinute)*elapsed)
	l.tokenTokens = min(l.tpmLimit, l.tokenTokens+(l.tpmLimit/secondsPerMinute)*elapsed)
	l.lastRefill = now
}

// rollDayLocked resets the daily counter when the calendar day changes.
func (l *RateLimiter) rollDayLocked() {
	currentDay := l.now().Format(time.DateOnly)
	if currentDay != l.day {
		l.day = currentDay
		l.dailyRequests = 0
	}
}
