// Package ratelimit gates chat requests with a fixed-window counter that
// survives restarts.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"abzellie.com/storefront/internal/store"
)

const (
	// StorageKey is where the limiter state lives in the visitor's storage.
	StorageKey = "abz_ai_rate_limit"

	DefaultLimit  = 4
	DefaultWindow = 24 * time.Hour
)

// State is the persisted counter. ResetTime is epoch milliseconds.
type State struct {
	Count     int   `json:"count"`
	ResetTime int64 `json:"resetTime"`
}

func (s State) ResetAt() time.Time {
	return time.UnixMilli(s.ResetTime)
}

// Decision is the outcome of an admission check. RetryAfter and
// HoursRemaining are set only when Allowed is false.
type Decision struct {
	Allowed        bool
	RetryAfter     time.Duration
	HoursRemaining int
}

type Option func(*Limiter)

func WithLimit(limit int) Option {
	return func(l *Limiter) {
		if limit > 0 {
			l.limit = limit
		}
	}
}

func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// Limiter is Open while count < limit and Closed otherwise. Once the clock
// reaches the reset time the count drops to zero and a new window starts.
//
// Admission and counting are separate: CheckAndReserve never increments,
// RecordSuccess does, so a failed downstream call costs nothing.
type Limiter struct {
	mu     sync.Mutex
	store  store.Store
	limit  int
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
	state  State
}

// New loads the limiter state from s. Missing or corrupt state starts a
// fresh window at the current time.
func New(ctx context.Context, s store.Store, opts ...Option) (*Limiter, error) {
	l := &Limiter{
		store:  s,
		limit:  DefaultLimit,
		window: DefaultWindow,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.refresh(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// refresh re-reads the persisted state so that several limiters sharing one
// storage namespace agree on the count. Callers hold l.mu or own l.
func (l *Limiter) refresh(ctx context.Context) error {
	raw, found, err := l.store.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("failed to read rate limit state: %w", err)
	}

	if found {
		var st State
		if err := json.Unmarshal([]byte(raw), &st); err != nil || st.Count < 0 || st.ResetTime <= 0 {
			l.logger.Warn("resetting corrupt rate limit state", "raw", raw, "error", err)
		} else {
			l.state = st
			return nil
		}
	}

	fresh := State{ResetTime: l.now().Add(l.window).UnixMilli()}
	if err := l.persist(ctx, fresh); err != nil {
		return err
	}
	l.state = fresh
	return nil
}

// CheckAndReserve admits or rejects the next request.
func (l *Limiter) CheckAndReserve(ctx context.Context) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.refresh(ctx); err != nil {
		return Decision{}, err
	}
	now := l.now()
	if err := l.resetIfDue(ctx, now); err != nil {
		return Decision{}, err
	}

	if l.state.Count < l.limit {
		return Decision{Allowed: true}, nil
	}

	retry := l.state.ResetAt().Sub(now)
	return Decision{
		Allowed:        false,
		RetryAfter:     retry,
		HoursRemaining: int(math.Ceil(retry.Hours())),
	}, nil
}

// RecordSuccess counts one completed request against the current window.
func (l *Limiter) RecordSuccess(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.refresh(ctx); err != nil {
		return err
	}
	if err := l.resetIfDue(ctx, l.now()); err != nil {
		return err
	}

	next := l.state
	next.Count++
	if err := l.persist(ctx, next); err != nil {
		return err
	}
	l.state = next
	return nil
}

// State returns a copy of the current counter.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Limiter) Limit() int {
	return l.limit
}

// resetIfDue starts a new window when now has reached the reset time.
// Callers hold l.mu.
func (l *Limiter) resetIfDue(ctx context.Context, now time.Time) error {
	if now.Before(l.state.ResetAt()) {
		return nil
	}

	next := State{Count: 0, ResetTime: now.Add(l.window).UnixMilli()}
	if err := l.persist(ctx, next); err != nil {
		return err
	}
	l.logger.Debug("rate limit window reset", "reset_at", next.ResetAt())
	l.state = next
	return nil
}

func (l *Limiter) persist(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal rate limit state: %w", err)
	}
	if err := l.store.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist rate limit state: %w", err)
	}
	return nil
}
