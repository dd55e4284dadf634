package ratelimit_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abzellie.com/storefront/internal/ratelimit"
	"abzellie.com/storefront/internal/store"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
}

func newLimiter(t *testing.T, kv store.Store, clock *fakeClock, opts ...ratelimit.Option) *ratelimit.Limiter {
	t.Helper()
	opts = append([]ratelimit.Option{ratelimit.WithClock(clock.Now)}, opts...)
	l, err := ratelimit.New(t.Context(), kv, opts...)
	require.NoError(t, err)
	return l
}

func persisted(t *testing.T, kv store.Store) ratelimit.State {
	t.Helper()
	raw, found, err := kv.Get(t.Context(), ratelimit.StorageKey)
	require.NoError(t, err)
	require.True(t, found)

	var st ratelimit.State
	require.NoError(t, json.Unmarshal([]byte(raw), &st))
	return st
}

func TestLimiter_FreshStateOpensNewWindow(t *testing.T) {
	kv := store.NewMemoryStore()
	clock := newClock()

	l := newLimiter(t, kv, clock)

	st := l.State()
	assert.Zero(t, st.Count)
	assert.Equal(t, clock.now.Add(24*time.Hour).UnixMilli(), st.ResetTime)
	assert.Equal(t, st, persisted(t, kv))
	assert.Equal(t, ratelimit.DefaultLimit, l.Limit())
}

func TestLimiter_ClosesAfterLimitSuccesses(t *testing.T) {
	ctx := t.Context()
	kv := store.NewMemoryStore()
	clock := newClock()
	l := newLimiter(t, kv, clock)

	for i := 0; i < ratelimit.DefaultLimit; i++ {
		d, err := l.CheckAndReserve(ctx)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d should be admitted", i)
		require.NoError(t, l.RecordSuccess(ctx))
	}

	clock.Advance(90 * time.Minute)
	d, err := l.CheckAndReserve(ctx)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 22*time.Hour+30*time.Minute, d.RetryAfter)
	assert.Equal(t, 23, d.HoursRemaining, "remaining time is rounded up to whole hours")
	assert.Equal(t, ratelimit.DefaultLimit, l.State().Count, "a rejection does not count")
}

func TestLimiter_ResetsWhenWindowElapses(t *testing.T) {
	ctx := t.Context()
	kv := store.NewMemoryStore()
	clock := newClock()
	l := newLimiter(t, kv, clock, ratelimit.WithLimit(2))

	for i := 0; i < 2; i++ {
		require.NoError(t, l.RecordSuccess(ctx))
	}
	d, err := l.CheckAndReserve(ctx)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	clock.Advance(24 * time.Hour)
	d, err = l.CheckAndReserve(ctx)
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	st := l.State()
	assert.Zero(t, st.Count)
	assert.Equal(t, clock.now.Add(24*time.Hour).UnixMilli(), st.ResetTime)
	assert.Equal(t, st, persisted(t, kv))
}

func TestLimiter_AdmissionDoesNotCount(t *testing.T) {
	ctx := t.Context()
	l := newLimiter(t, store.NewMemoryStore(), newClock())

	// Admitted attempts whose downstream call failed never reach RecordSuccess.
	for i := 0; i < ratelimit.DefaultLimit+1; i++ {
		d, err := l.CheckAndReserve(ctx)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := l.CheckAndReserve(ctx)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Zero(t, l.State().Count)
}

func TestLimiter_SurvivesRestart(t *testing.T) {
	ctx := t.Context()
	kv := store.NewMemoryStore()
	clock := newClock()

	first := newLimiter(t, kv, clock)
	for i := 0; i < 3; i++ {
		require.NoError(t, first.RecordSuccess(ctx))
	}

	second := newLimiter(t, kv, clock)
	assert.Equal(t, first.State(), second.State())

	require.NoError(t, second.RecordSuccess(ctx))
	d, err := second.CheckAndReserve(ctx)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestLimiter_ExpiredPersistedStateResetsOnCheck(t *testing.T) {
	ctx := t.Context()
	kv := store.NewMemoryStore()
	clock := newClock()
	stale := ratelimit.State{Count: 4, ResetTime: clock.now.Add(-time.Minute).UnixMilli()}
	raw, _ := json.Marshal(stale)
	require.NoError(t, kv.Set(ctx, ratelimit.StorageKey, string(raw)))

	l := newLimiter(t, kv, clock)
	assert.Equal(t, stale, l.State())

	d, err := l.CheckAndReserve(ctx)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Zero(t, l.State().Count)
}

func TestLimiter_CorruptStateStartsFresh(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "{count:"},
		{name: "negative count", raw: `{"count":-1,"resetTime":1760000000000}`},
		{name: "missing reset time", raw: `{"count":1}`},
		{name: "wrong type", raw: `{"count":"two","resetTime":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			kv := store.NewMemoryStore()
			clock := newClock()
			require.NoError(t, kv.Set(ctx, ratelimit.StorageKey, tt.raw))

			l := newLimiter(t, kv, clock)

			want := ratelimit.State{ResetTime: clock.now.Add(24 * time.Hour).UnixMilli()}
			assert.Equal(t, want, l.State())
			assert.Equal(t, want, persisted(t, kv))
		})
	}
}

func TestLimiter_CustomWindow(t *testing.T) {
	ctx := t.Context()
	clock := newClock()
	l := newLimiter(t, store.NewMemoryStore(), clock, ratelimit.WithLimit(1), ratelimit.WithWindow(time.Hour))

	require.NoError(t, l.RecordSuccess(ctx))
	clock.Advance(59 * time.Minute)

	d, err := l.CheckAndReserve(ctx)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1, d.HoursRemaining)

	clock.Advance(time.Minute)
	d, err = l.CheckAndReserve(ctx)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

type brokenStore struct {
	store.Store
	err error
}

func (b *brokenStore) Set(ctx context.Context, key, value string) error {
	if b.err != nil {
		return b.err
	}
	return b.Store.Set(ctx, key, value)
}

func TestLimiter_RecordSuccessPersistFailure(t *testing.T) {
	ctx := t.Context()
	kv := &brokenStore{Store: store.NewMemoryStore()}
	l := newLimiter(t, kv, newClock())

	errDown := errors.New("disk full")
	kv.err = errDown

	require.ErrorIs(t, l.RecordSuccess(ctx), errDown)
	assert.Zero(t, l.State().Count, "count is only advanced once it is stored")
}

func TestLimiter_SharedStorageAgrees(t *testing.T) {
	ctx := t.Context()
	kv := store.NewMemoryStore()
	clock := newClock()
	a := newLimiter(t, kv, clock, ratelimit.WithLimit(2))
	b := newLimiter(t, kv, clock, ratelimit.WithLimit(2))

	require.NoError(t, a.RecordSuccess(ctx))
	require.NoError(t, b.RecordSuccess(ctx))

	d, err := a.CheckAndReserve(ctx)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "successes recorded through b count for a")
	assert.Equal(t, 2, persisted(t, kv).Count)
}
