package core_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"abzellie.com/storefront/internal/core"
	"abzellie.com/storefront/internal/ratelimit"
	"abzellie.com/storefront/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	message string
	history []core.Turn
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []call
	reply string
	err   error
}

func (g *fakeGenerator) GenerateReply(_ context.Context, message string, history []core.Turn) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call{message: message, history: history})
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) Calls() []call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]call(nil), g.calls...)
}

// blockingGenerator holds every call until release is closed.
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *blockingGenerator) GenerateReply(ctx context.Context, _ string, _ []core.Turn) (string, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type failingAdmission struct {
	err error
}

func (f failingAdmission) CheckAndReserve(context.Context) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, f.err
}

func (f failingAdmission) RecordSuccess(context.Context) error { return f.err }

func newLimiter(t *testing.T, opts ...ratelimit.Option) *ratelimit.Limiter {
	t.Helper()
	l, err := ratelimit.New(t.Context(), store.NewMemoryStore(), opts...)
	require.NoError(t, err)
	return l
}

func TestChatSession_StartsWithGreeting(t *testing.T) {
	s := core.NewChatSession(&fakeGenerator{}, newLimiter(t))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, core.RoleAssistant, msgs[0].Role)
	assert.Equal(t, core.Greeting, msgs[0].Text)
	assert.Equal(t, core.StatusIdle, s.Status())
}

func TestChatSession_IgnoresBlankInput(t *testing.T) {
	gen := &fakeGenerator{reply: "hi"}
	s := core.NewChatSession(gen, newLimiter(t))

	for _, in := range []string{"", "   ", "\n\t"} {
		out, err := s.Send(t.Context(), in)
		require.NoError(t, err)
		assert.Equal(t, core.OutcomeIgnored, out)
	}
	assert.Len(t, s.Messages(), 1)
	assert.Empty(t, gen.Calls())
}

func TestChatSession_AnswersAndPassesPriorHistory(t *testing.T) {
	ctx := t.Context()
	gen := &fakeGenerator{reply: "Try the Oud Royale."}
	limiter := newLimiter(t)
	s := core.NewChatSession(gen, limiter)

	out, err := s.Send(ctx, "Any perfume for evenings?")
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeAnswered, out)

	out, err = s.Send(ctx, "And for him?")
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeAnswered, out)

	calls := gen.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Any perfume for evenings?", calls[0].message)
	assert.Equal(t, []core.Turn{{Role: core.RoleAssistant, Text: core.Greeting}}, calls[0].history)
	assert.Equal(t, []core.Turn{
		{Role: core.RoleAssistant, Text: core.Greeting},
		{Role: core.RoleUser, Text: "Any perfume for evenings?"},
		{Role: core.RoleAssistant, Text: "Try the Oud Royale."},
	}, calls[1].history, "history excludes the message being sent")

	msgs := s.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, core.RoleUser, msgs[3].Role)
	assert.Equal(t, core.RoleAssistant, msgs[4].Role)
	assert.Equal(t, 2, limiter.State().Count)
	assert.Equal(t, core.StatusIdle, s.Status())
}

func TestChatSession_FifthMessageIsRateLimited(t *testing.T) {
	ctx := t.Context()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time { return now }

	gen := &fakeGenerator{reply: "ok"}
	limiter := newLimiter(t, ratelimit.WithClock(clock))
	s := core.NewChatSession(gen, limiter, core.WithSessionClock(clock))

	for i := 0; i < 4; i++ {
		out, err := s.Send(ctx, "question")
		require.NoError(t, err)
		require.Equal(t, core.OutcomeAnswered, out)
	}

	now = base.Add(3 * time.Hour)
	out, err := s.Send(ctx, "one more")
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeRateLimited, out)
	assert.Len(t, gen.Calls(), 4, "a rejected message never reaches the generator")

	msgs := s.Messages()
	require.Len(t, msgs, 11)
	assert.Equal(t, "one more", msgs[9].Text)
	assert.Contains(t, msgs[10].Text, "21 hours")
	assert.Contains(t, msgs[10].Text, "WhatsApp")
	assert.Equal(t, 4, limiter.State().Count)
}

func TestChatSession_GeneratorFailureDoesNotCount(t *testing.T) {
	ctx := t.Context()
	gen := &fakeGenerator{err: errors.New("network unreachable")}
	limiter := newLimiter(t)
	s := core.NewChatSession(gen, limiter, core.WithFallbackPhone("08000000000"))

	out, err := s.Send(ctx, "hello?")
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeFailed, out)

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, core.RoleAssistant, msgs[2].Role)
	assert.Contains(t, msgs[2].Text, "08000000000")
	assert.Zero(t, limiter.State().Count)
	assert.Equal(t, core.StatusIdle, s.Status())
}

func TestChatSession_LimiterStorageError(t *testing.T) {
	errDown := errors.New("storage offline")
	gen := &fakeGenerator{reply: "unused"}
	s := core.NewChatSession(gen, failingAdmission{err: errDown})

	out, err := s.Send(t.Context(), "hi")
	require.ErrorIs(t, err, errDown)
	assert.Equal(t, core.OutcomeFailed, out)
	assert.Empty(t, gen.Calls())
	assert.Len(t, s.Messages(), 3)
	assert.Equal(t, core.StatusIdle, s.Status())
}

func TestChatSession_SingleFlight(t *testing.T) {
	ctx := t.Context()
	gen := newBlockingGenerator()
	s := core.NewChatSession(gen, newLimiter(t))

	var (
		wg    sync.WaitGroup
		first core.SendOutcome
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, _ = s.Send(ctx, "first")
	}()

	<-gen.started
	assert.Equal(t, core.StatusPending, s.Status())

	out, err := s.Send(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeIgnored, out)

	close(gen.release)
	wg.Wait()

	assert.Equal(t, core.OutcomeAnswered, first)
	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[1].Text)
	assert.Equal(t, "done", msgs[2].Text)
	assert.Equal(t, core.StatusIdle, s.Status())
}

func TestChatSession_MessagesReturnsCopy(t *testing.T) {
	s := core.NewChatSession(&fakeGenerator{reply: "x"}, newLimiter(t))

	msgs := s.Messages()
	msgs[0].Text = "changed"

	assert.Equal(t, core.Greeting, s.Messages()[0].Text)
}

// cancelingGenerator cancels the caller's context before replying, as when
// an HTTP client disconnects while the model is answering.
type cancelingGenerator struct {
	cancel context.CancelFunc
}

func (g cancelingGenerator) GenerateReply(context.Context, string, []core.Turn) (string, error) {
	g.cancel()
	return "answer", nil
}

func TestChatSession_ReplyCountedAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	kv, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	limiter, err := ratelimit.New(ctx, kv)
	require.NoError(t, err)
	s := core.NewChatSession(cancelingGenerator{cancel: cancel}, limiter)

	out, err := s.Send(ctx, "quick question")
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeAnswered, out)
	assert.Equal(t, "answer", s.Messages()[2].Text)
	assert.Equal(t, 1, limiter.State().Count)
}

func TestChatSession_RepeatedFailuresNeverExhaustTheLimit(t *testing.T) {
	ctx := t.Context()
	gen := &fakeGenerator{err: errors.New("timeout")}
	limiter := newLimiter(t)
	s := core.NewChatSession(gen, limiter)

	for i := 0; i < ratelimit.DefaultLimit+1; i++ {
		out, err := s.Send(ctx, "are you there?")
		require.NoError(t, err)
		require.Equal(t, core.OutcomeFailed, out, "send %d", i)
	}
	assert.Zero(t, limiter.State().Count)

	gen.mu.Lock()
	gen.err = nil
	gen.reply = "I'm here now."
	gen.mu.Unlock()

	out, err := s.Send(ctx, "hello?")
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeAnswered, out)
	assert.Equal(t, 1, limiter.State().Count)
	assert.Len(t, gen.Calls(), ratelimit.DefaultLimit+2)
}
