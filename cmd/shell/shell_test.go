package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abzellie.com/storefront/internal/cart"
	"abzellie.com/storefront/internal/catalog"
	"abzellie.com/storefront/internal/core"
	"abzellie.com/storefront/internal/nav"
	"abzellie.com/storefront/internal/ratelimit"
	"abzellie.com/storefront/internal/store"
)

type cannedGenerator string

func (g cannedGenerator) GenerateReply(context.Context, string, []core.Turn) (string, error) {
	return string(g), nil
}

func newTestShell(t *testing.T, withChat bool) (*shell, *bytes.Buffer) {
	t.Helper()
	ctx := t.Context()
	kv := store.NewMemoryStore()

	crt, err := cart.New(ctx, kv)
	require.NoError(t, err)

	var chat *core.ChatSession
	if withChat {
		limiter, err := ratelimit.New(ctx, kv)
		require.NoError(t, err)
		chat = core.NewChatSession(cannedGenerator("Try the gold band."), limiter)
	}

	var out bytes.Buffer
	sh := newShell(&out, catalog.Default(), crt, chat)
	t.Cleanup(sh.Close)
	return sh, &out
}

func TestShell_Navigation(t *testing.T) {
	sh, out := newTestShell(t, false)

	err := sh.Run(t.Context(), strings.NewReader("go /shop\ngo /about\nback\nforward\nforward\ngo /nope\nquit\n"))
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "== home (/) ==")
	assert.Contains(t, got, "== shop (/shop) ==")
	assert.Equal(t, 2, strings.Count(got, "== about (/about) =="))
	assert.Contains(t, got, "error: "+nav.ErrNoHistory.Error())
	assert.Contains(t, got, "== not-found (/nope) ==")
	assert.Equal(t, "/nope", sh.router.CurrentPath())
}

func TestShell_CartAndCheckout(t *testing.T) {
	sh, out := newTestShell(t, false)

	err := sh.Run(t.Context(), strings.NewReader("add 1\nadd 2\nadd 1\nrm 2\nadd 99\ncheckout\ncart\ncheckout\n"))
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "Total: ₦115,000")
	assert.Contains(t, got, "Total: ₦90,000")
	assert.Contains(t, got, `error: no product "99"`)
	assert.Equal(t, 1, strings.Count(got, "Open in WhatsApp: https://wa.me/234"))
	assert.Contains(t, got, "Your cart is empty.")
	assert.Contains(t, got, "error: cart is empty")
	assert.Zero(t, sh.cart.Len())
}

func TestShell_CannedRequests(t *testing.T) {
	sh, out := newTestShell(t, false)

	require.NoError(t, sh.exec(t.Context(), "custom-order", ""))
	require.NoError(t, sh.exec(t.Context(), "new-arrivals", ""))

	got := out.String()
	assert.Equal(t, 2, strings.Count(got, "Open in WhatsApp: https://wa.me/2349033564255?text=Hi%21"))
}

func TestShell_Shop(t *testing.T) {
	sh, out := newTestShell(t, false)

	require.NoError(t, sh.exec(t.Context(), "shop", "Perfumes price-high"))
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		assert.Contains(t, line, "(Perfumes)")
	}

	err := sh.exec(t.Context(), "shop", "Shoes")
	assert.ErrorIs(t, err, catalog.ErrUnknownCategory)
}

func TestShell_Ask(t *testing.T) {
	sh, out := newTestShell(t, true)

	require.NoError(t, sh.exec(t.Context(), "ask", "I need a gift"))
	assert.Contains(t, out.String(), "Ellie: Try the gold band.")
}

func TestShell_AskWithoutChat(t *testing.T) {
	sh, _ := newTestShell(t, false)

	err := sh.exec(t.Context(), "ask", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}
