// Package cart keeps a visitor's selected products and persists them after
// every change.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"abzellie.com/storefront/internal/catalog"
	"abzellie.com/storefront/internal/store"
)

// StorageKey is where the cart snapshot lives in the visitor's storage.
const StorageKey = "abz_cart"

type Line struct {
	catalog.Product
	Quantity int `json:"quantity"`
}

// Subtotal is price × quantity for the line.
func (l Line) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

// EventKind describes why subscribers were notified.
type EventKind string

// EventOpen asks the presentation layer to show the cart.
const EventOpen EventKind = "open"

type Event struct {
	Kind    EventKind
	Product catalog.Product
}

type Option func(*Cart)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cart) {
		c.logger = logger
	}
}

// Cart is an ordered list of lines with at most one line per product id.
// It is safe for concurrent use.
type Cart struct {
	mu      sync.Mutex
	store   store.Store
	lines   []Line
	logger  *slog.Logger
	subs    map[int]func(Event)
	nextSub int
}

// New loads the cart from s. A missing snapshot gives an empty cart, and so
// does a corrupt one; only a storage read failure is returned as an error.
func New(ctx context.Context, s store.Store, opts ...Option) (*Cart, error) {
	c := &Cart{
		store:  s,
		logger: slog.Default(),
		subs:   make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}

	raw, found, err := s.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart snapshot: %w", err)
	}
	if found {
		c.lines = c.decode(raw)
	}
	return c, nil
}

func (c *Cart) decode(raw string) []Line {
	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		c.logger.Warn("discarding corrupt cart snapshot", "error", err)
		return nil
	}

	// Repair snapshots that break the line invariants.
	index := make(map[string]int, len(lines))
	result := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.ID == "" || l.Quantity < 1 {
			c.logger.Warn("dropping invalid cart line", "product_id", l.ID, "quantity", l.Quantity)
			continue
		}
		if i, dup := index[l.ID]; dup {
			result[i].Quantity += l.Quantity
			continue
		}
		index[l.ID] = len(result)
		result = append(result, l)
	}
	return result
}

// AddItem puts one more unit of product in the cart and then tells every
// subscriber to open the cart view.
func (c *Cart) AddItem(ctx context.Context, product catalog.Product) error {
	c.mu.Lock()

	next := make([]Line, len(c.lines), len(c.lines)+1)
	copy(next, c.lines)

	found := false
	for i := range next {
		if next[i].ID == product.ID {
			next[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		next = append(next, Line{Product: product, Quantity: 1})
	}

	if err := c.commit(ctx, next); err != nil {
		c.mu.Unlock()
		return err
	}
	subs := c.subscribers()
	c.mu.Unlock()

	ev := Event{Kind: EventOpen, Product: product}
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

// RemoveItem deletes the line for productID. Removing an absent product is
// a no-op and does not touch storage.
func (c *Cart) RemoveItem(ctx context.Context, productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, l := range c.lines {
		if l.ID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	next := make([]Line, 0, len(c.lines)-1)
	next = append(next, c.lines[:idx]...)
	next = append(next, c.lines[idx+1:]...)
	return c.commit(ctx, next)
}

// Clear empties the cart by removing its snapshot. It is called once the
// order has been handed off for checkout.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to delete cart snapshot: %w", err)
	}
	c.lines = []Line{}
	c.logger.Debug("cart cleared")
	return nil
}

// commit persists next and only then makes it the current state. Callers
// hold c.mu.
func (c *Cart) commit(ctx context.Context, next []Line) error {
	if next == nil {
		next = []Line{}
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}
	if err := c.store.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist cart snapshot: %w", err)
	}
	c.lines = next
	c.logger.Debug("cart persisted", "lines", len(next))
	return nil
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Line(nil), c.lines...)
}

// Len is the number of distinct products in the cart.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.lines)
}

// Total is the sum of price × quantity over all lines.
func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, l := range c.lines {
		total += l.Subtotal()
	}
	return total
}

// ItemCount is the number of units in the cart, shown on the cart badge.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, l := range c.lines {
		count += l.Quantity
	}
	return count
}

// OnOpen registers fn to be called after every successful AddItem.
func (c *Cart) OnOpen(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Cart) subscribers() []func(Event) {
	fns := make([]func(Event), 0, len(c.subs))
	for i := 0; i < c.nextSub; i++ {
		if fn, ok := c.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}
