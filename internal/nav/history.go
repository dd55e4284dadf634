package nav

import (
	"errors"
	"sync"
)

var ErrNoHistory = errors.New("no history entry in that direction")

// MemoryHistory is an in-process Environment with a browser-like
// back/forward stack.
type MemoryHistory struct {
	mu       sync.Mutex
	entries  []string
	index    int
	loads    []string
	scrolls  int
	pushErr  func(path string) error
	handlers map[int]func(string)
	nextID   int
}

func NewMemoryHistory(initial string) *MemoryHistory {
	if initial == "" {
		initial = RootPath
	}
	return &MemoryHistory{
		entries:  []string{initial},
		handlers: make(map[int]func(string)),
	}
}

// FailPush makes PushState return the error produced by fn; nil restores
// normal behaviour.
func (h *MemoryHistory) FailPush(fn func(path string) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushErr = fn
}

func (h *MemoryHistory) Location() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index], true
}

// PushState drops any forward entries and appends path.
func (h *MemoryHistory) PushState(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pushErr != nil {
		if err := h.pushErr(path); err != nil {
			return err
		}
	}
	h.entries = append(h.entries[:h.index+1], path)
	h.index++
	return nil
}

// Load replaces the whole history with a fresh document at path, like a
// full page load to a new URL.
func (h *MemoryHistory) Load(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries[:h.index+1], path)
	h.index++
	h.loads = append(h.loads, path)
}

func (h *MemoryHistory) ScrollToTop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scrolls++
}

func (h *MemoryHistory) OnPopState(fn func(string)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.handlers[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.handlers, id)
	}
}

// Back moves one entry back and fires a pop event.
func (h *MemoryHistory) Back() error {
	return h.move(-1)
}

// Forward moves one entry forward and fires a pop event.
func (h *MemoryHistory) Forward() error {
	return h.move(1)
}

func (h *MemoryHistory) move(delta int) error {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return ErrNoHistory
	}
	h.index = next
	path := h.entries[next]
	handlers := make([]func(string), 0, len(h.handlers))
	for i := 0; i < h.nextID; i++ {
		if fn, ok := h.handlers[i]; ok {
			handlers = append(handlers, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(path)
	}
	return nil
}

// Entries returns the history stack and the index of the current entry.
func (h *MemoryHistory) Entries() ([]string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...), h.index
}

// Loads lists the paths that went through the full-load fallback.
func (h *MemoryHistory) Loads() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.loads...)
}

func (h *MemoryHistory) Scrolls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrolls
}

// StaticEnvironment has no location and no history; it stands in for
// non-interactive renders. Navigation through it is accepted and ignored.
type StaticEnvironment struct{}

func (StaticEnvironment) Location() (string, bool) { return "", false }

func (StaticEnvironment) PushState(string) error { return nil }

func (StaticEnvironment) Load(string) {}

func (StaticEnvironment) ScrollToTop() {}

func (StaticEnvironment) OnPopState(func(string)) (remove func()) { return func() {} }
