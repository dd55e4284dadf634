// Package nav implements path-based navigation over a pluggable history
// environment.
package nav

import (
	"log/slog"
	"sync"
)

// Environment is what the router needs from its host: a location, a way to
// push history entries, a full-load fallback and back/forward notifications.
type Environment interface {
	// Location reports the current path; ok is false when the host has no
	// notion of a location (e.g. a non-interactive render).
	Location() (path string, ok bool)
	// PushState adds a new history entry for path without reloading.
	PushState(path string) error
	// Load performs a full page load of path.
	Load(path string)
	ScrollToTop()
	// OnPopState registers fn for back/forward navigation and returns a
	// function that removes it.
	OnPopState(fn func(path string)) (remove func())
}

type RouterOption func(*Router)

func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// Router is the single source of truth for which page is shown.
type Router struct {
	mu      sync.RWMutex
	env     Environment
	path    string
	logger  *slog.Logger
	subs    map[int]func(string)
	nextSub int
	stopPop func()
}

// NewRouter reads the initial location from env (falling back to RootPath)
// and starts listening for pop events until Close is called.
func NewRouter(env Environment, opts ...RouterOption) *Router {
	r := &Router{
		env:    env,
		path:   RootPath,
		logger: slog.Default(),
		subs:   make(map[int]func(string)),
	}
	for _, opt := range opts {
		opt(r)
	}

	if path, ok := env.Location(); ok && path != "" {
		r.path = path
	}
	r.stopPop = env.OnPopState(r.handlePop)
	return r
}

// Close detaches the router from the environment's pop events.
func (r *Router) Close() {
	r.mu.Lock()
	stop := r.stopPop
	r.stopPop = nil
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (r *Router) CurrentPath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

func (r *Router) CurrentPage() PageID {
	return Resolve(r.CurrentPath())
}

// Navigate pushes a history entry for path and makes it current. When the
// push fails the router falls back to a full load of path, so the current
// path still matches what is displayed.
func (r *Router) Navigate(path string) {
	if err := r.env.PushState(path); err != nil {
		r.logger.Error("history push failed, falling back to full load", "path", path, "error", err)
		r.env.Load(path)
	}
	r.env.ScrollToTop()
	r.setPath(path)
}

func (r *Router) handlePop(path string) {
	if path == "" {
		path = RootPath
	}
	r.setPath(path)
}

func (r *Router) setPath(path string) {
	r.mu.Lock()
	r.path = path
	subs := make([]func(string), 0, len(r.subs))
	for i := 0; i < r.nextSub; i++ {
		if fn, ok := r.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	r.mu.Unlock()

	r.logger.Debug("navigated", "path", path, "page", Resolve(path))
	for _, fn := range subs {
		fn(path)
	}
}

// Subscribe calls fn with the new path after every change.
func (r *Router) Subscribe(fn func(path string)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}
