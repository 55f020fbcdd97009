package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute
)

// Limiter bounds how many creations one identity may make per window.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Admit reports whether an attempt at now fits the identity's window and
	// counts it if so.
	Admit(ctx context.Context, identity string, now time.Time) (bool, error)
	Reset(ctx context.Context, identity string) error
}

// Memory is a sliding-window-log limiter held in process memory.
// The map lock is only held for lookups; each identity's window has its own
// lock so checks for unrelated identities never wait on each other.
type Memory struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	mu   sync.Mutex
	hits []time.Time // ascending
	dead bool        // set by Sweep after removal from the map
}

func NewMemory(limit int, win time.Duration) *Memory {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if win <= 0 {
		win = DefaultWindow
	}
	return &Memory{
		limit:   limit,
		window:  win,
		windows: make(map[string]*window),
	}
}

func (l *Memory) Admit(_ context.Context, identity string, now time.Time) (bool, error) {
	for {
		w := l.get(identity)

		w.mu.Lock()
		if w.dead {
			// Swept between lookup and lock; take the fresh one.
			w.mu.Unlock()
			continue
		}
		w.prune(now.Add(-l.window))
		if len(w.hits) >= l.limit {
			w.mu.Unlock()
			return false, nil
		}
		w.hits = append(w.hits, now)
		w.mu.Unlock()
		return true, nil
	}
}

func (l *Memory) Reset(_ context.Context, identity string) error {
	l.mu.Lock()
	w, ok := l.windows[identity]
	delete(l.windows, identity)
	l.mu.Unlock()

	if ok {
		w.mu.Lock()
		w.dead = true
		w.mu.Unlock()
	}
	return nil
}

// Sweep drops identities with no hits inside the window ending at now and
// returns how many were removed.
func (l *Memory) Sweep(now time.Time) int {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, w := range l.windows {
		w.mu.Lock()
		w.prune(cutoff)
		if len(w.hits) == 0 {
			w.dead = true
			delete(l.windows, id)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (l *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Sweep(now)
		}
	}
}

func (l *Memory) get(identity string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok {
		w = &window{}
		l.windows[identity] = w
	}
	return w
}

// prune drops hits at or before cutoff.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}

// Compile-time check: *Memory implements Limiter.
var _ Limiter = (*Memory)(nil)
