package upload

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrAlreadyPolling is returned when a session for the target is running.
var ErrAlreadyPolling = errors.New("target is already being polled")

// Tracker runs poll sessions in the background, at most one per target.
type Tracker struct {
	poller *Poller

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewTracker creates a tracker that polls with p.
func NewTracker(p *Poller) *Tracker {
	return &Tracker{
		poller: p,
		active: make(map[string]context.CancelFunc),
	}
}

// Start begins polling target. The returned channel receives the result
// once and is then closed. Cancelling ctx or calling Cancel ends the session.
func (t *Tracker) Start(ctx context.Context, target string, onUpdate UpdateFunc) (<-chan Result, error) {
	t.mu.Lock()
	if _, ok := t.active[target]; ok {
		t.mu.Unlock()
		return nil, ErrAlreadyPolling
	}
	ctx, cancel := context.WithCancel(ctx)
	t.active[target] = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	out := make(chan Result, 1)
	go func() {
		defer t.wg.Done()
		defer close(out)
		defer func() {
			t.mu.Lock()
			delete(t.active, target)
			t.mu.Unlock()
			cancel()
		}()

		out <- t.poller.Poll(ctx, target, onUpdate)
	}()
	return out, nil
}

// Cancel stops the session for target and reports whether one was running.
func (t *Tracker) Cancel(target string) bool {
	t.mu.Lock()
	cancel, ok := t.active[target]
	t.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active returns the targets being polled, sorted.
func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	targets := make([]string, 0, len(t.active))
	for target := range t.active {
		targets = append(targets, target)
	}
	slices.Sort(targets)
	return targets
}

// Close cancels every session and waits for them to finish.
func (t *Tracker) Close() {
	t.mu.Lock()
	for _, cancel := range t.active {
		cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
}
