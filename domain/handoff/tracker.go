package handoff

import (
	"context"
	"sync"
)

// Tracker is a registry of in-flight handoffs. Hosts use it to cancel
// everything on shutdown and to wait for pending submissions to drain.
type Tracker struct {
	mu       sync.Mutex
	inflight map[string]*trackedHandoff
	wg       sync.WaitGroup
}

type trackedHandoff struct {
	cancel func()
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{inflight: make(map[string]*trackedHandoff)}
}

// Register records an in-flight handoff under id. The returned unregister
// function is idempotent. Re-registering an id cancels the previous entry.
func (t *Tracker) Register(id string, cancel func()) (unregister func()) {
	if t == nil {
		return func() {}
	}
	entry := &trackedHandoff{cancel: cancel}

	t.mu.Lock()
	if t.inflight == nil {
		t.inflight = make(map[string]*trackedHandoff)
	}
	old := t.inflight[id]
	t.inflight[id] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		if old.cancel != nil {
			old.cancel()
		}
		t.unregister(id, old)
	}
	return func() { t.unregister(id, entry) }
}

func (t *Tracker) unregister(id string, entry *trackedHandoff) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.inflight != nil && t.inflight[id] == entry {
			delete(t.inflight, id)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

// Count returns the number of in-flight handoffs.
func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// CancelAll invokes the cancel function of every in-flight handoff.
func (t *Tracker) CancelAll() {
	if t == nil {
		return
	}
	t.mu.Lock()
	entries := make([]*trackedHandoff, 0, len(t.inflight))
	for _, e := range t.inflight {
		entries = append(entries, e)
	}
	t.mu.Unlock()
	for _, e := range entries {
		if e.cancel != nil {
			e.cancel()
		}
	}
}

// Wait blocks until every registered handoff has unregistered or ctx expires.
func (t *Tracker) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
