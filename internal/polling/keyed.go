package polling

import (
	"context"
	"sync"
)

type pollEntry struct {
	cancel context.CancelFunc
}

// Keyed hands out one poll context per logical job key. Starting a new poll
// for a key first cancels any prior poll for the same key, so two loops never
// race against the same job.
type Keyed struct {
	mu     sync.Mutex
	active map[string]*pollEntry
}

// NewKeyed returns an empty registry.
func NewKeyed() *Keyed {
	return &Keyed{active: map[string]*pollEntry{}}
}

// Begin derives a context for polling the given key, cancelling any poll
// already registered under it. The returned stop function cancels the derived
// context and clears the registration; calling it more than once is safe.
func (k *Keyed) Begin(ctx context.Context, key string) (context.Context, func()) {
	pollCtx, cancel := context.WithCancel(ctx)
	entry := &pollEntry{cancel: cancel}

	k.mu.Lock()
	if prior, ok := k.active[key]; ok {
		prior.cancel()
	}
	k.active[key] = entry
	k.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			k.mu.Lock()
			if current, ok := k.active[key]; ok && current == entry {
				delete(k.active, key)
			}
			k.mu.Unlock()
		})
	}
	return pollCtx, stop
}

// Stop cancels the poll registered under key, if any.
func (k *Keyed) Stop(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if entry, ok := k.active[key]; ok {
		entry.cancel()
		delete(k.active, key)
	}
}

// StopAll cancels every registered poll.
func (k *Keyed) StopAll() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, entry := range k.active {
		entry.cancel()
		delete(k.active, key)
	}
}

// Len reports the number of registered polls.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.active)
}
