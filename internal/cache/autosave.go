package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"slidecast/internal/backend"
	"slidecast/internal/logging"
)

// Autosaver coalesces rapid edits to a segment into one backend update per
// quiet period. Each Queue call for a key restarts that key's timer; the
// merged patch is flushed through Store.UpdateSegment once the delay elapses
// with no further edits.
type Autosaver struct {
	store  *Store
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	timers  map[int64]*time.Timer
	pending map[int64]backend.SegmentPatch
}

// NewAutosaver wraps a store with debounced segment updates.
func NewAutosaver(store *Store, delay time.Duration, logger *slog.Logger) *Autosaver {
	if delay <= 0 {
		delay = 750 * time.Millisecond
	}
	return &Autosaver{
		store:   store,
		delay:   delay,
		logger:  logging.WithComponent(logger, "autosave"),
		timers:  map[int64]*time.Timer{},
		pending: map[int64]backend.SegmentPatch{},
	}
}

// Queue records an edit intent for a segment and restarts its quiet-period
// timer. Later fields override earlier ones within the same pending patch.
func (a *Autosaver) Queue(segmentID int64, patch backend.SegmentPatch) {
	if patch.IsZero() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	merged := a.pending[segmentID]
	mergePatch(&merged, patch)
	a.pending[segmentID] = merged

	if timer, ok := a.timers[segmentID]; ok {
		timer.Stop()
	}
	a.timers[segmentID] = time.AfterFunc(a.delay, func() {
		a.flushKey(segmentID)
	})
}

// Flush immediately saves every pending patch, cancelling outstanding timers.
func (a *Autosaver) Flush() {
	a.mu.Lock()
	ids := make([]int64, 0, len(a.pending))
	for id := range a.pending {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	for _, id := range ids {
		a.flushKey(id)
	}
}

// Stop cancels all timers and drops pending edits without saving them.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, timer := range a.timers {
		timer.Stop()
		delete(a.timers, id)
	}
	a.pending = map[int64]backend.SegmentPatch{}
}

// Pending reports how many segments have unsaved edits.
func (a *Autosaver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *Autosaver) flushKey(segmentID int64) {
	a.mu.Lock()
	patch, ok := a.pending[segmentID]
	if ok {
		delete(a.pending, segmentID)
	}
	if timer, exists := a.timers[segmentID]; exists {
		timer.Stop()
		delete(a.timers, segmentID)
	}
	a.mu.Unlock()

	if !ok {
		return
	}
	if err := a.store.UpdateSegment(context.Background(), segmentID, patch); err != nil {
		a.logger.Warn("autosave failed; edit rolled back",
			logging.Int64(logging.FieldSegmentID, segmentID),
			logging.Error(err),
		)
	}
}

func mergePatch(dst *backend.SegmentPatch, src backend.SegmentPatch) {
	if src.TextContent != nil {
		dst.TextContent = src.TextContent
	}
	if src.ImagePrompt != nil {
		dst.ImagePrompt = src.ImagePrompt
	}
	if src.IsLocked != nil {
		dst.IsLocked = src.IsLocked
	}
}
