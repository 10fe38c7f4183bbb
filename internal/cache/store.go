package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"slidecast/internal/backend"
	"slidecast/internal/logging"
	"slidecast/internal/stale"
)

// Backend is the slice of the API client the cache depends on.
type Backend interface {
	FetchProject(ctx context.Context, id int64) (*backend.Project, error)
	FetchSegments(ctx context.Context, projectID int64) ([]backend.Segment, error)
	FetchSegment(ctx context.Context, id int64) (*backend.Segment, error)
	UpdateSegment(ctx context.Context, id int64, patch backend.SegmentPatch) (*backend.Segment, error)
	UpdateProject(ctx context.Context, id int64, patch backend.ProjectPatch) (*backend.Project, error)
	DeleteSegment(ctx context.Context, id int64) error
	UploadImage(ctx context.Context, segmentID int64, filePath string) error
	RemoveImage(ctx context.Context, segmentID int64) error
	ReorderSegments(ctx context.Context, projectID int64, segmentIDs []int64) error
}

// Store is the single source of truth for the active project and its segments.
//
// Reads return the current published state; all mutation goes through the
// methods here. Segment updates are optimistic: the local merge is visible
// before the backend request is issued and rolled back wholesale on failure.
// Optimistic mutations are serialized by an internal mutex, which is what
// makes whole-list rollback safe: a rollback can never discard another
// in-flight update's optimistic state.
type Store struct {
	backend Backend
	logger  *slog.Logger
	stale   *stale.Set

	// mutationMu serializes optimistic update round-trips.
	mutationMu sync.Mutex

	mu       sync.RWMutex
	project  *backend.Project
	segments []backend.Segment
	loading  bool
	lastErr  string

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// NewStore constructs an empty cache around a backend client. The staleness
// set is shared with the audio generation orchestrator; pass the same instance
// to both.
func NewStore(api Backend, staleSet *stale.Set, logger *slog.Logger) *Store {
	if staleSet == nil {
		staleSet = stale.NewSet()
	}
	return &Store{
		backend: api,
		logger:  logging.WithComponent(logger, "cache"),
		stale:   staleSet,
		subs:    map[int]func(Event){},
	}
}

// Project returns the cached project, or nil when none is loaded.
func (s *Store) Project() *backend.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil {
		return nil
	}
	copied := *s.project
	return &copied
}

// Segments returns the published segment list. The returned slice is replaced,
// never mutated in place, so callers may compare identity across calls to skip
// redundant refreshes. Callers must not modify it.
func (s *Store) Segments() []backend.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.segments
}

// Segment returns a copy of the cached segment with the given id.
func (s *Store) Segment(id int64) (backend.Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, segment := range s.segments {
		if segment.ID == id {
			return segment, true
		}
	}
	return backend.Segment{}, false
}

// Loading reports whether a project fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last user-visible cache error, empty when healthy.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Stale returns the staleness set shared with the audio orchestrator.
func (s *Store) Stale() *stale.Set {
	return s.stale
}

// FetchProject replaces the cached project and segments with a fresh snapshot.
// On failure the cache is left unchanged apart from the error message.
func (s *Store) FetchProject(ctx context.Context, id int64) error {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	previousID := int64(0)
	if s.project != nil {
		previousID = s.project.ID
	}
	s.mu.Unlock()
	s.notify(Event{Kind: EventLoadingChanged})

	project, err := s.backend.FetchProject(ctx, id)
	var segments []backend.Segment
	if err == nil {
		segments, err = s.backend.FetchSegments(ctx, id)
	}

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = backend.Message(err)
		s.mu.Unlock()
		s.notify(Event{Kind: EventErrorChanged})
		return fmt.Errorf("fetch project %d: %w", id, err)
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].SequenceIndex < segments[j].SequenceIndex
	})
	s.project = project
	s.segments = segments
	s.mu.Unlock()

	if previousID != 0 && previousID != id {
		s.stale.Reset()
	}

	s.logger.Debug("project loaded",
		logging.Int64(logging.FieldProjectID, id),
		logging.Int("segments", len(segments)),
	)
	s.notify(Event{Kind: EventProjectLoaded})
	return nil
}

// Reset clears the project, segments, loading flag, error, and staleness set.
func (s *Store) Reset() {
	s.mu.Lock()
	s.project = nil
	s.segments = nil
	s.loading = false
	s.lastErr = ""
	s.mu.Unlock()

	s.stale.Reset()
	s.notify(Event{Kind: EventReset})
}

func (s *Store) setError(message string) {
	s.mu.Lock()
	s.lastErr = message
	s.mu.Unlock()
	s.notify(Event{Kind: EventErrorChanged})
}

// replaceSegment publishes a new segment list with one record swapped by id.
// Returns false when the id is no longer cached.
func (s *Store) replaceSegment(updated backend.Segment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, segment := range s.segments {
		if segment.ID == updated.ID {
			next := make([]backend.Segment, len(s.segments))
			copy(next, s.segments)
			next[i] = updated
			s.segments = next
			return true
		}
	}
	return false
}
