package cache

// EventKind labels a cache change notification.
type EventKind int

const (
	// EventProjectLoaded fires after FetchProject replaces the snapshot.
	EventProjectLoaded EventKind = iota
	// EventProjectUpdated fires when project settings change.
	EventProjectUpdated
	// EventSegmentsChanged fires when the segment list is republished.
	EventSegmentsChanged
	// EventLoadingChanged fires when the loading flag flips.
	EventLoadingChanged
	// EventErrorChanged fires when the cache error message changes.
	EventErrorChanged
	// EventReset fires when the cache is cleared.
	EventReset
)

// Event describes one cache change. SegmentID is set when the change is
// scoped to a single segment, zero otherwise.
type Event struct {
	Kind      EventKind
	SegmentID int64
}

// Subscribe registers a change observer and returns its removal function.
// Observers are invoked synchronously after the state change is published;
// they must not call back into mutating store methods.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(event Event) {
	s.subMu.Lock()
	observers := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		observers = append(observers, fn)
	}
	s.subMu.Unlock()

	for _, fn := range observers {
		fn(event)
	}
}
