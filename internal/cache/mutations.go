package cache

import (
	"context"
	"errors"
	"fmt"

	"slidecast/internal/backend"
	"slidecast/internal/logging"
)

// ErrSegmentLocked is returned when a mutation targets a locked segment.
var ErrSegmentLocked = errors.New("segment is locked")

// ErrNotCached is returned when a mutation targets a segment the cache does
// not hold.
var ErrNotCached = errors.New("segment not in cache")

// UpdateSegment optimistically merges the patch into the cached segment, then
// issues the backend update. On success the segment is replaced with the
// authoritative server record; on failure the entire segment list reverts to
// its pre-mutation snapshot and the cache error is set.
//
// When the patch includes text_content and the target segment has audio, the
// segment is marked stale synchronously inside the optimistic merge, before
// the network request — no observer can see fresh audio against changed text.
func (s *Store) UpdateSegment(ctx context.Context, id int64, patch backend.SegmentPatch) error {
	if patch.IsZero() {
		return nil
	}

	s.mutationMu.Lock()
	defer s.mutationMu.Unlock()

	s.mu.Lock()
	index := -1
	for i, segment := range s.segments {
		if segment.ID == id {
			index = i
			break
		}
	}
	if index == -1 {
		s.mu.Unlock()
		return fmt.Errorf("update segment %d: %w", id, ErrNotCached)
	}
	current := s.segments[index]
	if current.IsLocked && !patch.LockOnly() {
		s.mu.Unlock()
		return fmt.Errorf("update segment %d: %w", id, ErrSegmentLocked)
	}

	snapshot := s.segments
	next := make([]backend.Segment, len(s.segments))
	copy(next, s.segments)
	applySegmentPatch(&next[index], patch)
	s.segments = next

	if patch.TextContent != nil && current.HasAudio() {
		s.stale.Mark(id)
	}
	s.mu.Unlock()
	s.notify(Event{Kind: EventSegmentsChanged, SegmentID: id})

	updated, err := s.backend.UpdateSegment(ctx, id, patch)
	if err != nil {
		s.mu.Lock()
		s.segments = snapshot
		s.lastErr = backend.Message(err)
		s.mu.Unlock()
		s.notify(Event{Kind: EventSegmentsChanged, SegmentID: id})
		s.notify(Event{Kind: EventErrorChanged})
		s.logger.Warn("segment update rejected; rolled back",
			logging.Int64(logging.FieldSegmentID, id),
			logging.Error(err),
		)
		return fmt.Errorf("update segment %d: %w", id, err)
	}

	s.replaceSegment(*updated)
	if !updated.HasAudio() {
		s.stale.Clear(id)
	}
	s.notify(Event{Kind: EventSegmentsChanged, SegmentID: id})
	return nil
}

// UpdateProject optimistically merges the patch into the cached project
// settings, with the same rollback policy as segment updates.
func (s *Store) UpdateProject(ctx context.Context, patch backend.ProjectPatch) error {
	if patch.IsZero() {
		return nil
	}

	s.mutationMu.Lock()
	defer s.mutationMu.Unlock()

	s.mu.Lock()
	if s.project == nil {
		s.mu.Unlock()
		return errors.New("update project: no project loaded")
	}
	id := s.project.ID
	snapshot := *s.project
	merged := snapshot
	applyProjectPatch(&merged, patch)
	s.project = &merged
	s.mu.Unlock()
	s.notify(Event{Kind: EventProjectUpdated})

	updated, err := s.backend.UpdateProject(ctx, id, patch)
	if err != nil {
		s.mu.Lock()
		s.project = &snapshot
		s.lastErr = backend.Message(err)
		s.mu.Unlock()
		s.notify(Event{Kind: EventProjectUpdated})
		s.notify(Event{Kind: EventErrorChanged})
		return fmt.Errorf("update project %d: %w", id, err)
	}

	s.mu.Lock()
	s.project = updated
	s.mu.Unlock()
	s.notify(Event{Kind: EventProjectUpdated})
	return nil
}

// DeleteSegment removes a segment pessimistically: the cache entry survives
// until the backend confirms deletion, so a mid-flight failure cannot
// resurrect a segment whose assets are already gone.
func (s *Store) DeleteSegment(ctx context.Context, id int64) error {
	if _, ok := s.Segment(id); !ok {
		return fmt.Errorf("delete segment %d: %w", id, ErrNotCached)
	}

	if err := s.backend.DeleteSegment(ctx, id); err != nil {
		s.setError(backend.Message(err))
		return fmt.Errorf("delete segment %d: %w", id, err)
	}

	s.mu.Lock()
	next := make([]backend.Segment, 0, len(s.segments))
	for _, segment := range s.segments {
		if segment.ID != id {
			next = append(next, segment)
		}
	}
	for i := range next {
		next[i].SequenceIndex = i
	}
	s.segments = next
	s.mu.Unlock()

	s.stale.Clear(id)
	s.notify(Event{Kind: EventSegmentsChanged, SegmentID: id})
	return nil
}

// UploadImage attaches an image pessimistically: the cache reflects the new
// asset only after the backend confirms it, via a segment refetch.
func (s *Store) UploadImage(ctx context.Context, segmentID int64, filePath string) error {
	if err := s.backend.UploadImage(ctx, segmentID, filePath); err != nil {
		s.setError(backend.Message(err))
		return fmt.Errorf("upload image for segment %d: %w", segmentID, err)
	}
	return s.refetchSegment(ctx, segmentID)
}

// RemoveImage detaches an image pessimistically, mirroring UploadImage.
func (s *Store) RemoveImage(ctx context.Context, segmentID int64) error {
	if err := s.backend.RemoveImage(ctx, segmentID); err != nil {
		s.setError(backend.Message(err))
		return fmt.Errorf("remove image for segment %d: %w", segmentID, err)
	}
	return s.refetchSegment(ctx, segmentID)
}

// Reorder persists a new segment ordering, then re-derives each segment's
// sequence index from its position in segmentIDs. Pessimistic: the local
// order changes only after the backend accepts it.
func (s *Store) Reorder(ctx context.Context, segmentIDs []int64) error {
	s.mu.RLock()
	if s.project == nil {
		s.mu.RUnlock()
		return errors.New("reorder: no project loaded")
	}
	projectID := s.project.ID
	if len(segmentIDs) != len(s.segments) {
		s.mu.RUnlock()
		return fmt.Errorf("reorder: got %d ids for %d segments", len(segmentIDs), len(s.segments))
	}
	s.mu.RUnlock()

	if err := s.backend.ReorderSegments(ctx, projectID, segmentIDs); err != nil {
		s.setError(backend.Message(err))
		return fmt.Errorf("reorder segments: %w", err)
	}

	s.mu.Lock()
	byID := make(map[int64]backend.Segment, len(s.segments))
	for _, segment := range s.segments {
		byID[segment.ID] = segment
	}
	next := make([]backend.Segment, 0, len(segmentIDs))
	for position, id := range segmentIDs {
		segment, ok := byID[id]
		if !ok {
			continue
		}
		segment.SequenceIndex = position
		next = append(next, segment)
	}
	s.segments = next
	s.mu.Unlock()

	s.notify(Event{Kind: EventSegmentsChanged})
	return nil
}

// MergeSegment replaces a cached segment with an authoritative record, used by
// the audio orchestrator after job completion. Unknown ids are ignored.
func (s *Store) MergeSegment(updated backend.Segment) {
	if s.replaceSegment(updated) {
		s.notify(Event{Kind: EventSegmentsChanged, SegmentID: updated.ID})
	}
}

func (s *Store) refetchSegment(ctx context.Context, id int64) error {
	segment, err := s.backend.FetchSegment(ctx, id)
	if err != nil {
		s.setError(backend.Message(err))
		return fmt.Errorf("refetch segment %d: %w", id, err)
	}
	if !segment.HasAudio() {
		s.stale.Clear(id)
	}
	s.MergeSegment(*segment)
	return nil
}

func applySegmentPatch(segment *backend.Segment, patch backend.SegmentPatch) {
	if patch.TextContent != nil {
		segment.TextContent = *patch.TextContent
	}
	if patch.ImagePrompt != nil {
		segment.ImagePrompt = *patch.ImagePrompt
	}
	if patch.IsLocked != nil {
		segment.IsLocked = *patch.IsLocked
	}
}

func applyProjectPatch(project *backend.Project, patch backend.ProjectPatch) {
	if patch.Title != nil {
		project.Title = *patch.Title
	}
	if patch.Resolution != nil {
		project.Resolution = *patch.Resolution
	}
	if patch.Framerate != nil {
		project.Framerate = *patch.Framerate
	}
	if patch.Voice != nil {
		project.Voice = *patch.Voice
	}
	if patch.SubtitlesEnabled != nil {
		project.SubtitlesEnabled = *patch.SubtitlesEnabled
	}
	if patch.WatermarkEnabled != nil {
		project.WatermarkEnabled = *patch.WatermarkEnabled
	}
	if patch.OutroEnabled != nil {
		project.OutroEnabled = *patch.OutroEnabled
	}
}
