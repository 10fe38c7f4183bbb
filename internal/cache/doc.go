// Package cache holds the in-memory snapshot of the active project and its
// segments, and owns every mutation path against it.
//
// Segment and project setting updates are optimistic with whole-snapshot
// rollback; deletes, image changes, and reorders are pessimistic and only
// land after backend confirmation. The store publishes immutable segment
// slices so observers can use reference identity to skip redundant work, and
// notifies subscribers synchronously after each published change. Editing the
// narration text of a segment that already has audio marks it stale in the
// shared staleness set within the same mutation.
package cache
