package cache_test

import (
	"testing"
	"time"

	"slidecast/internal/backend"
	"slidecast/internal/cache"
)

func countCalls(calls []string, operation string) int {
	n := 0
	for _, call := range calls {
		if call == operation {
			n++
		}
	}
	return n
}

func TestAutosaverCoalescesRapidEdits(t *testing.T) {
	store, fake := newStore(t)
	saver := cache.NewAutosaver(store, 30*time.Millisecond, nil)
	defer saver.Stop()

	saver.Queue(2, backend.SegmentPatch{TextContent: strPtr("draft one")})
	saver.Queue(2, backend.SegmentPatch{TextContent: strPtr("draft two")})
	saver.Queue(2, backend.SegmentPatch{TextContent: strPtr("final draft")})

	deadline := time.Now().Add(2 * time.Second)
	for saver.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if saver.Pending() != 0 {
		t.Fatal("pending edit never flushed")
	}

	if got := countCalls(fake.Calls(), "update_segment"); got != 1 {
		t.Fatalf("expected a single coalesced update, got %d", got)
	}
	segment, _ := store.Segment(2)
	if segment.TextContent != "final draft" {
		t.Fatalf("expected the last edit to win, got %q", segment.TextContent)
	}
}

func TestAutosaverFlushSavesImmediately(t *testing.T) {
	store, fake := newStore(t)
	saver := cache.NewAutosaver(store, time.Hour, nil)
	defer saver.Stop()

	saver.Queue(1, backend.SegmentPatch{TextContent: strPtr("flushed")})
	saver.Queue(2, backend.SegmentPatch{ImagePrompt: strPtr("a sunrise")})
	saver.Flush()

	if saver.Pending() != 0 {
		t.Fatalf("expected no pending edits after flush, got %d", saver.Pending())
	}
	if got := countCalls(fake.Calls(), "update_segment"); got != 2 {
		t.Fatalf("expected one update per edited segment, got %d", got)
	}
	segment, _ := store.Segment(1)
	if segment.TextContent != "flushed" {
		t.Fatalf("flush did not persist the edit: %+v", segment)
	}
}

func TestAutosaverStopDropsPendingEdits(t *testing.T) {
	store, fake := newStore(t)
	saver := cache.NewAutosaver(store, 20*time.Millisecond, nil)

	saver.Queue(2, backend.SegmentPatch{TextContent: strPtr("abandoned")})
	saver.Stop()

	time.Sleep(60 * time.Millisecond)
	if got := countCalls(fake.Calls(), "update_segment"); got != 0 {
		t.Fatalf("expected no updates after stop, got %d", got)
	}
	segment, _ := store.Segment(2)
	if segment.TextContent != "Second line" {
		t.Fatalf("stop must not persist edits: %+v", segment)
	}
}

func TestAutosaverMergesPatchFields(t *testing.T) {
	store, fake := newStore(t)
	saver := cache.NewAutosaver(store, time.Hour, nil)
	defer saver.Stop()

	saver.Queue(2, backend.SegmentPatch{TextContent: strPtr("merged text")})
	saver.Queue(2, backend.SegmentPatch{ImagePrompt: strPtr("city skyline")})
	saver.Flush()

	if got := countCalls(fake.Calls(), "update_segment"); got != 1 {
		t.Fatalf("expected one merged update, got %d", got)
	}
	segment, _ := store.Segment(2)
	if segment.TextContent != "merged text" || segment.ImagePrompt != "city skyline" {
		t.Fatalf("expected both fields in the merged patch: %+v", segment)
	}
}
