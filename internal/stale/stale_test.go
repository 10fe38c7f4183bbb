package stale_test

import (
	"reflect"
	"testing"

	"slidecast/internal/stale"
)

func snapshotPtr(s *stale.Set) uintptr {
	return reflect.ValueOf(s.Snapshot()).Pointer()
}

func TestMarkAndClearTrackMembership(t *testing.T) {
	set := stale.NewSet()
	if set.Has(1) {
		t.Fatal("expected empty set")
	}

	set.Mark(1)
	set.Mark(2)
	if !set.Has(1) || !set.Has(2) || set.Len() != 2 {
		t.Fatalf("unexpected membership after marks: len=%d", set.Len())
	}

	set.Clear(1)
	if set.Has(1) || !set.Has(2) {
		t.Fatal("expected only id 2 after clear")
	}
}

func TestMarkIsIdempotent(t *testing.T) {
	set := stale.NewSet()
	set.Mark(5)
	before := snapshotPtr(set)
	set.Mark(5)
	if snapshotPtr(set) != before {
		t.Fatal("marking an existing member must keep the snapshot identity")
	}
	if set.Len() != 1 {
		t.Fatalf("expected single member, got %d", set.Len())
	}
}

func TestClearNonMemberKeepsIdentity(t *testing.T) {
	set := stale.NewSet()
	set.Mark(3)
	before := snapshotPtr(set)

	set.Clear(99)
	if snapshotPtr(set) != before {
		t.Fatal("clearing a non-member must not allocate a new snapshot")
	}

	set.Clear(3)
	if snapshotPtr(set) == before {
		t.Fatal("clearing a member must install a fresh snapshot")
	}
}

func TestSnapshotReflectsLatestCallPerID(t *testing.T) {
	set := stale.NewSet()
	ops := []struct {
		mark bool
		id   int64
	}{
		{true, 1}, {true, 2}, {false, 1}, {true, 3}, {false, 2}, {true, 1},
	}
	for _, op := range ops {
		if op.mark {
			set.Mark(op.id)
		} else {
			set.Clear(op.id)
		}
	}
	for id, want := range map[int64]bool{1: true, 2: false, 3: true} {
		if set.Has(id) != want {
			t.Fatalf("id %d: expected membership %v", id, want)
		}
	}
}

func TestResetEmptiesSet(t *testing.T) {
	set := stale.NewSet()
	set.Mark(1)
	set.Mark(2)
	set.Reset()
	if set.Len() != 0 {
		t.Fatalf("expected empty set after reset, got %d", set.Len())
	}

	before := snapshotPtr(set)
	set.Reset()
	if snapshotPtr(set) != before {
		t.Fatal("resetting an empty set must keep the snapshot identity")
	}
}
