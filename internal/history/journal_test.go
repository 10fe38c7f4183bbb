package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"slidecast/internal/history"
	"slidecast/internal/renderqueue"
	"slidecast/internal/testsupport"
)

func openJournal(t *testing.T) *history.Journal {
	t.Helper()
	journal, err := history.Open(testsupport.NewConfig(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })
	return journal
}

func TestRecordAndList(t *testing.T) {
	journal := openJournal(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	items := []renderqueue.Item{
		{ID: uuid.New(), ProjectID: 1, Title: "First", Status: renderqueue.StatusCompleted, Progress: 100, OutputURL: "videos/1.mp4", StartedAt: started, FinishedAt: started.Add(90 * time.Second)},
		{ID: uuid.New(), ProjectID: 2, Title: "Second", Status: renderqueue.StatusFailed, Error: "ffmpeg exited with code 1"},
	}
	batchID := uuid.NewString()
	for _, item := range items {
		if err := journal.Record(ctx, batchID, item); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := journal.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].ProjectID != 2 || entries[0].Status != string(renderqueue.StatusFailed) {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}
	if entries[0].Error != "ffmpeg exited with code 1" {
		t.Fatalf("expected failure message preserved, got %q", entries[0].Error)
	}
	if entries[1].BatchID != batchID || entries[1].OutputURL != "videos/1.mp4" {
		t.Fatalf("unexpected oldest entry: %+v", entries[1])
	}
	if !entries[1].StartedAt.Equal(started) {
		t.Fatalf("expected started_at round-trip, got %v", entries[1].StartedAt)
	}
	if entries[1].RecordedAt.IsZero() {
		t.Fatal("expected recorded_at stamped on insert")
	}
}

func TestListHonorsLimit(t *testing.T) {
	journal := openJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		item := renderqueue.Item{ID: uuid.New(), ProjectID: int64(i + 1), Status: renderqueue.StatusCompleted, Progress: 100}
		if err := journal.Record(ctx, uuid.NewString(), item); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := journal.List(ctx, 3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ProjectID != 5 {
		t.Fatalf("expected newest entry first, got %+v", entries[0])
	}
}

func TestClearEmptiesJournal(t *testing.T) {
	journal := openJournal(t)
	ctx := context.Background()

	item := renderqueue.Item{ID: uuid.New(), ProjectID: 1, Status: renderqueue.StatusCancelled}
	if err := journal.Record(ctx, uuid.NewString(), item); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := journal.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	entries, err := journal.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty journal, got %d entries", len(entries))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	if _, err := second.List(context.Background(), 0); err != nil {
		t.Fatalf("List after reopen failed: %v", err)
	}
}
