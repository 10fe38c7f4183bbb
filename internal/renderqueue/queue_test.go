package renderqueue_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"slidecast/internal/backend"
	"slidecast/internal/renderqueue"
	"slidecast/internal/testsupport"
)

const pollInterval = 5 * time.Millisecond

type memoryJournal struct {
	mu      sync.Mutex
	entries []renderqueue.Item
	batches []string
}

func (j *memoryJournal) Record(_ context.Context, batchID string, item renderqueue.Item) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, item)
	j.batches = append(j.batches, batchID)
	return nil
}

func (j *memoryJournal) Entries() []renderqueue.Item {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]renderqueue.Item{}, j.entries...)
}

func newFake(t *testing.T) *testsupport.FakeBackend {
	t.Helper()
	return testsupport.NewFakeBackend(backend.Project{ID: 1, Title: "First"})
}

func completedScript(outputURL string) []backend.RenderStatus {
	return []backend.RenderStatus{
		{Status: backend.TaskProcessing, Progress: backend.RenderProgress{Percentage: 40, CurrentPhase: "encoding_video", CurrentSegment: 2, TotalSegments: 5}},
		{Status: backend.TaskCompleted, Progress: backend.RenderProgress{Percentage: 97}, OutputURL: outputURL},
	}
}

func itemFor(t *testing.T, queue *renderqueue.Queue, projectID int64) renderqueue.Item {
	t.Helper()
	for _, item := range queue.Items() {
		if item.ProjectID == projectID {
			return item
		}
	}
	t.Fatalf("no item for project %d", projectID)
	return renderqueue.Item{}
}

func TestRunCompletesItemsInOrder(t *testing.T) {
	fake := newFake(t)
	fake.ScriptRender(1, backend.RenderStart{TaskID: "render-1", TotalSegments: 5}, completedScript("videos/1.mp4")...)
	fake.ScriptRender(2, backend.RenderStart{TaskID: "render-2", TotalSegments: 3}, completedScript("videos/2.mp4")...)

	journal := &memoryJournal{}
	queue := renderqueue.New(fake, journal, pollInterval, nil)
	batchID, err := queue.Enqueue(
		renderqueue.Selection{ProjectID: 1, Title: "First"},
		renderqueue.Selection{ProjectID: 2, Title: "Second"},
	)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if batchID == "" || queue.BatchID() != batchID {
		t.Fatalf("expected a stable batch id, got %q / %q", batchID, queue.BatchID())
	}

	if err := queue.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	first := itemFor(t, queue, 1)
	if first.Status != renderqueue.StatusCompleted || first.Progress != 100 || first.OutputURL != "videos/1.mp4" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	second := itemFor(t, queue, 2)
	if second.Status != renderqueue.StatusCompleted || second.OutputURL != "videos/2.mp4" {
		t.Fatalf("unexpected second item: %+v", second)
	}
	if first.TotalSegments != 5 || second.TotalSegments != 3 {
		t.Fatalf("expected total segments from start acknowledgement: %d / %d", first.TotalSegments, second.TotalSegments)
	}

	// Strict sequencing: the second start_render comes after the first
	// render's terminal poll.
	var firstTerminal, secondStart int
	starts := 0
	for i, call := range fake.Calls() {
		if call == "start_render" {
			starts++
			if starts == 2 {
				secondStart = i
			}
		}
		if call == "render_status" {
			firstTerminal = i
		}
		if starts == 2 {
			break
		}
	}
	if secondStart < firstTerminal {
		t.Fatalf("second render started before the first finished: %v", fake.Calls())
	}

	if len(journal.Entries()) != 2 {
		t.Fatalf("expected both items journaled, got %d", len(journal.Entries()))
	}
}

func TestStartFailureMarksItemFailedWithoutPolling(t *testing.T) {
	fake := newFake(t)
	fake.Fail("start_render", fmt.Errorf("%w: start render: project already rendering", backend.ErrConflict))
	fake.ScriptRender(2, backend.RenderStart{TaskID: "render-2", TotalSegments: 2}, completedScript("videos/2.mp4")...)

	queue := renderqueue.New(fake, nil, pollInterval, nil)
	if _, err := queue.Enqueue(renderqueue.Selection{ProjectID: 1, Title: "Busy"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := queue.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	item := itemFor(t, queue, 1)
	if item.Status != renderqueue.StatusFailed {
		t.Fatalf("expected failed, got %+v", item)
	}
	if item.Error != "start render: project already rendering" {
		t.Fatalf("expected human-readable error, got %q", item.Error)
	}
	for _, call := range fake.Calls() {
		if call == "render_status" {
			t.Fatal("a rejected start must never enter the polling phase")
		}
	}
}

func TestFailedRenderCarriesBackendError(t *testing.T) {
	fake := newFake(t)
	fake.ScriptRender(1, backend.RenderStart{TaskID: "render-1", TotalSegments: 4},
		backend.RenderStatus{Status: backend.TaskProcessing, Progress: backend.RenderProgress{Percentage: 10}},
		backend.RenderStatus{Status: backend.TaskFailed, Error: "ffmpeg exited with code 1"},
	)

	queue := renderqueue.New(fake, nil, pollInterval, nil)
	if _, err := queue.Enqueue(renderqueue.Selection{ProjectID: 1, Title: "Broken"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := queue.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	item := itemFor(t, queue, 1)
	if item.Status != renderqueue.StatusFailed || item.Error != "ffmpeg exited with code 1" {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestUnrecoverablePollErrorFailsItemAndAdvances(t *testing.T) {
	fake := newFake(t)
	// Project 1 starts but has no render status to poll: every status fetch
	// reports not-found, a permanent condition.
	fake.ScriptRender(1, backend.RenderStart{TaskID: "render-1", TotalSegments: 4})
	fake.ScriptRender(2, backend.RenderStart{TaskID: "render-2", TotalSegments: 2}, completedScript("videos/2.mp4")...)

	queue := renderqueue.New(fake, nil, pollInterval, nil)
	if _, err := queue.Enqueue(
		renderqueue.Selection{ProjectID: 1, Title: "Lost"},
		renderqueue.Selection{ProjectID: 2, Title: "Second"},
	); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := queue.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	first := itemFor(t, queue, 1)
	if first.Status != renderqueue.StatusFailed {
		t.Fatalf("a permanent poll error must fail the item, got %+v", first)
	}
	if first.Error != "poll render: no render for project 1" {
		t.Fatalf("expected poll failure message, got %q", first.Error)
	}
	if item := itemFor(t, queue, 2); item.Status != renderqueue.StatusCompleted {
		t.Fatalf("the batch must advance past the failed item: %+v", item)
	}
}

func TestRunLogsPhaseAndStatus(t *testing.T) {
	fake := newFake(t)
	fake.ScriptRender(1, backend.RenderStart{TaskID: "render-1", TotalSegments: 5}, completedScript("videos/1.mp4")...)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	queue := renderqueue.New(fake, nil, pollInterval, logger)
	if _, err := queue.Enqueue(renderqueue.Selection{ProjectID: 1, Title: "First"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := queue.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "phase=encoding_video") {
		t.Fatalf("progress logs must carry the render phase:\n%s", output)
	}
	if !strings.Contains(output, "status=completed") {
		t.Fatalf("completion log must carry the item status:\n%s", output)
	}
}

func TestCancelAllStopsCurrentAndSkipsRemaining(t *testing.T) {
	fake := newFake(t)
	fake.ScriptRender(1, backend.RenderStart{TaskID: "render-1", TotalSegments: 5}, completedScript("videos/1.mp4")...)
	// Project 2 never reaches a terminal status on its own.
	fake.ScriptRender(2, backend.RenderStart{TaskID: "render-2", TotalSegments: 5},
		backend.RenderStatus{Status: backend.TaskProcessing, Progress: backend.RenderProgress{Percentage: 20, CurrentPhase: "generating_frames"}},
	)
	fake.ScriptRender(3, backend.RenderStart{TaskID: "render-3", TotalSegments: 5}, completedScript("videos/3.mp4")...)

	queue := renderqueue.New(fake, nil, pollInterval, nil)
	if _, err := queue.Enqueue(
		renderqueue.Selection{ProjectID: 1, Title: "First"},
		renderqueue.Selection{ProjectID: 2, Title: "Second"},
		renderqueue.Selection{ProjectID: 3, Title: "Third"},
	); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- queue.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if itemFor(t, queue, 2).Status == renderqueue.StatusRendering {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if itemFor(t, queue, 2).Status != renderqueue.StatusRendering {
		t.Fatal("second item never started rendering")
	}

	queue.CancelAll()
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if item := itemFor(t, queue, 1); item.Status != renderqueue.StatusCompleted {
		t.Fatalf("completed item must stay completed: %+v", item)
	}
	if item := itemFor(t, queue, 2); item.Status != renderqueue.StatusCancelled {
		t.Fatalf("mid-render item must cancel: %+v", item)
	}
	if item := itemFor(t, queue, 3); item.Status != renderqueue.StatusCancelled {
		t.Fatalf("queued item must cancel without starting: %+v", item)
	}

	cancelled := fake.CancelledRenders()
	if len(cancelled) != 1 || cancelled[0] != 2 {
		t.Fatalf("expected one best-effort server cancel for project 2, got %v", cancelled)
	}
}

func TestCancelAllSwallowsServerCancelFailure(t *testing.T) {
	fake := newFake(t)
	fake.ScriptRender(1, backend.RenderStart{TaskID: "render-1", TotalSegments: 2},
		backend.RenderStatus{Status: backend.TaskProcessing, Progress: backend.RenderProgress{Percentage: 50}},
	)
	fake.Fail("cancel_render", fmt.Errorf("%w: cancel render: job engine unreachable", backend.ErrTransient))

	queue := renderqueue.New(fake, nil, pollInterval, nil)
	if _, err := queue.Enqueue(renderqueue.Selection{ProjectID: 1, Title: "Stuck"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- queue.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if itemFor(t, queue, 1).Status == renderqueue.StatusRendering {
			break
		}
		time.Sleep(time.Millisecond)
	}
	queue.CancelAll()
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if item := itemFor(t, queue, 1); item.Status != renderqueue.StatusCancelled {
		t.Fatalf("client must proceed as cancelled even when the server cancel fails: %+v", item)
	}
}

func TestEnqueueRejectsActiveBatchAndEmptySelection(t *testing.T) {
	fake := newFake(t)
	fake.ScriptRender(1, backend.RenderStart{TaskID: "render-1", TotalSegments: 1},
		backend.RenderStatus{Status: backend.TaskProcessing},
	)

	queue := renderqueue.New(fake, nil, pollInterval, nil)
	if _, err := queue.Enqueue(); !errors.Is(err, renderqueue.ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
	if _, err := queue.Enqueue(renderqueue.Selection{ProjectID: 1, Title: "First"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- queue.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !queue.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if _, err := queue.Enqueue(renderqueue.Selection{ProjectID: 2, Title: "Second"}); !errors.Is(err, renderqueue.ErrBatchActive) {
		t.Fatalf("expected ErrBatchActive, got %v", err)
	}

	queue.CancelAll()
	<-done
}

func TestClearResetsStateMidRun(t *testing.T) {
	fake := newFake(t)
	fake.ScriptRender(1, backend.RenderStart{TaskID: "render-1", TotalSegments: 3},
		backend.RenderStatus{Status: backend.TaskProcessing, Progress: backend.RenderProgress{Percentage: 30}},
	)

	queue := renderqueue.New(fake, nil, pollInterval, nil)
	if _, err := queue.Enqueue(renderqueue.Selection{ProjectID: 1, Title: "First"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- queue.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !queue.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	queue.Clear()
	<-done

	if len(queue.Items()) != 0 {
		t.Fatalf("expected an empty queue after clear, got %+v", queue.Items())
	}
	if queue.BatchID() != "" {
		t.Fatalf("expected batch id reset, got %q", queue.BatchID())
	}
	if queue.Running() {
		t.Fatal("expected run torn down after clear")
	}

	// A fresh batch starts cleanly after a clear.
	fake.ScriptRender(2, backend.RenderStart{TaskID: "render-2", TotalSegments: 1}, completedScript("videos/2.mp4")...)
	if _, err := queue.Enqueue(renderqueue.Selection{ProjectID: 2, Title: "Second"}); err != nil {
		t.Fatalf("Enqueue after clear failed: %v", err)
	}
	if err := queue.Run(context.Background()); err != nil {
		t.Fatalf("Run after clear failed: %v", err)
	}
	if item := itemFor(t, queue, 2); item.Status != renderqueue.StatusCompleted {
		t.Fatalf("unexpected item after clear: %+v", item)
	}
}

func TestPhaseLabel(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"encoding_video":    "Encoding Video",
		"generating_frames": "Generating Frames",
		"muxing":            "Muxing",
	}
	for input, want := range cases {
		if got := renderqueue.PhaseLabel(input); got != want {
			t.Errorf("PhaseLabel(%q) = %q, want %q", input, got, want)
		}
	}
}
