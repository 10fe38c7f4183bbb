package renderqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"slidecast/internal/backend"
	"slidecast/internal/logging"
	"slidecast/internal/polling"
)

// ItemStatus is the lifecycle of one queued render.
type ItemStatus string

const (
	StatusQueued    ItemStatus = "queued"
	StatusRendering ItemStatus = "rendering"
	StatusCompleted ItemStatus = "completed"
	StatusFailed    ItemStatus = "failed"
	StatusCancelled ItemStatus = "cancelled"
)

// Item is one project's entry in a render batch.
type Item struct {
	ID             uuid.UUID
	ProjectID      int64
	Title          string
	Status         ItemStatus
	Progress       float64
	CurrentPhase   string
	CurrentSegment int
	TotalSegments  int
	OutputURL      string
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Terminal reports whether the item will make no further progress.
func (i Item) Terminal() bool {
	switch i.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Selection names a project to enqueue.
type Selection struct {
	ProjectID int64
	Title     string
}

// Backend is the slice of the API client the queue depends on.
type Backend interface {
	StartRender(ctx context.Context, projectID int64) (*backend.RenderStart, error)
	RenderStatus(ctx context.Context, projectID int64) (*backend.RenderStatus, error)
	CancelRender(ctx context.Context, projectID int64) error
}

// Journal receives each item once it reaches a terminal state. Recording
// failures never affect queue processing.
type Journal interface {
	Record(ctx context.Context, batchID string, item Item) error
}

// ErrBatchActive is returned by Enqueue while a previous batch is still
// processing.
var ErrBatchActive = errors.New("a render batch is already active")

// ErrEmptyBatch is returned by Enqueue when no projects are selected.
var ErrEmptyBatch = errors.New("no projects selected")

// Queue renders a batch of projects strictly sequentially: at most one project
// renders at a time, as backpressure against the render backend. Cancellation
// is cooperative; the flag is observed at the top of the per-item loop and at
// every poll tick.
type Queue struct {
	backend  Backend
	journal  Journal
	interval time.Duration
	logger   *slog.Logger
	polls    *polling.Keyed

	mu        sync.Mutex
	batchID   uuid.UUID
	items     []Item
	running   bool
	cancelled bool
	runCancel context.CancelFunc
}

// New constructs an idle queue. The journal may be nil.
func New(api Backend, journal Journal, interval time.Duration, logger *slog.Logger) *Queue {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Queue{
		backend:  api,
		journal:  journal,
		interval: interval,
		logger:   logging.WithComponent(logger, "renderqueue"),
		polls:    polling.NewKeyed(),
	}
}

// Enqueue replaces the queue contents with a fresh batch of queued items and
// returns the batch id. It fails while a previous batch is still running.
func (q *Queue) Enqueue(selections ...Selection) (string, error) {
	if len(selections) == 0 {
		return "", ErrEmptyBatch
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return "", ErrBatchActive
	}

	q.batchID = uuid.New()
	q.cancelled = false
	q.items = make([]Item, 0, len(selections))
	for _, selection := range selections {
		q.items = append(q.items, Item{
			ID:        uuid.New(),
			ProjectID: selection.ProjectID,
			Title:     selection.Title,
			Status:    StatusQueued,
		})
	}
	return q.batchID.String(), nil
}

// Items returns a copy of the current queue contents.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Item{}, q.items...)
}

// BatchID returns the active batch id, empty when nothing was enqueued.
func (q *Queue) BatchID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.batchID == uuid.Nil {
		return ""
	}
	return q.batchID.String()
}

// Running reports whether a batch is being processed.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Run processes the enqueued batch in order and blocks until every item is
// terminal or the run context is torn down. Each item fully resolves before
// the next one starts.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return ErrBatchActive
	}
	if len(q.items) == 0 {
		q.mu.Unlock()
		return ErrEmptyBatch
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.running = true
	q.runCancel = cancel
	batchID := q.batchID.String()
	count := len(q.items)
	q.mu.Unlock()

	defer func() {
		cancel()
		q.mu.Lock()
		q.running = false
		q.runCancel = nil
		q.mu.Unlock()
	}()

	q.logger.Info("render batch started",
		logging.String(logging.FieldBatchID, batchID),
		logging.Int("projects", count),
	)

	for index := 0; index < count; index++ {
		if q.isCancelled() {
			q.cancelRemaining(runCtx, batchID, index)
			break
		}
		if runCtx.Err() != nil {
			q.cancelRemaining(runCtx, batchID, index)
			return context.Cause(runCtx)
		}
		q.renderItem(runCtx, batchID, index)
	}

	q.logger.Info("render batch finished", logging.String(logging.FieldBatchID, batchID))
	return nil
}

// CancelAll requests batch cancellation. The item currently rendering stops at
// its next poll tick; queued items are cancelled before they start. Completed
// and failed items are untouched.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	q.cancelled = true
	q.mu.Unlock()
	q.logger.Info("render batch cancellation requested")
}

// Clear tears down any active run and resets all queue state. Safe to call at
// any time, including mid-render.
func (q *Queue) Clear() {
	q.mu.Lock()
	if q.runCancel != nil {
		q.runCancel()
	}
	q.batchID = uuid.Nil
	q.items = nil
	q.cancelled = false
	q.mu.Unlock()

	q.polls.StopAll()
}

func (q *Queue) isCancelled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled
}

// cancelRemaining marks the item at start and every later still-queued item
// cancelled and journals them.
func (q *Queue) cancelRemaining(ctx context.Context, batchID string, start int) {
	now := time.Now()
	cancelledIdx := make([]int, 0)
	q.mu.Lock()
	for i := start; i < len(q.items); i++ {
		if q.items[i].Status != StatusQueued {
			continue
		}
		q.items[i].Status = StatusCancelled
		q.items[i].FinishedAt = now
		cancelledIdx = append(cancelledIdx, i)
	}
	q.mu.Unlock()

	for _, i := range cancelledIdx {
		q.record(ctx, batchID, i)
	}
}

func (q *Queue) renderItem(ctx context.Context, batchID string, index int) {
	projectID := q.itemProject(index)
	q.update(index, func(item *Item) {
		item.Status = StatusRendering
		item.StartedAt = time.Now()
	})
	q.logger.Info("render started",
		logging.String(logging.FieldBatchID, batchID),
		logging.Int64(logging.FieldProjectID, projectID),
	)

	start, err := q.backend.StartRender(ctx, projectID)
	if err != nil {
		q.update(index, func(item *Item) {
			item.Status = StatusFailed
			item.Error = backend.Message(err)
			item.FinishedAt = time.Now()
		})
		q.record(ctx, batchID, index)
		q.logger.Warn("render start rejected",
			logging.Int64(logging.FieldProjectID, projectID),
			logging.Error(err),
		)
		return
	}
	q.update(index, func(item *Item) {
		item.TotalSegments = start.TotalSegments
	})

	pollCtx, stop := q.polls.Begin(ctx, fmt.Sprintf("render:%d", projectID))
	status, outcome, pollErr := polling.Wait(pollCtx, polling.Options[backend.RenderStatus]{
		Interval: q.interval,
		Fetch: func(ctx context.Context) (backend.RenderStatus, error) {
			snapshot, err := q.backend.RenderStatus(ctx, projectID)
			if err != nil {
				return backend.RenderStatus{}, err
			}
			return *snapshot, nil
		},
		Terminal:  backend.RenderStatus.Terminal,
		Cancelled: q.isCancelled,
		Retryable: backend.IsTransient,
		OnTick: func(tick backend.RenderStatus) {
			q.update(index, func(item *Item) {
				item.Progress = tick.Progress.Percentage
				item.CurrentPhase = tick.Progress.CurrentPhase
				item.CurrentSegment = tick.Progress.CurrentSegment
				if tick.Progress.TotalSegments > 0 {
					item.TotalSegments = tick.Progress.TotalSegments
				}
			})
			q.logger.Debug("render progress",
				logging.Int64(logging.FieldProjectID, projectID),
				logging.String(logging.FieldPhase, tick.Progress.CurrentPhase),
				logging.Float64("percent", tick.Progress.Percentage),
			)
		},
		Logger: q.logger,
	})
	stop()

	if outcome == polling.OutcomeFailed {
		q.update(index, func(item *Item) {
			item.Status = StatusFailed
			item.Error = backend.Message(pollErr)
			item.FinishedAt = time.Now()
		})
		q.record(ctx, batchID, index)
		q.logger.Warn("render poll failed",
			logging.Int64(logging.FieldProjectID, projectID),
			logging.Error(pollErr),
		)
		return
	}

	if outcome == polling.OutcomeCancelled {
		// Best effort: the backend may refuse or already be done; the client
		// proceeds as cancelled regardless.
		if err := q.backend.CancelRender(context.WithoutCancel(ctx), projectID); err != nil {
			q.logger.Debug("server-side cancel failed",
				logging.Int64(logging.FieldProjectID, projectID),
				logging.Error(err),
			)
		}
		q.update(index, func(item *Item) {
			item.Status = StatusCancelled
			item.FinishedAt = time.Now()
		})
		q.record(ctx, batchID, index)
		return
	}

	switch status.Status {
	case backend.TaskCompleted:
		q.update(index, func(item *Item) {
			item.Status = StatusCompleted
			item.Progress = 100
			item.OutputURL = status.OutputURL
			item.FinishedAt = time.Now()
		})
		q.logger.Info("render completed",
			logging.Int64(logging.FieldProjectID, projectID),
			logging.String(logging.FieldStatus, string(StatusCompleted)),
			logging.String("output_url", status.OutputURL),
		)
	default:
		message := status.Error
		if message == "" {
			message = "render failed"
		}
		q.update(index, func(item *Item) {
			item.Status = StatusFailed
			item.Error = message
			item.FinishedAt = time.Now()
		})
		q.logger.Warn("render failed",
			logging.Int64(logging.FieldProjectID, projectID),
			logging.String(logging.FieldStatus, string(StatusFailed)),
			logging.String("error", message),
		)
	}
	q.record(ctx, batchID, index)
}

func (q *Queue) itemProject(index int) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index >= len(q.items) {
		return 0
	}
	return q.items[index].ProjectID
}

func (q *Queue) update(index int, fn func(*Item)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < len(q.items) {
		fn(&q.items[index])
	}
}

func (q *Queue) record(ctx context.Context, batchID string, index int) {
	if q.journal == nil {
		return
	}
	q.mu.Lock()
	if index >= len(q.items) {
		q.mu.Unlock()
		return
	}
	item := q.items[index]
	q.mu.Unlock()

	if err := q.journal.Record(context.WithoutCancel(ctx), batchID, item); err != nil {
		q.logger.Warn("render journal write failed",
			logging.Int64(logging.FieldProjectID, item.ProjectID),
			logging.Error(err),
		)
	}
}
