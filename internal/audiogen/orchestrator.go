package audiogen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"slidecast/internal/backend"
	"slidecast/internal/cache"
	"slidecast/internal/logging"
	"slidecast/internal/polling"
	"slidecast/internal/stale"
)

// State is the per-segment generation lifecycle. Absence of a status entry is
// equivalent to StateIdle.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Status pairs a state with the failure message that applies in StateFailed.
type Status struct {
	State State
	Error string
}

// BulkProgress mirrors the backend's advancement report for a bulk job.
type BulkProgress struct {
	Current    int
	Total      int
	Percentage float64
}

// ErrAlreadyGenerating is returned when Generate is invoked for a segment that
// is already generating. Callers must not queue a second job silently.
var ErrAlreadyGenerating = errors.New("segment is already generating")

// ErrNoProject is returned by GenerateAll when no project is loaded.
var ErrNoProject = errors.New("no project loaded")

// Backend is the slice of the API client the orchestrator depends on.
type Backend interface {
	StartAudioJob(ctx context.Context, segmentID int64) (*backend.AudioJob, error)
	StartBulkAudioJob(ctx context.Context, projectID int64) (*backend.AudioJob, error)
	TaskStatus(ctx context.Context, taskID string) (*backend.TaskStatus, error)
	FetchSegment(ctx context.Context, id int64) (*backend.Segment, error)
}

// Orchestrator drives narration audio jobs and owns the per-segment generation
// status map. Completed jobs merge their results into the entity cache and
// clear segment staleness; cancellation is cooperative and only stops the
// client from waiting, never the backend job itself.
type Orchestrator struct {
	backend  Backend
	store    *cache.Store
	stale    *stale.Set
	interval time.Duration
	logger   *slog.Logger
	polls    *polling.Keyed

	mu         sync.Mutex
	statuses   map[int64]Status
	bulk       *BulkProgress
	bulkTaskID string
	projectID  int64
	// epoch increments on Cancel and Reset. Poll loops capture the epoch they
	// started under and stand down once it moves on, so a cancelled job's
	// eventual outcome is never reflected.
	epoch uint64
}

// New constructs an orchestrator around the given backend and cache. The
// staleness set must be the same instance the cache was built with.
func New(api Backend, store *cache.Store, staleSet *stale.Set, interval time.Duration, logger *slog.Logger) *Orchestrator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	o := &Orchestrator{
		backend:  api,
		store:    store,
		stale:    staleSet,
		interval: interval,
		logger:   logging.WithComponent(logger, "audiogen"),
		polls:    polling.NewKeyed(),
		statuses: map[int64]Status{},
	}
	if store != nil {
		if project := store.Project(); project != nil {
			o.projectID = project.ID
		}
		store.Subscribe(o.onCacheEvent)
	}
	return o
}

// onCacheEvent keeps generation state scoped to one project: a cache reset or
// navigation to a different project drops every status, the bulk record, and
// any in-flight polls. Reloading the same project leaves statuses intact.
func (o *Orchestrator) onCacheEvent(event cache.Event) {
	switch event.Kind {
	case cache.EventReset:
		o.Reset()
	case cache.EventProjectLoaded:
		project := o.store.Project()
		if project == nil {
			return
		}
		o.mu.Lock()
		changed := o.projectID != 0 && o.projectID != project.ID
		o.projectID = project.ID
		o.mu.Unlock()
		if changed {
			o.Reset()
		}
	}
}

// Status returns the generation status for a segment; absent entries read as
// idle.
func (o *Orchestrator) Status(segmentID int64) Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	if status, ok := o.statuses[segmentID]; ok {
		return status
	}
	return Status{State: StateIdle}
}

// Statuses returns a copy of the full status map.
func (o *Orchestrator) Statuses() map[int64]Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[int64]Status, len(o.statuses))
	for id, status := range o.statuses {
		out[id] = status
	}
	return out
}

// Bulk returns the active bulk-progress record and its task id, or nil when no
// bulk job is running.
func (o *Orchestrator) Bulk() (*BulkProgress, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bulk == nil {
		return nil, ""
	}
	copied := *o.bulk
	return &copied, o.bulkTaskID
}

// Generate runs one audio job for a segment and blocks until it resolves. The
// generating status is set before the job-creation request is issued, so
// callers observe the transition immediately. Retrying a failed or completed
// segment is an ordinary re-invocation; invoking while already generating is
// an error.
func (o *Orchestrator) Generate(ctx context.Context, segmentID int64) error {
	o.mu.Lock()
	if o.statuses[segmentID].State == StateGenerating {
		o.mu.Unlock()
		return fmt.Errorf("generate audio for segment %d: %w", segmentID, ErrAlreadyGenerating)
	}
	o.statuses[segmentID] = Status{State: StateGenerating}
	epoch := o.epoch
	o.mu.Unlock()

	job, err := o.backend.StartAudioJob(ctx, segmentID)
	if err != nil {
		o.applyStatus(epoch, segmentID, Status{State: StateFailed, Error: backend.Message(err)})
		return fmt.Errorf("generate audio for segment %d: %w", segmentID, err)
	}
	o.logger.Debug("audio job started",
		logging.Int64(logging.FieldSegmentID, segmentID),
		logging.String(logging.FieldTaskID, job.TaskID),
	)

	status, outcome, err := o.poll(ctx, fmt.Sprintf("audio:%d", segmentID), epoch, job.TaskID, nil)
	if outcome == polling.OutcomeCancelled {
		o.applyStatus(epoch, segmentID, Status{State: StateIdle})
		return err
	}
	if outcome == polling.OutcomeFailed {
		o.applyStatus(epoch, segmentID, Status{State: StateFailed, Error: backend.Message(err)})
		return fmt.Errorf("generate audio for segment %d: %w", segmentID, err)
	}

	if status.Status != backend.TaskCompleted {
		message := status.Message
		if message == "" {
			message = "audio generation failed"
		}
		o.applyStatus(epoch, segmentID, Status{State: StateFailed, Error: message})
		return fmt.Errorf("generate audio for segment %d: %w: %s", segmentID, backend.ErrJobFailed, message)
	}

	if itemErr, failed := status.ErrorFor(segmentID); failed {
		o.applyStatus(epoch, segmentID, Status{State: StateFailed, Error: itemErr})
		return fmt.Errorf("generate audio for segment %d: %w: %s", segmentID, backend.ErrJobFailed, itemErr)
	}
	result, ok := status.ResultFor(segmentID)
	if !ok {
		message := "job completed without a result for this segment"
		o.applyStatus(epoch, segmentID, Status{State: StateFailed, Error: message})
		return fmt.Errorf("generate audio for segment %d: %w: %s", segmentID, backend.ErrJobFailed, message)
	}

	o.completeSegment(epoch, segmentID, result)
	return nil
}

// GenerateAll runs one bulk job covering the loaded project's segments and
// blocks until it resolves. Every cached segment is marked generating up
// front; on completion the job's per-item results drive independent
// per-segment outcomes, so one segment failing does not taint the others.
func (o *Orchestrator) GenerateAll(ctx context.Context) error {
	project := o.store.Project()
	if project == nil {
		return fmt.Errorf("generate all audio: %w", ErrNoProject)
	}
	segments := o.store.Segments()

	o.mu.Lock()
	for _, segment := range segments {
		o.statuses[segment.ID] = Status{State: StateGenerating}
	}
	epoch := o.epoch
	o.mu.Unlock()

	job, err := o.backend.StartBulkAudioJob(ctx, project.ID)
	if err != nil {
		message := backend.Message(err)
		for _, segment := range segments {
			o.applyStatus(epoch, segment.ID, Status{State: StateFailed, Error: message})
		}
		return fmt.Errorf("generate all audio: %w", err)
	}

	o.mu.Lock()
	if o.epoch == epoch {
		o.bulk = &BulkProgress{}
		o.bulkTaskID = job.TaskID
	}
	o.mu.Unlock()
	o.logger.Info("bulk audio job started",
		logging.Int64(logging.FieldProjectID, project.ID),
		logging.String(logging.FieldTaskID, job.TaskID),
		logging.Int("segments", len(segments)),
	)

	status, outcome, err := o.poll(ctx, "audio:bulk", epoch, job.TaskID, func(tick backend.TaskStatus) {
		o.mu.Lock()
		if o.epoch == epoch && o.bulk != nil {
			o.bulk.Current = tick.Progress.Current
			o.bulk.Total = tick.Progress.Total
			o.bulk.Percentage = tick.Progress.Percentage
		}
		o.mu.Unlock()
	})

	o.mu.Lock()
	if o.epoch == epoch {
		o.bulk = nil
		o.bulkTaskID = ""
	}
	o.mu.Unlock()

	if outcome == polling.OutcomeCancelled {
		for _, segment := range segments {
			o.applyStatus(epoch, segment.ID, Status{State: StateIdle})
		}
		return err
	}
	if outcome == polling.OutcomeFailed {
		message := backend.Message(err)
		for _, segment := range segments {
			o.applyStatus(epoch, segment.ID, Status{State: StateFailed, Error: message})
		}
		return fmt.Errorf("generate all audio: %w", err)
	}

	if status.Status != backend.TaskCompleted {
		message := status.Message
		if message == "" {
			message = "bulk audio generation failed"
		}
		for _, segment := range segments {
			o.applyStatus(epoch, segment.ID, Status{State: StateFailed, Error: message})
		}
		return fmt.Errorf("generate all audio: %w: %s", backend.ErrJobFailed, message)
	}

	var failures int
	for _, segment := range segments {
		if itemErr, failed := status.ErrorFor(segment.ID); failed {
			o.applyStatus(epoch, segment.ID, Status{State: StateFailed, Error: itemErr})
			failures++
			continue
		}
		if result, ok := status.ResultFor(segment.ID); ok {
			o.completeSegment(epoch, segment.ID, result)
			continue
		}
		// The job did not cover this segment (already had audio, locked, ...).
		o.applyStatus(epoch, segment.ID, Status{State: StateIdle})
	}
	if failures > 0 {
		return fmt.Errorf("generate all audio: %w: %d of %d segments failed", backend.ErrJobFailed, failures, len(segments))
	}
	return nil
}

// RefreshSegmentAudio reconciles one segment's audio fields against the
// backend out of band. When the fetched audio file and duration match the
// cache the published segment list is left untouched, preserving its identity.
func (o *Orchestrator) RefreshSegmentAudio(ctx context.Context, segmentID int64) error {
	fetched, err := o.backend.FetchSegment(ctx, segmentID)
	if err != nil {
		return fmt.Errorf("refresh segment %d audio: %w", segmentID, err)
	}
	cached, ok := o.store.Segment(segmentID)
	if ok && cached.AudioFile == fetched.AudioFile && cached.AudioDuration == fetched.AudioDuration {
		return nil
	}
	o.store.MergeSegment(*fetched)
	return nil
}

// Cancel returns every generating segment to idle, drops the bulk-progress
// record and its task id, and stops all in-flight poll loops. Backend jobs
// keep running; their eventual outcomes are simply no longer reflected.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	o.epoch++
	for id, status := range o.statuses {
		if status.State == StateGenerating {
			delete(o.statuses, id)
		}
	}
	o.bulk = nil
	o.bulkTaskID = ""
	o.mu.Unlock()

	o.polls.StopAll()
	o.logger.Info("audio generation cancelled")
}

// Reset drops all generation state. Called when the cache resets or navigates
// to a different project.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.epoch++
	o.statuses = map[int64]Status{}
	o.bulk = nil
	o.bulkTaskID = ""
	o.projectID = 0
	o.mu.Unlock()

	o.polls.StopAll()
}

func (o *Orchestrator) poll(ctx context.Context, key string, epoch uint64, taskID string, onTick func(backend.TaskStatus)) (backend.TaskStatus, polling.Outcome, error) {
	pollCtx, stop := o.polls.Begin(ctx, key)
	defer stop()

	return polling.Wait(pollCtx, polling.Options[backend.TaskStatus]{
		Interval: o.interval,
		Fetch: func(ctx context.Context) (backend.TaskStatus, error) {
			status, err := o.backend.TaskStatus(ctx, taskID)
			if err != nil {
				return backend.TaskStatus{}, err
			}
			return *status, nil
		},
		Terminal:  backend.TaskStatus.Terminal,
		Cancelled: func() bool { return o.currentEpoch() != epoch },
		Retryable: backend.IsTransient,
		OnTick:    onTick,
		Logger:    o.logger,
	})
}

// completeSegment merges a per-item result into the cache, marks the segment
// completed, and clears its staleness. Completion always clears staleness,
// whether or not the segment was stale before.
func (o *Orchestrator) completeSegment(epoch uint64, segmentID int64, result backend.SegmentResult) {
	if o.currentEpoch() != epoch {
		return
	}
	if segment, ok := o.store.Segment(segmentID); ok {
		segment.AudioFile = result.AudioURL
		segment.AudioDuration = result.Duration
		o.store.MergeSegment(segment)
	}
	o.stale.Clear(segmentID)
	o.applyStatus(epoch, segmentID, Status{State: StateCompleted})
}

// applyStatus records a status transition unless the epoch has moved on, in
// which case the outcome belongs to a cancelled run and is discarded.
func (o *Orchestrator) applyStatus(epoch uint64, segmentID int64, status Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch != epoch {
		return
	}
	if status.State == StateIdle {
		delete(o.statuses, segmentID)
		return
	}
	o.statuses[segmentID] = status
}

func (o *Orchestrator) currentEpoch() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.epoch
}
