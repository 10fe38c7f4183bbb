package testsupport

import (
	"context"
	"fmt"
	"sync"

	"slidecast/internal/backend"
)

// FakeBackend is an in-memory stand-in for the slideshow backend used across
// orchestrator tests. Operations can be failed by name via Fail, and task and
// render polls follow scripted status sequences (the last entry repeats).
type FakeBackend struct {
	mu sync.Mutex

	ProjectRecord *backend.Project
	SegmentList   []backend.Segment

	failures map[string]error
	calls    []string

	nextTaskID    int
	taskScripts   map[string][]backend.TaskStatus
	taskPollCount map[string]int

	renderStarts     map[int64]backend.RenderStart
	renderScripts    map[int64][]backend.RenderStatus
	renderPollCount  map[int64]int
	cancelledRenders []int64
}

// NewFakeBackend seeds a fake with a project and its segments.
func NewFakeBackend(project backend.Project, segments ...backend.Segment) *FakeBackend {
	return &FakeBackend{
		ProjectRecord:   &project,
		SegmentList:     append([]backend.Segment{}, segments...),
		failures:        map[string]error{},
		taskScripts:     map[string][]backend.TaskStatus{},
		taskPollCount:   map[string]int{},
		renderStarts:    map[int64]backend.RenderStart{},
		renderScripts:   map[int64][]backend.RenderStatus{},
		renderPollCount: map[int64]int{},
	}
}

// Fail makes the named operation return the given error until cleared with a
// nil err. Operation names match the method names in lower_snake form, e.g.
// "update_segment", "start_render".
func (f *FakeBackend) Fail(operation string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, operation)
		return
	}
	f.failures[operation] = err
}

// ScriptTask registers the poll sequence returned for a task id.
func (f *FakeBackend) ScriptTask(taskID string, statuses ...backend.TaskStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskScripts[taskID] = statuses
}

// ScriptRender registers the start acknowledgement and poll sequence for a
// project's render.
func (f *FakeBackend) ScriptRender(projectID int64, start backend.RenderStart, statuses ...backend.RenderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderStarts[projectID] = start
	f.renderScripts[projectID] = statuses
}

// Calls returns the ordered operation log.
func (f *FakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

// CancelledRenders returns the project ids whose renders were cancel-requested.
func (f *FakeBackend) CancelledRenders() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64{}, f.cancelledRenders...)
}

func (f *FakeBackend) begin(operation string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, operation)
	if err, ok := f.failures[operation]; ok {
		return err
	}
	return nil
}

func (f *FakeBackend) FetchProject(ctx context.Context, id int64) (*backend.Project, error) {
	if err := f.begin("fetch_project"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ProjectRecord == nil || f.ProjectRecord.ID != id {
		return nil, fmt.Errorf("%w: fetch project: unknown project %d", backend.ErrNotFound, id)
	}
	copied := *f.ProjectRecord
	return &copied, nil
}

func (f *FakeBackend) FetchSegments(ctx context.Context, projectID int64) ([]backend.Segment, error) {
	if err := f.begin("fetch_segments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.Segment{}, f.SegmentList...), nil
}

func (f *FakeBackend) FetchSegment(ctx context.Context, id int64) (*backend.Segment, error) {
	if err := f.begin("fetch_segment"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, segment := range f.SegmentList {
		if segment.ID == id {
			copied := segment
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: fetch segment: unknown segment %d", backend.ErrNotFound, id)
}

func (f *FakeBackend) UpdateSegment(ctx context.Context, id int64, patch backend.SegmentPatch) (*backend.Segment, error) {
	if err := f.begin("update_segment"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.SegmentList {
		if f.SegmentList[i].ID != id {
			continue
		}
		if patch.TextContent != nil {
			f.SegmentList[i].TextContent = *patch.TextContent
		}
		if patch.ImagePrompt != nil {
			f.SegmentList[i].ImagePrompt = *patch.ImagePrompt
		}
		if patch.IsLocked != nil {
			f.SegmentList[i].IsLocked = *patch.IsLocked
		}
		copied := f.SegmentList[i]
		return &copied, nil
	}
	return nil, fmt.Errorf("%w: update segment: unknown segment %d", backend.ErrNotFound, id)
}

func (f *FakeBackend) UpdateProject(ctx context.Context, id int64, patch backend.ProjectPatch) (*backend.Project, error) {
	if err := f.begin("update_project"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ProjectRecord == nil || f.ProjectRecord.ID != id {
		return nil, fmt.Errorf("%w: update project: unknown project %d", backend.ErrNotFound, id)
	}
	if patch.Title != nil {
		f.ProjectRecord.Title = *patch.Title
	}
	if patch.Resolution != nil {
		f.ProjectRecord.Resolution = *patch.Resolution
	}
	if patch.Framerate != nil {
		f.ProjectRecord.Framerate = *patch.Framerate
	}
	if patch.Voice != nil {
		f.ProjectRecord.Voice = *patch.Voice
	}
	if patch.SubtitlesEnabled != nil {
		f.ProjectRecord.SubtitlesEnabled = *patch.SubtitlesEnabled
	}
	if patch.WatermarkEnabled != nil {
		f.ProjectRecord.WatermarkEnabled = *patch.WatermarkEnabled
	}
	if patch.OutroEnabled != nil {
		f.ProjectRecord.OutroEnabled = *patch.OutroEnabled
	}
	copied := *f.ProjectRecord
	return &copied, nil
}

func (f *FakeBackend) DeleteSegment(ctx context.Context, id int64) error {
	if err := f.begin("delete_segment"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.SegmentList[:0]
	for _, segment := range f.SegmentList {
		if segment.ID != id {
			next = append(next, segment)
		}
	}
	f.SegmentList = next
	return nil
}

func (f *FakeBackend) UploadImage(ctx context.Context, segmentID int64, filePath string) error {
	if err := f.begin("upload_image"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.SegmentList {
		if f.SegmentList[i].ID == segmentID {
			f.SegmentList[i].ImageFile = filePath
			return nil
		}
	}
	return fmt.Errorf("%w: upload image: unknown segment %d", backend.ErrNotFound, segmentID)
}

func (f *FakeBackend) RemoveImage(ctx context.Context, segmentID int64) error {
	if err := f.begin("remove_image"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.SegmentList {
		if f.SegmentList[i].ID == segmentID {
			f.SegmentList[i].ImageFile = ""
			return nil
		}
	}
	return fmt.Errorf("%w: remove image: unknown segment %d", backend.ErrNotFound, segmentID)
}

func (f *FakeBackend) ReorderSegments(ctx context.Context, projectID int64, segmentIDs []int64) error {
	if err := f.begin("reorder_segments"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	byID := make(map[int64]backend.Segment, len(f.SegmentList))
	for _, segment := range f.SegmentList {
		byID[segment.ID] = segment
	}
	next := make([]backend.Segment, 0, len(segmentIDs))
	for position, id := range segmentIDs {
		segment, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: reorder: unknown segment %d", backend.ErrValidation, id)
		}
		segment.SequenceIndex = position
		next = append(next, segment)
	}
	f.SegmentList = next
	return nil
}

func (f *FakeBackend) StartAudioJob(ctx context.Context, segmentID int64) (*backend.AudioJob, error) {
	if err := f.begin("start_audio_job"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTaskID++
	taskID := fmt.Sprintf("task-%d", f.nextTaskID)
	return &backend.AudioJob{TaskID: taskID, SegmentID: segmentID, Status: backend.TaskPending}, nil
}

func (f *FakeBackend) StartBulkAudioJob(ctx context.Context, projectID int64) (*backend.AudioJob, error) {
	if err := f.begin("start_bulk_audio_job"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTaskID++
	taskID := fmt.Sprintf("task-%d", f.nextTaskID)
	return &backend.AudioJob{TaskID: taskID, Status: backend.TaskPending}, nil
}

func (f *FakeBackend) TaskStatus(ctx context.Context, taskID string) (*backend.TaskStatus, error) {
	if err := f.begin("task_status"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	script, ok := f.taskScripts[taskID]
	if !ok || len(script) == 0 {
		return nil, fmt.Errorf("%w: poll task: unknown task %s", backend.ErrNotFound, taskID)
	}
	index := f.taskPollCount[taskID]
	if index >= len(script) {
		index = len(script) - 1
	}
	f.taskPollCount[taskID]++
	status := script[index]
	status.TaskID = taskID
	return &status, nil
}

func (f *FakeBackend) StartRender(ctx context.Context, projectID int64) (*backend.RenderStart, error) {
	if err := f.begin("start_render"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	start, ok := f.renderStarts[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: start render: project %d has no segments ready", backend.ErrValidation, projectID)
	}
	return &start, nil
}

func (f *FakeBackend) RenderStatus(ctx context.Context, projectID int64) (*backend.RenderStatus, error) {
	if err := f.begin("render_status"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	script := f.renderScripts[projectID]
	if len(script) == 0 {
		return nil, fmt.Errorf("%w: poll render: no render for project %d", backend.ErrNotFound, projectID)
	}
	index := f.renderPollCount[projectID]
	if index >= len(script) {
		index = len(script) - 1
	}
	f.renderPollCount[projectID]++
	status := script[index]
	return &status, nil
}

func (f *FakeBackend) CancelRender(ctx context.Context, projectID int64) error {
	if err := f.begin("cancel_render"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelledRenders = append(f.cancelledRenders, projectID)
	return nil
}
