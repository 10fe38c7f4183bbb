package backend

import "strings"

// Task status values reported by the backend job engine.
const (
	TaskPending    = "PENDING"
	TaskProcessing = "PROCESSING"
	TaskCompleted  = "COMPLETED"
	TaskFailed     = "FAILED"
)

// Project holds the scalar render settings for one slideshow project.
type Project struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Resolution       string `json:"resolution"`
	Framerate        int    `json:"framerate"`
	Voice            string `json:"voice"`
	SubtitlesEnabled bool   `json:"subtitles_enabled"`
	WatermarkEnabled bool   `json:"watermark_enabled"`
	OutroEnabled     bool   `json:"outro_enabled"`
}

// Segment is one narrated scene unit within a project. AudioFile and ImageFile
// are empty when no asset is attached; AudioDuration is meaningful only when
// AudioFile is set.
type Segment struct {
	ID            int64   `json:"id"`
	Project       int64   `json:"project"`
	SequenceIndex int     `json:"sequence_index"`
	TextContent   string  `json:"text_content"`
	ImagePrompt   string  `json:"image_prompt"`
	ImageFile     string  `json:"image_file"`
	AudioFile     string  `json:"audio_file"`
	AudioDuration float64 `json:"audio_duration"`
	IsLocked      bool    `json:"is_locked"`
}

// HasAudio reports whether the segment has generated audio attached.
func (s Segment) HasAudio() bool {
	return s.AudioFile != ""
}

// SegmentPatch carries the mutable segment fields for a partial update.
// Nil fields are left untouched by the backend.
type SegmentPatch struct {
	TextContent *string `json:"text_content,omitempty"`
	ImagePrompt *string `json:"image_prompt,omitempty"`
	IsLocked    *bool   `json:"is_locked,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p SegmentPatch) IsZero() bool {
	return p.TextContent == nil && p.ImagePrompt == nil && p.IsLocked == nil
}

// LockOnly reports whether the patch only toggles the segment lock.
func (p SegmentPatch) LockOnly() bool {
	return p.IsLocked != nil && p.TextContent == nil && p.ImagePrompt == nil
}

// ProjectPatch carries the mutable project settings for a partial update.
type ProjectPatch struct {
	Title            *string `json:"title,omitempty"`
	Resolution       *string `json:"resolution,omitempty"`
	Framerate        *int    `json:"framerate,omitempty"`
	Voice            *string `json:"voice,omitempty"`
	SubtitlesEnabled *bool   `json:"subtitles_enabled,omitempty"`
	WatermarkEnabled *bool   `json:"watermark_enabled,omitempty"`
	OutroEnabled     *bool   `json:"outro_enabled,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p ProjectPatch) IsZero() bool {
	return p == ProjectPatch{}
}

// AudioJob is the backend's acknowledgement of a started audio generation job.
type AudioJob struct {
	TaskID    string `json:"task_id"`
	SegmentID int64  `json:"segment_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// TaskProgress reports bulk job advancement.
type TaskProgress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// SegmentResult is one per-segment outcome inside a completed audio job.
type SegmentResult struct {
	SegmentID int64   `json:"segment_id"`
	AudioURL  string  `json:"audio_url"`
	Duration  float64 `json:"duration"`
}

// TaskError is one per-segment failure inside an audio job.
type TaskError struct {
	SegmentID int64  `json:"segment_id"`
	Error     string `json:"error"`
}

// TaskStatus is a poll snapshot of an audio generation job.
type TaskStatus struct {
	TaskID            string          `json:"task_id"`
	Status            string          `json:"status"`
	Progress          TaskProgress    `json:"progress"`
	CompletedSegments []SegmentResult `json:"completed_segments"`
	Errors            []TaskError     `json:"errors"`
	Message           string          `json:"message"`
}

// Terminal reports whether the job will make no further progress.
func (t TaskStatus) Terminal() bool {
	return isTerminalStatus(t.Status)
}

// ResultFor returns the per-segment result entry for a segment id.
func (t TaskStatus) ResultFor(segmentID int64) (SegmentResult, bool) {
	for _, result := range t.CompletedSegments {
		if result.SegmentID == segmentID {
			return result, true
		}
	}
	return SegmentResult{}, false
}

// ErrorFor returns the per-segment error entry for a segment id.
func (t TaskStatus) ErrorFor(segmentID int64) (string, bool) {
	for _, taskErr := range t.Errors {
		if taskErr.SegmentID == segmentID {
			return taskErr.Error, true
		}
	}
	return "", false
}

// RenderStart is the backend's acknowledgement of a started render.
type RenderStart struct {
	TaskID        string `json:"task_id"`
	TotalSegments int    `json:"total_segments"`
	Message       string `json:"message"`
}

// RenderProgress reports render advancement including the active phase.
type RenderProgress struct {
	Current        int     `json:"current"`
	Total          int     `json:"total"`
	Percentage     float64 `json:"percentage"`
	CurrentPhase   string  `json:"current_phase"`
	CurrentSegment int     `json:"current_segment"`
	TotalSegments  int     `json:"total_segments"`
}

// RenderStatus is a poll snapshot of a project render.
type RenderStatus struct {
	Status    string         `json:"status"`
	Progress  RenderProgress `json:"progress"`
	OutputURL string         `json:"output_url"`
	Error     string         `json:"error"`
}

// Terminal reports whether the render will make no further progress.
func (r RenderStatus) Terminal() bool {
	return isTerminalStatus(r.Status)
}

func isTerminalStatus(status string) bool {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case TaskCompleted, TaskFailed:
		return true
	default:
		return false
	}
}
