package logging

// Standardized attribute keys shared across slidecast components.
const (
	FieldComponent = "component"
	FieldProjectID = "project_id"
	FieldSegmentID = "segment_id"
	FieldTaskID    = "task_id"
	FieldBatchID   = "batch_id"
	FieldStatus    = "status"
	FieldPhase     = "phase"
)
