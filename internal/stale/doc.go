// Package stale maintains the derived set of segments whose narration text
// changed after their audio was generated. Membership is owned by the audio
// generation orchestrator; other components only read it.
package stale
