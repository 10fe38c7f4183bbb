// Package audiogen owns the per-segment audio generation state machine:
// idle -> generating -> completed or failed, with retry and regenerate as
// plain re-invocations. Single and bulk jobs share one poll loop shape; bulk
// completions fan out into independent per-segment outcomes. Cancellation is
// cooperative: poll loops stop and generating segments return to idle, but
// backend jobs are never aborted.
package audiogen
