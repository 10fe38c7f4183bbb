// Package polling provides the fixed-interval job poller used to wait on
// backend audio and render tasks, plus a keyed registry that guarantees at
// most one active poll loop per logical job.
//
// The poller treats retryable fetch errors as transient by policy: a failed
// status request means the job cannot currently be confirmed, not that it
// failed, so the poll retries on the next tick. Errors the caller classifies
// as unrecoverable resolve the loop instead of spinning forever. Cooperative
// cancellation is observed before every fetch, including the first.
package polling
