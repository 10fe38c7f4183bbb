// Package renderqueue processes batches of project renders strictly one at a
// time. Each queued item walks queued -> rendering -> completed, failed, or
// cancelled; batch cancellation is a flag observed at the top of the item loop
// and at every poll tick, with server-side cancellation attempted best-effort.
// Terminal items are handed to an optional journal.
package renderqueue
