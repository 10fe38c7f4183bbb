package polling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"slidecast/internal/logging"
)

// Outcome describes how a poll loop ended.
type Outcome int

const (
	// OutcomeTerminal means the fetch returned a status satisfying the
	// terminal predicate.
	OutcomeTerminal Outcome = iota
	// OutcomeCancelled means the cooperative cancel flag or the context was
	// observed before a terminal status arrived.
	OutcomeCancelled
	// OutcomeFailed means a fetch error was classified as unrecoverable, so
	// the job will never be confirmed terminal.
	OutcomeFailed
)

// Options parameterizes a poll loop over a backend job.
type Options[T any] struct {
	// Interval is the fixed delay between fetches. Jobs are short-lived, so
	// no backoff is applied.
	Interval time.Duration
	// Fetch retrieves the current job status.
	Fetch func(context.Context) (T, error)
	// Terminal classifies a status as final.
	Terminal func(T) bool
	// Cancelled is the cooperative cancellation flag, consulted before every
	// fetch including the first. May be nil.
	Cancelled func() bool
	// Retryable classifies fetch errors. Errors it rejects end the loop with
	// OutcomeFailed instead of being retried; a nil Retryable retries
	// everything.
	Retryable func(error) bool
	// OnTick observes every successfully fetched status, terminal included.
	// May be nil.
	OnTick func(T)
	// Logger receives debug lines for swallowed fetch errors. May be nil.
	Logger *slog.Logger
}

// Wait drives fetches on a fixed interval until a terminal status, cooperative
// cancellation, an unrecoverable fetch error, or context teardown.
//
// Retryable fetch errors are swallowed and retried on the next tick: a network
// hiccup means "job still running, can't currently confirm", not "job failed".
// An error Retryable rejects means the job can never be confirmed (an unknown
// task id, a rejected request) and resolves the loop with OutcomeFailed. The
// interval timer is always stopped before returning.
func Wait[T any](ctx context.Context, opts Options[T]) (T, Outcome, error) {
	var last T
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}

	cancelled := func() bool {
		if opts.Cancelled == nil {
			return false
		}
		return opts.Cancelled()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if cancelled() {
			return last, OutcomeCancelled, nil
		}

		status, err := opts.Fetch(ctx)
		switch {
		case err == nil:
			last = status
			if opts.OnTick != nil {
				opts.OnTick(status)
			}
			if opts.Terminal(status) {
				return status, OutcomeTerminal, nil
			}
		case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return last, OutcomeCancelled, context.Cause(ctx)
		case opts.Retryable != nil && !opts.Retryable(err):
			return last, OutcomeFailed, err
		default:
			logger.Debug("poll fetch failed; retrying next tick", logging.Error(err))
		}

		select {
		case <-ctx.Done():
			return last, OutcomeCancelled, context.Cause(ctx)
		case <-ticker.C:
		}
	}
}
