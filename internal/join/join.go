// Package join runs a fixed set of independent tasks concurrently and
// waits for every one of them (fan-out/fan-in).
//
// The join is resilient, not fail-fast: a failing or panicking task is
// recorded in its own Outcome and never cancels its siblings.
package join

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	ncerr "lineecho/internal/errors"
)

// Task is one unit of work.  It receives its position in the spawn
// sequence and shares no mutable state with its siblings.
type Task func(ctx context.Context, index int) error

// Outcome is the result of one task.
type Outcome struct {
	Index   int
	Err     error
	Elapsed time.Duration
}

// Report collects every outcome in spawn order.  Order is the order in
// which tasks actually finished, which callers must not assume matches
// spawn order.
type Report struct {
	Outcomes []Outcome
	Order    []int
}

// Failed returns the outcomes that carry an error.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Err joins every task error, each wrapped in a *errors.TaskError, or
// returns nil when all tasks succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, &ncerr.TaskError{Index: o.Index, Err: o.Err})
	}
	return ncerr.Join(errs...)
}

// Options tunes All.
type Options struct {
	// Limit caps how many tasks run at once; 0 means no cap.
	Limit int
	// OnDone, when set, is called as each task finishes.  Calls may
	// come from many goroutines at once.
	OnDone func(Outcome)
}

// All spawns every task and returns once all of them have finished.
// ctx is handed to the tasks unchanged; All never cancels it.
func All(ctx context.Context, tasks []Task, opts Options) *Report {
	rep := &Report{Outcomes: make([]Outcome, len(tasks))}
	finished := make(chan int, len(tasks))

	var g errgroup.Group
	if opts.Limit > 0 {
		g.SetLimit(opts.Limit)
	}

	for i, task := range tasks {
		g.Go(func() error {
			start := time.Now()
			err := run(ctx, i, task)
			o := Outcome{Index: i, Err: err, Elapsed: time.Since(start)}
			rep.Outcomes[i] = o
			finished <- i
			if opts.OnDone != nil {
				opts.OnDone(o)
			}
			return err
		})
	}

	// Every outcome is already recorded per task; the group's first
	// error adds nothing.
	_ = g.Wait()
	close(finished)
	for i := range finished {
		rep.Order = append(rep.Order, i)
	}
	return rep
}

// run calls task, converting a panic into an error.
func run(ctx context.Context, index int, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ncerr.ErrTaskPanic, r)
		}
	}()
	return task(ctx, index)
}
