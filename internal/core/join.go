package core

import (
	"context"
	"fmt"
	"time"

	"lineecho/internal/join"
	"lineecho/internal/metrics"
	"lineecho/util"
)

// JoinMode spawns Tasks independent units, unit i sleeping
// (Tasks-i)*Step so that later units finish first, and returns only
// after every unit has finished.
type JoinMode struct {
	Tasks   int
	Step    time.Duration
	Workers int // 0 = every unit at once
	Logger  *util.Logger
	Metrics *metrics.Collector

	// Unit overrides the demo unit.  Tests use it to inject failures.
	Unit join.Task
}

// Run fans out the units, waits for all of them, and reports failed
// units as a joined error after every unit has been collected.
func (m *JoinMode) Run(ctx context.Context) error {
	unit := m.Unit
	if unit == nil {
		unit = m.sleepUnit
	}

	tasks := make([]join.Task, m.Tasks)
	for i := range tasks {
		tasks[i] = unit
	}

	log := m.Logger.Named("join")
	log.Verbose("spawning %d task(s), step %s", m.Tasks, m.Step)

	rep := join.All(ctx, tasks, join.Options{
		Limit: m.Workers,
		OnDone: func(o join.Outcome) {
			m.Metrics.TaskFinished(o.Err != nil)
			if o.Err != nil {
				log.Error("task %d failed after %s: %v", o.Index, o.Elapsed.Truncate(time.Millisecond), o.Err)
			}
		},
	})

	log.Info("all %d tasks finished (%d failed), completion order %v",
		len(rep.Outcomes), len(rep.Failed()), rep.Order)

	if err := rep.Err(); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	return nil
}

// sleepUnit is the demo unit: wait, then say so.  An operator interrupt
// is the only thing that cuts the wait short.
func (m *JoinMode) sleepUnit(ctx context.Context, index int) error {
	delay := time.Duration(m.Tasks-index) * m.Step

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	m.Logger.Named("join").Info("task %d finished after %s", index, delay)
	return nil
}
