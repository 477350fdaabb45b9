package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Runner drives an ecosystem forward one day per step.
type Runner struct {
	Eco   *Ecosystem
	Days  int       // Steps to run
	Start time.Time // Calendar date of step 0

	// BeforeStep runs scenario events and spawning ahead of each step.
	BeforeStep func(step int) error
	// AfterStep receives the resulting state, for reporting and persistence.
	AfterStep func(snap StepSnapshot, took time.Duration) error
}

// Run executes Days steps. It stops between steps when ctx is cancelled and
// returns the first hook error.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("simulation started", "days", r.Days, "step", r.Eco.Time(), "date", r.Date(r.Eco.Time()))

	for i := 0; i < r.Days; i++ {
		if err := ctx.Err(); err != nil {
			slog.Info("simulation interrupted", "step", r.Eco.Time())
			return err
		}
		if err := r.step(); err != nil {
			return err
		}
	}

	slog.Info("simulation finished", "step", r.Eco.Time(), "agents", r.Eco.TotalAgents())
	return nil
}

// step advances the simulation by one day.
func (r *Runner) step() error {
	step := r.Eco.Time()
	if r.BeforeStep != nil {
		if err := r.BeforeStep(step); err != nil {
			return fmt.Errorf("before step %d: %w", step, err)
		}
	}

	start := time.Now()
	r.Eco.Evolve()
	took := time.Since(start)

	if r.AfterStep != nil {
		if err := r.AfterStep(r.Eco.Snapshot(), took); err != nil {
			return fmt.Errorf("after step %d: %w", step, err)
		}
	}
	return nil
}

// Date returns the calendar date of a step, or "day N" without a start date.
func (r *Runner) Date(step int) string {
	if r.Start.IsZero() {
		return fmt.Sprintf("day %d", step)
	}
	return r.Start.AddDate(0, 0, step).Format("2006-01-02")
}
