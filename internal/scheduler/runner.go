package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner fires a collection pass on a fixed cadence. SkipIfStillRunning
// keeps overlapping passes from piling up when a run exceeds the cadence.
type Runner struct {
	cronRunner *cron.Cron
	collect    func(ctx context.Context) error
}

// NewRunner wraps the given collection pass in a cron runner.
func NewRunner(collect func(ctx context.Context) error) *Runner {
	return &Runner{
		collect: collect,
		cronRunner: cron.New(
			cron.WithChain(
				cron.SkipIfStillRunning(cron.DefaultLogger),
				cron.Recover(cron.DefaultLogger),
			),
		),
	}
}

// Start schedules the pass with the given cron expression (standard five
// field form, e.g. "* * * * *" for every minute) and starts the runner.
func (r *Runner) Start(cronExpr string) error {
	if cronExpr == "" {
		cronExpr = "* * * * *"
	}
	_, err := r.cronRunner.AddFunc(cronExpr, func() {
		ctx := context.Background()
		if err := r.collect(ctx); err != nil {
			log.Printf("Scheduler: collection pass failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule collection pass with cron %q: %w", cronExpr, err)
	}
	r.cronRunner.Start()
	log.Printf("Scheduler: cron runner started (cadence %q)", cronExpr)
	return nil
}

// Stop shuts the cron runner down, waiting briefly for in-flight jobs.
func (r *Runner) Stop() {
	ctx := r.cronRunner.Stop()
	select {
	case <-ctx.Done():
		log.Println("Scheduler: cron runner stopped gracefully.")
	case <-time.After(15 * time.Second):
		log.Println("Scheduler: cron runner shutdown timed out.")
	}
}
