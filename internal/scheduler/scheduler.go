// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

// Runner wraps the cron scheduler so jobs receive the process base context
// and shutdown waits for in-flight runs.
type Runner struct {
	cron    *cron.Cron
	baseCtx context.Context
}

func New(baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(),
		baseCtx: baseCtx,
	}
}

// Add schedules a job with a standard 5-field cron spec.
func (r *Runner) Add(spec, name string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		log.Printf("⏰ [Scheduler] Running job %q", name)
		job(r.baseCtx)
	})
}

func (r *Runner) Start() {
	log.Println("⏰ [Scheduler] Started")
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Println("⏰ [Scheduler] Stopped")
}
