// Package refresh runs the sync pipeline on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "confguide/internal/log"
)

// ErrBusy is returned by Trigger while a run is in progress.
var ErrBusy = errors.New("refresh: a run is already in progress")

// Job is one refresh run.
type Job func(ctx context.Context) error

type Runner struct {
	cron     *cron.Cron
	job      Job
	schedule string

	running sync.Mutex
	wg      sync.WaitGroup

	mu      sync.Mutex
	ctx     context.Context
	lastRun time.Time
	lastErr error
}

// cronLogger forwards robfig/cron diagnostics to the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}

// New validates schedule (standard five-field syntax or a descriptor such as
// "@every 5m") and prepares a Runner evaluating it in loc.
func New(schedule string, loc *time.Location, job Job) (*Runner, error) {
	if job == nil {
		return nil, errors.New("refresh: nil job")
	}
	if loc == nil {
		loc = time.UTC
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("refresh: invalid schedule %q: %w", schedule, err)
	}

	return &Runner{
		cron:     cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{})),
		job:      job,
		schedule: schedule,
		ctx:      context.Background(),
	}, nil
}

// Start runs the job once in the background and then on schedule until
// Stop. Scheduled runs that would overlap a running one are skipped.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	if _, err := r.cron.AddFunc(r.schedule, func() { _ = r.run() }); err != nil {
		return fmt.Errorf("refresh: schedule: %w", err)
	}
	r.cron.Start()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.run()
	}()

	appLog.Info("refresh scheduled", "schedule", r.schedule)
	return nil
}

// Trigger runs the job synchronously. It returns ErrBusy instead of
// waiting if another run holds the lock.
func (r *Runner) Trigger() error {
	return r.run()
}

// Stop halts the schedule and waits for any running job.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.wg.Wait()
	appLog.Info("refresh stopped")
}

// Last reports the finish time and result of the most recent run.
func (r *Runner) Last() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun, r.lastErr
}

func (r *Runner) run() error {
	if !r.running.TryLock() {
		appLog.Warn("refresh: previous run still in progress, skipping")
		return ErrBusy
	}
	defer r.running.Unlock()

	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()

	started := time.Now()
	err := r.job(ctx)
	if err != nil {
		appLog.Error("refresh run failed", err, "elapsed", time.Since(started).String())
	} else {
		appLog.Debug("refresh run finished", "elapsed", time.Since(started).String())
	}

	r.mu.Lock()
	r.lastRun = time.Now()
	r.lastErr = err
	r.mu.Unlock()
	return err
}
