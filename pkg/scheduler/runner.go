package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	applogger "SignalDesk/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context)

// Runner runs jobs on cron schedules. A job whose previous run is still in
// progress is skipped rather than queued.
type Runner struct {
	cron    *cron.Cron
	logger  *applogger.Logger
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a runner whose jobs receive contexts derived from baseCtx.
func New(baseCtx context.Context, l *applogger.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if l == nil {
		l = applogger.Nop()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	cl := cronLogger{l: l}
	return &Runner{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  l,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Add registers job under a cron spec. timeout bounds each run; zero means unbounded.
func (r *Runner) Add(spec, name string, timeout time.Duration, job Job) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() { r.run(name, timeout, job) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return id, nil
}

// Every registers job at a fixed interval.
func (r *Runner) Every(interval time.Duration, name string, timeout time.Duration, job Job) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("schedule %s: interval must be positive", name)
	}
	return r.Add("@every "+interval.String(), name, timeout, job)
}

// RunNow runs job once in the background, outside the schedule.
func (r *Runner) RunNow(name string, timeout time.Duration, job Job) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(name, timeout, job)
	}()
}

func (r *Runner) run(name string, timeout time.Duration, job Job) {
	ctx := r.baseCtx
	if ctx.Err() != nil {
		return
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	job(ctx)
	r.logger.Debug("scheduler: job finished",
		applogger.String("job", name),
		applogger.Duration("duration_ms", time.Since(start)),
	)
}

// Start begins firing schedules.
func (r *Runner) Start() {
	r.logger.Info("scheduler: started", applogger.Int("jobs", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop cancels in-flight jobs and waits for them to return.
func (r *Runner) Stop() {
	r.cancel()
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.wg.Wait()
	r.logger.Info("scheduler: stopped")
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append([]applogger.Field{applogger.Error(err)}, kvFields(keysAndValues)...)
	c.l.Error("cron: "+msg, fields...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, applogger.Any(key, kv[i+1]))
	}
	return fields
}
