package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner wraps robfig/cron with a shared base context and per-job logging.
// Jobs run with the process context so shutdown cancels in-flight sweeps.
type Runner struct {
	cron    *cron.Cron
	log     *zap.Logger
	baseCtx context.Context
}

func New(log *zap.Logger, baseCtx context.Context) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds()),
		log:     log,
		baseCtx: baseCtx,
	}
}

// Add registers job under name with a six-field schedule. Panics inside a
// job are logged and swallowed so one bad sweep cannot take down the runner.
func (r *Runner) Add(name, schedule string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(schedule, func() {
		if r.baseCtx.Err() != nil {
			return
		}
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("cron job panicked",
					zap.String("job", name),
					zap.Any("panic", rec))
				return
			}
			r.log.Debug("cron job finished",
				zap.String("job", name),
				zap.Duration("elapsed", time.Since(start)))
		}()
		job(r.baseCtx)
	})
}

func (r *Runner) Start() {
	r.log.Info("cron started")
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to return.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("cron stopped")
}
