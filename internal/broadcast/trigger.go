package broadcast

import (
	"context"
	"errors"
	"time"

	"coursewatch/internal/schedule"
	logx "coursewatch/pkg/logx"

	"github.com/robfig/cron/v3"
)

// Start registers the cycle on spec and runs one extra cycle after warmup.
// Both triggers share one wrapped job, so a trigger that fires while a cycle
// is running is skipped.
func (s *Scheduler) Start(ctx context.Context, spec schedule.Spec, warmup time.Duration, loc *time.Location) error {
	sched, err := spec.Schedule()
	if err != nil {
		return err
	}
	if loc == nil {
		loc = time.Local
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	cl := cronLogger{log: s.log}
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		if _, err := s.RunCycle(runCtx); err != nil {
			if errors.Is(err, ErrCycleRunning) {
				s.log.Debug("cycle skipped, previous still running")
				return
			}
			s.log.Error("cycle failed", logx.Err(err))
		}
	}))

	c := cron.New(cron.WithLocation(loc), cron.WithLogger(cl))
	c.Schedule(sched, job)
	c.Start()

	s.c = c
	s.cancel = cancel
	s.warm = time.AfterFunc(warmup, job.Run)
	s.log.Info("broadcast started",
		logx.String("schedule", spec.String()),
		logx.Duration("warmup", warmup),
		logx.String("tz", loc.String()),
	)
	return nil
}

// Stop cancels the running cycle and waits for it to finish or ctx to end.
// The cycle still flushes the store after cancellation.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c, warm, cancel := s.c, s.warm, s.cancel
	s.c, s.warm, s.cancel = nil, nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	warm.Stop()
	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}

	// The warm-up job does not run under cron; wait for the cycle lock.
	done := make(chan struct{})
	go func() {
		s.cycleMu.Lock()
		close(done)
		s.cycleMu.Unlock()
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.log.Info("broadcast stopped")
}

// cronLogger routes robfig/cron logs into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, logx.KV(kv...)...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, append(logx.KV(kv...), logx.Err(err))...)
}
