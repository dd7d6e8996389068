package app

import (
	"context"
	"fmt"
	"time"

	logx "coursewatch/pkg/logx"
)

// Stop shuts components down in dependency order. Each step has its own
// time limit, capped by ctx; a step that overruns is logged and left behind.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	// A cycle in flight flushes its snapshots before the scheduler stops.
	a.stopStep(ctx, "broadcast", 35*time.Second, func(c context.Context) error {
		a.bcast.Stop(c)
		return nil
	})
	a.stopStep(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	a.stopStep(ctx, "subscribers", 5*time.Second, func(c context.Context) error {
		err := a.subs.Flush(c)
		if cerr := a.subs.Close(); err == nil {
			err = cerr
		}
		return err
	})
	a.stopStep(ctx, "supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) stopStep(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	log := a.log.With(logx.String("step", name))
	start := time.Now()

	if dl, ok := ctx.Deadline(); ok {
		limit = min(limit, time.Until(dl))
	}
	stepCtx, cancel := context.WithTimeout(ctx, max(limit, 0))
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("stop step failed", logx.Err(err))
		}
		log.Debug("stop step done", logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		log.Warn("stop step timed out; continuing", logx.Duration("elapsed", time.Since(start)))
		go func() {
			if err := <-done; err != nil {
				log.Warn("stop step finished late with error", logx.Err(err))
			}
		}()
	}
}
