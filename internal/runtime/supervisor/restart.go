package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	logx "coursewatch/pkg/logx"
)

// A run that lasted this long resets the backoff.
const healthyRun = 30 * time.Second

type RestartOption func(*restarter)

// WithRestartBackoff sets the exponential backoff window between restarts.
func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(r *restarter) {
		if min > 0 {
			r.min = min
		}
		if max > 0 {
			r.max = max
		}
	}
}

// WithMaxRestarts limits restarts before giving up. The initial run is not counted.
func WithMaxRestarts(n int) RestartOption { return func(r *restarter) { r.maxRestarts = n } }

// WithPublishFirstError makes the first failure visible through Err while
// the loop keeps restarting.
func WithPublishFirstError(enabled bool) RestartOption {
	return func(r *restarter) { r.publish = enabled }
}

// WithStopOnCleanExit stops instead of restarting when fn returns nil. Default true.
func WithStopOnCleanExit(enabled bool) RestartOption {
	return func(r *restarter) { r.stopOnClean = enabled }
}

type restarter struct {
	sup  *Supervisor
	name string
	fn   func(ctx context.Context) error

	min, max    time.Duration
	maxRestarts int // <=0 means unlimited
	stopOnClean bool
	publish     bool
}

// GoRestart runs fn and restarts it on error or panic with jittered
// exponential backoff until the supervisor context is canceled.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	r := &restarter{
		sup:         s,
		name:        name,
		fn:          fn,
		min:         250 * time.Millisecond,
		max:         30 * time.Second,
		stopOnClean: true,
	}
	for _, o := range opts {
		o(r)
	}
	r.max = max(r.max, r.min)
	s.Go0(name+".restart", r.loop)
}

// GoRestart0 is GoRestart for functions that don't return an error.
func (s *Supervisor) GoRestart0(name string, fn func(ctx context.Context), opts ...RestartOption) {
	if fn == nil {
		return
	}
	s.GoRestart(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	}, opts...)
}

func (r *restarter) loop(ctx context.Context) {
	log := r.sup.log.With(logx.String("name", r.name))
	backoff := r.min
	for restarts := 0; ; restarts++ {
		if ctx.Err() != nil {
			return
		}
		began := time.Now()
		err := guard(ctx, r.fn)
		var pe *panicError
		if errors.As(err, &pe) {
			log.Error("goroutine panicked (restart)", logx.Any("panic", pe.v), logx.Stack(pe.stack))
		}
		// Dependencies stopped during shutdown: treat as a clean stop.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		if err == nil {
			if r.stopOnClean {
				return
			}
			err = errors.New("exited")
		}
		err = fmt.Errorf("%s: %w", r.name, err)
		if r.publish {
			r.sup.record(err)
		}
		if r.maxRestarts > 0 && restarts >= r.maxRestarts {
			log.Error("goroutine gave up after restarts", logx.Int("restarts", restarts), logx.Err(err))
			return
		}

		if time.Since(began) >= healthyRun {
			backoff = r.min
		}
		wait := jitter(backoff)
		log.Warn("goroutine restarting", logx.Duration("backoff", wait), logx.Err(err))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff = min(backoff*2, r.max)
	}
}

// jitter adds up to 20% to d.
func jitter(d time.Duration) time.Duration {
	if j := int64(d / 5); j > 0 {
		return d + time.Duration(rand.Int64N(j+1))
	}
	return d
}
