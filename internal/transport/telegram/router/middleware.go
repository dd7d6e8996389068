package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	logx "coursewatch/pkg/logx"
)

// slowRequest promotes the request log line from debug to info.
const slowRequest = 750 * time.Millisecond

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] runs outermost.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					reqLogger(log, req).Error("panic recovered", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			l := reqLogger(log, req).With(logx.Int("args", len(req.Args)), logx.Duration("took", took))
			switch {
			case err != nil:
				l.Warn("command failed", logx.Err(err))
			case took >= slowRequest:
				l.Info("command done")
			default:
				l.Debug("command done")
			}
			return err
		}
	}
}

// MWChatSerial runs at most one handler per chat at a time, so replies to
// one subscriber never interleave. Waiting for the chat honors ctx.
func MWChatSerial(locks *ChatLocks) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			release, err := locks.Acquire(ctx, req.ChatID())
			if err != nil {
				return err
			}
			defer release()
			return next(ctx, req)
		}
	}
}

func reqLogger(fallback logx.Logger, req *Request) logx.Logger {
	if req != nil && !req.Logger.IsZero() {
		return req.Logger
	}
	return fallback
}

// ChatLocks hands out one lock per chat id. Idle entries are removed.
type ChatLocks struct {
	mu    sync.Mutex
	chats map[int64]*chatLock
}

type chatLock struct {
	sem  chan struct{}
	refs int
}

func NewChatLocks() *ChatLocks { return &ChatLocks{chats: map[int64]*chatLock{}} }

// Acquire blocks until the chat is free or ctx is done.
func (c *ChatLocks) Acquire(ctx context.Context, chatID int64) (release func(), err error) {
	c.mu.Lock()
	l := c.chats[chatID]
	if l == nil {
		l = &chatLock{sem: make(chan struct{}, 1)}
		c.chats[chatID] = l
	}
	l.refs++
	c.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.sem
				c.unref(chatID, l)
			})
		}, nil
	case <-ctx.Done():
		c.unref(chatID, l)
		return nil, ctx.Err()
	}
}

func (c *ChatLocks) unref(chatID int64, l *chatLock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.chats, chatID)
	}
}

func (c *ChatLocks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chats)
}
