package broadcast

import (
	"context"
	"strings"
	"sync"
	"time"

	"coursewatch/internal/course"
	"coursewatch/internal/diff"
	"coursewatch/internal/eventbus"
	"coursewatch/internal/fetcher"
	logx "coursewatch/pkg/logx"

	"github.com/robfig/cron/v3"
)

const flushTimeout = 30 * time.Second

type Scheduler struct {
	store  Store
	fetch  Fetcher
	notify Notifier
	bus    eventbus.Bus
	log    logx.Logger

	// held for the whole cycle; the previous-snapshot map has one writer
	cycleMu sync.Mutex

	bmu     sync.Mutex
	blocked map[int64]bool // block notice already sent this episode

	mu     sync.Mutex
	c      *cron.Cron
	warm   *time.Timer
	cancel context.CancelFunc
}

func New(store Store, fetch Fetcher, notify Notifier, bus eventbus.Bus, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		store:   store,
		fetch:   fetch,
		notify:  notify,
		bus:     bus,
		log:     log,
		blocked: map[int64]bool{},
	}
}

// RunCycle processes every subscriber once and flushes the store once at
// the end. It returns ErrCycleRunning if a cycle is already in progress and
// the flush error otherwise.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, error) {
	if !s.cycleMu.TryLock() {
		return CycleReport{}, ErrCycleRunning
	}
	defer s.cycleMu.Unlock()

	start := time.Now()
	var rep CycleReport
	for _, id := range s.store.IDs() {
		if ctx.Err() != nil {
			break
		}
		prefs, ok := s.store.Get(id)
		if !ok {
			continue
		}
		if strings.TrimSpace(prefs.Identity) == "" {
			rep.Skipped++
			continue
		}
		items := prefs.TrackedItems(id)
		if len(items) == 0 {
			continue
		}
		rep.Subscribers++
		if s.runSubscriber(ctx, id, prefs.Previous, items, &rep) == runDone {
			s.clearBlocked(id)
		}
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	err := s.store.Flush(fctx)
	cancel()

	rep.Took = time.Since(start)
	s.log.Info("cycle finished",
		logx.Int("subscribers", rep.Subscribers),
		logx.Int("skipped", rep.Skipped),
		logx.Int("items", rep.Items),
		logx.Int("fetched", rep.Fetched),
		logx.Int("failed", rep.Failed),
		logx.Int("blocked", rep.Blocked),
		logx.Int("notified", rep.Notified),
		logx.Duration("took", rep.Took),
		logx.Err(err),
	)
	eventbus.Publish(s.bus, eventbus.TypeCycle, rep)
	return rep, err
}

// runResult is how a subscriber's run ended.
type runResult int

const (
	runDone runResult = iota
	runBlocked
	runInterrupted
)

func (s *Scheduler) runSubscriber(ctx context.Context, id int64, previous map[string]course.Snapshot, items []course.TrackedItem, rep *CycleReport) runResult {
	log := s.log.With(logx.Chat(id))
	sent := false
	for i, item := range items {
		if ctx.Err() != nil {
			return runInterrupted
		}
		if sent {
			if err := s.notify.Pause(ctx); err != nil {
				return runInterrupted
			}
			sent = false
		}
		key := item.Key()
		rep.Items++

		snap, err := s.fetch.FetchItem(ctx, item)
		switch fetcher.KindOf(err) {
		case fetcher.KindBlocked:
			rep.Blocked++
			left := len(items) - i - 1
			log.Warn("upstream blocked, skipping subscriber for this cycle",
				logx.Course(item.Course), logx.Int("skipped", left))
			eventbus.Publish(s.bus, eventbus.TypeBlocked, BlockedEvent{ChatID: id, Course: item.Course, Skipped: left})
			if s.markBlocked(id) {
				s.notify.NotifyBlocked(ctx, id)
			}
			return runBlocked
		case fetcher.KindUpstream:
			rep.Failed++
			log.Warn("fetch failed", logx.String("key", key), logx.Err(err))
			continue
		}
		rep.Fetched++

		if prev, ok := previous[key]; ok {
			if d := diff.Compute(prev, snap); !d.Empty() {
				log.Info("changes detected", logx.String("key", key),
					logx.Int("added", len(d.Added)), logx.Int("removed", len(d.Removed)),
					logx.Int("enrollment", len(d.Enrollments)))
				if s.notify.SendUpdates(ctx, item, d) > 0 {
					rep.Notified++
					sent = true
				}
			}
		} else {
			log.Debug("baseline stored", logx.String("key", key), logx.Int("sections", len(snap)))
		}

		if !s.store.SetPrevious(id, key, snap) {
			log.Debug("item no longer tracked, snapshot dropped", logx.String("key", key))
		}
	}
	if ctx.Err() != nil {
		return runInterrupted
	}
	return runDone
}

// markBlocked reports whether this is the first block of an episode. An
// episode ends with the subscriber's next run that completes unblocked;
// an interrupted run does not end it.
func (s *Scheduler) markBlocked(id int64) bool {
	s.bmu.Lock()
	defer s.bmu.Unlock()
	if s.blocked[id] {
		return false
	}
	s.blocked[id] = true
	return true
}

func (s *Scheduler) clearBlocked(id int64) {
	s.bmu.Lock()
	delete(s.blocked, id)
	s.bmu.Unlock()
}
