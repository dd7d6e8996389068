package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"coursewatch/internal/compose"
	"coursewatch/internal/course"
	"coursewatch/internal/diff"
	"coursewatch/internal/eventbus"
	"coursewatch/internal/fetcher"
	kit "coursewatch/internal/transport"
	logx "coursewatch/pkg/logx"

	"golang.org/x/time/rate"
)

const blockedNotice = "❌ The course checker is temporarily blocked by Cloudflare.\n" +
	"Please visit the enrollment site and solve the Cloudflare CAPTCHA/checkbox to unblock access.\n" +
	"After checking the Cloudflare checkbox, I'll be able to continue monitoring. I'll keep trying in the background."

// Service is safe for concurrent use. Sends to one chat keep the order in
// which the caller issues them.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender kit.Sender
	fetch  Fetcher
	bus    eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	// sleep waits d or until ctx is done; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, sender kit.Sender, fetch Fetcher, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:    log,
		sender: sender,
		fetch:  fetch,
		bus:    bus,
		sleep:  sleepCtx,
	}
	s.applyLocked(cfg)
	return s
}

// Apply swaps pacing settings at runtime.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.SendDelay < 0 {
		cfg.SendDelay = 0
	}
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = defaultMaxMessageLen
	}
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	} else if cfg.RatePerSec != s.cfg.RatePerSec {
		s.limiter.SetLimit(rate.Limit(cfg.RatePerSec))
		s.limiter.SetBurst(cfg.RatePerSec)
	}
	s.cfg = cfg
}

// Config returns the active settings with defaults applied.
func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Pause waits the configured send delay.
func (s *Service) Pause(ctx context.Context) error {
	return s.sleep(ctx, s.Config().SendDelay)
}

// SendText sends one HTML message. The error is logged here as well.
func (s *Service) SendText(ctx context.Context, chatID int64, text string) error {
	return s.send(ctx, chatID, text, kit.HTML())
}

// SendPlain sends one message without a parse mode.
func (s *Service) SendPlain(ctx context.Context, chatID int64, text string) error {
	return s.send(ctx, chatID, text, &kit.SendOptions{DisablePreview: true})
}

func (s *Service) send(ctx context.Context, chatID int64, text string, opt *kit.SendOptions) error {
	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()

	if s.sender == nil {
		return errors.New("notifier: no sender")
	}
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	_, err := s.sender.SendText(cctx, kit.ChatTarget{ChatID: chatID}, text, opt)
	switch {
	case errors.Is(err, kit.ErrUnreachable):
		s.log.Info("subscriber unreachable", logx.Chat(chatID), logx.Err(err))
	case err != nil:
		s.log.Warn("send failed", logx.Chat(chatID), logx.Err(err))
	}
	return err
}

// SendBlocks chunks blocks and sends the chunks in order, pausing between
// them. It stops at the first failed chunk; if that is the first chunk a
// short error notice is sent instead. It returns the number of chunks
// delivered.
func (s *Service) SendBlocks(ctx context.Context, chatID int64, blocks []string, title string) int {
	cfg := s.Config()
	chunks := compose.Chunk(blocks, cfg.MaxMessageLen, title)

	for i, chunk := range chunks {
		if i > 0 {
			if err := s.sleep(ctx, cfg.SendDelay); err != nil {
				return i
			}
		}
		err := s.SendText(ctx, chatID, chunk)
		if err == nil {
			continue
		}
		s.log.Error("chunk delivery failed",
			logx.Chat(chatID),
			logx.String("title", title),
			logx.Int("part", i+1),
			logx.Int("parts", len(chunks)),
			logx.Err(err),
		)
		eventbus.Publish(s.bus, eventbus.TypeDeliveryFailed, DeliveryFailure{
			ChatID: chatID,
			Title:  title,
			Part:   i + 1,
			Parts:  len(chunks),
			Error:  err.Error(),
		})
		if i == 0 && ctx.Err() == nil {
			_ = s.SendPlain(ctx, chatID, "❌ Error sending status update for "+title+". Please try again later.")
		}
		return i
	}
	return len(chunks)
}

// NotifyBlocked sends the fixed upstream-block notice.
func (s *Service) NotifyBlocked(ctx context.Context, chatID int64) bool {
	s.log.Warn("upstream block reported to subscriber", logx.Chat(chatID))
	return s.SendPlain(ctx, chatID, blockedNotice) == nil
}

// SendCourseStatus fetches the item and sends its current status.
//
// A block sends the block notice and returns an error wrapping
// portal.ErrBlocked; callers stop further work for the chat. An upstream
// failure sends an explicit failure message and returns the error.
func (s *Service) SendCourseStatus(ctx context.Context, item course.TrackedItem) error {
	if s.fetch == nil {
		return errors.New("notifier: no fetcher")
	}
	chatID := item.SubscriberID
	snap, err := s.fetch.FetchItem(ctx, item)
	switch fetcher.KindOf(err) {
	case fetcher.KindBlocked:
		s.NotifyBlocked(ctx, chatID)
		return err
	case fetcher.KindUpstream:
		s.log.Warn("status fetch failed", logx.Chat(chatID), logx.Course(item.Course), logx.Err(err))
		_ = s.SendPlain(ctx, chatID, "❌ Error fetching data for "+item.Course+". Could not check status.")
		return err
	}

	if item.Mode == course.SpecificSections {
		if missing := notFound(item.ClassNumbers, snap); len(missing) > 0 {
			_ = s.SendPlain(ctx, chatID, fmt.Sprintf("❌ Note: Section(s) %s for %s were not found in the latest data.",
				course.JoinInts(missing, ", "), item.Course))
		}
	}

	if len(snap) == 0 {
		msg := "No sections found matching your criteria for " + item.Course + ". 🤷‍♂️"
		if item.Mode == course.SpecificSections {
			msg += " (Sections: " + course.JoinInts(item.ClassNumbers, ", ") + ")"
		}
		_ = s.SendPlain(ctx, chatID, msg)
		return nil
	}

	suffix := item.LabelSuffix()
	s.SendBlocks(ctx, chatID, compose.Status(item.Course, snap, suffix), item.Course+suffix)
	return nil
}

// SendUpdates sends a non-empty diff for item and returns the number of
// chunks delivered.
func (s *Service) SendUpdates(ctx context.Context, item course.TrackedItem, d diff.Result) int {
	if d.Empty() {
		return 0
	}
	suffix := item.LabelSuffix()
	return s.SendBlocks(ctx, item.SubscriberID, compose.Updates(item.Course, d, suffix), compose.UpdatesTitle(item.Course, suffix))
}

func notFound(want []int, snap course.Snapshot) []int {
	have := make(map[int]struct{}, len(snap))
	for _, n := range snap.ClassNumbers() {
		have[n] = struct{}{}
	}
	var out []int
	for _, n := range want {
		if _, ok := have[n]; !ok {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
