package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"coursewatch/internal/course"
	logx "coursewatch/pkg/logx"
)

const maxBodyBytes = 16 << 20

type Config struct {
	URL           string
	Timeout       time.Duration
	BlockedStatus int
	RetryMax      int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration
	RatePerSec    float64
	UserAgent     string
}

// Client fetches course snapshots from the scraper endpoint:
//
//	GET <url>?course=<COURSE>&id_no=<IDENTITY>
//
// The body is a JSON array of section objects.
type Client struct {
	cfg     Config
	base    *url.URL
	http    *retryablehttp.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, errors.New("portal url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("portal url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("portal url: unsupported scheme %q", base.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BlockedStatus == 0 {
		cfg.BlockedStatus = http.StatusServiceUnavailable
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = 500 * time.Millisecond
	}
	if cfg.RetryWaitMax < cfg.RetryWaitMin {
		cfg.RetryWaitMax = 5 * time.Second
	}

	c := &Client{cfg: cfg, base: base, log: log}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.CheckRetry = c.checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{log: log}
	c.http = rc

	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return c, nil
}

// checkRetry never retries the block signal.
func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode == c.cfg.BlockedStatus {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Fetch returns every section the portal lists for courseCode.
//
// Errors: ErrBlocked (wrapped with the course), or *UpstreamError.
func (c *Client) Fetch(ctx context.Context, courseCode, identity string) (course.Snapshot, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &UpstreamError{Course: courseCode, Err: err}
		}
	}

	u := *c.base
	q := u.Query()
	q.Set("course", courseCode)
	q.Set("id_no", identity)
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &UpstreamError{Course: courseCode, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.cfg.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Course: courseCode, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("portal response",
		logx.Course(courseCode),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(start)),
	)

	switch {
	case resp.StatusCode == c.cfg.BlockedStatus:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("%s: %w", courseCode, ErrBlocked)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &UpstreamError{Course: courseCode, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &UpstreamError{Course: courseCode, Status: resp.StatusCode, Err: err}
	}
	snap, err := decodeSnapshot(body)
	if err != nil {
		return nil, &UpstreamError{Course: courseCode, Status: resp.StatusCode, Err: err}
	}
	return snap, nil
}

func decodeSnapshot(body []byte) (course.Snapshot, error) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrMalformedResponse)
	}
	var snap course.Snapshot
	if err := json.Unmarshal([]byte(trimmed), &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if snap == nil {
		snap = course.Snapshot{}
	}
	return snap, nil
}

// leveledLogger routes retryablehttp logs to debug level.
type leveledLogger struct{ log logx.Logger }

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Debug(msg, logx.KV(kv...)...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debug(msg, logx.KV(kv...)...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debug(msg, logx.KV(kv...)...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Debug(msg, logx.KV(kv...)...) }
