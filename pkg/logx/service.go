package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	kit "coursewatch/internal/transport"
)

const defaultLogFile = "./logs/coursewatch.log"

type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Telegram TelegramConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// TelegramConfig mirrors log lines at or above MinLevel into an ops chat.
type TelegramConfig struct {
	Enabled    bool
	ChatID     int64
	ThreadID   int
	MinLevel   string
	RatePerSec int
}

// Service owns the log sinks and swaps them on Apply.
type Service struct {
	mu   sync.Mutex
	root atomic.Pointer[zerolog.Logger]
	file *os.File
	ops  *opsSink
}

// New applies cfg and returns the Service with a live root Logger. sender
// carries the ops-chat lines; it may be nil.
func New(cfg Config, sender kit.Sender) (*Service, Logger) {
	setGlobals()
	s := &Service{ops: newOpsSink(sender)}
	boot := zerolog.New(consoleWriter()).Level(parseLevel(cfg.Level, zerolog.InfoLevel)).With().Timestamp().Logger()
	s.root.Store(&boot)
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// Apply rebuilds the sinks from cfg. Loggers already handed out pick up the
// change on their next line.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter())
	}
	if f := s.reopenFile(cfg.File); f != nil {
		writers = append(writers, zerolog.SyncWriter(f))
	}
	s.ops.configure(cfg.Telegram)
	if cfg.Telegram.Enabled {
		writers = append(writers, s.ops)
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter())
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

// reopenFile closes the current log file and opens the configured one.
// Caller holds s.mu.
func (s *Service) reopenFile(cfg FileConfig) *os.File {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	if !cfg.Enabled {
		return nil
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultLogFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "logx: create log dir for %q: %v\n", path, err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logx: open log file %q: %v\n", path, err)
		return nil
	}
	s.file = f
	return f
}

// Close stops the ops-chat worker and closes the log file.
func (s *Service) Close() error {
	s.ops.close()

	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()
	if f != nil {
		return f.Close()
	}
	return nil
}
