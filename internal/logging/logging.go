// Package logging builds the process logger.
//
// Console output is human readable on a terminal and JSON otherwise. When a
// log file is configured, entries are also written as JSON to a rotated file
// with API keys and bearer tokens redacted.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ShayCichocki/switchyard/internal/config"
)

// RedactedValue replaces secrets in file output.
const RedactedValue = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{16,}`),
}

var globalMu sync.Mutex

// Options controls logger construction.
type Options struct {
	// Verbose forces debug level. Quiet forces warn level. Verbose wins.
	Verbose bool
	Quiet   bool
	// Console receives human or JSON output. Nil uses os.Stderr.
	Console io.Writer
}

// Logger is a configured zerolog logger plus the file it may own.
type Logger struct {
	zerolog.Logger
	file io.Closer
}

// New builds a logger from cfg and installs it as the zerolog global logger.
// A log file that cannot be opened is reported but console logging still works.
func New(cfg config.LoggingConfig, opts Options) (*Logger, error) {
	level, err := selectLevel(cfg.Level, opts.Verbose, opts.Quiet)
	if err != nil {
		return nil, err
	}

	console := opts.Console
	if console == nil {
		console = selectOutput(os.Stderr)
	}

	out := &Logger{}
	writer := console
	var fileErr error
	if cfg.File != "" {
		lj, err := newFileWriter(cfg)
		if err != nil {
			fileErr = err
		} else {
			out.file = lj
			writer = zerolog.MultiLevelWriter(console, &redactingWriter{w: lj})
		}
	}

	out.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()

	globalMu.Lock()
	log.Logger = out.Logger
	globalMu.Unlock()

	return out, fileErr
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// SetLevel changes the threshold applied to every logger in the process.
// Loggers still drop events below the level they were built with.
func SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// ParseLevel maps a config level to a zerolog level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

func selectLevel(level string, verbose, quiet bool) (zerolog.Level, error) {
	switch {
	case verbose:
		return zerolog.DebugLevel, nil
	case quiet:
		return zerolog.WarnLevel, nil
	default:
		return ParseLevel(level)
	}
}

// selectOutput uses a console writer on a color-capable terminal.
func selectOutput(f *os.File) io.Writer {
	if isatty.IsTerminal(f.Fd()) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}
	return f
}

func newFileWriter(cfg config.LoggingConfig) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}, nil
}

// Redact replaces known secret formats in s.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, RedactedValue)
	}
	return s
}

type redactingWriter struct {
	w io.Writer
}

// Write reports len(p) on success so zerolog does not treat a shortened
// redacted entry as a short write.
func (r *redactingWriter) Write(p []byte) (int, error) {
	if _, err := r.w.Write([]byte(Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
