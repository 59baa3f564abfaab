package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the name of the rotating log file inside Options.Dir.
const FileName = "cap2cal.log"

// Options configures the default logger.
type Options struct {
	Level slog.Level

	// Dir enables a rotating log file at Dir/cap2cal.log
	Dir string

	// Stderr also writes to stderr. Logs never go to stdout, which carries
	// command output and, in MCP mode, the protocol stream.
	Stderr bool

	// JSON selects JSON lines instead of logfmt-style text.
	JSON bool
}

// New builds a slog logger backed by charmbracelet/log writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	formatter := log.TextFormatter
	if opts.JSON {
		formatter = log.JSONFormatter
	}
	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           log.Level(opts.Level),
		Prefix:          "cap2cal",
		Formatter:       formatter,
	})
	return slog.New(handler)
}

// Init creates the default slog logger. The returned closer releases the
// log file and is a no-op when Dir is empty.
func Init(opts Options) (io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, FileName),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		writers = append(writers, fileWriter)
		closer = fileWriter
	}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	slog.SetDefault(New(w, opts))
	return closer, nil
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
