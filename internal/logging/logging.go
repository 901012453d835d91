// Package logging is the process-wide zerolog logger.
//
// Init is called once from main; until then a JSON logger at info level
// writes to stderr so packages can log during tests and early startup.
//
//	logging.Info().Str("channel", "12").Msg("sd: mapped channel")
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, output format and an optional rotated log file.
type Config struct {
	Level  string // trace, debug, info, warn, error, disabled
	Format string // json or console

	// File, when set, receives a copy of every line; rotated by lumberjack.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	Output io.Writer // default os.Stderr
}

var (
	mu     sync.RWMutex
	logger zerolog.Logger
	closer io.Closer
)

func init() {
	build(Config{})
}

// Init reconfigures the global logger. Safe to call more than once.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	build(cfg)
}

// Close flushes and closes the rotated log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

// build must be called with mu held (or from init).
func build(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		closer = lj
		out = zerolog.MultiLevelWriter(out, lj)
	}
	logger = zerolog.New(out).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the global logger; tests use it to capture output.
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func Debug() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Debug()
}

func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Info()
}

func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Warn()
}

func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Error()
}
