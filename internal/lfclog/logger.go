// Package lfclog provides the process-wide structured logger for lfc.
package lfclog

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lfc-dev/lfc/internal/gitutil"
)

var (
	global     *slog.Logger
	globalFile io.Closer
	once       sync.Once
	mu         sync.RWMutex
)

// New installs the process-wide logger, writing to filename (or
// "<repo>/.lfc/lfc.log" when filename is empty) and optionally to stderr.
// Safe to call multiple times; each call replaces the previous logger.
func New(filename string, logToStderr bool) (*slog.Logger, error) {
	var writers []io.Writer

	if filename == "" {
		dir, err := gitutil.LFCDir()
		if err != nil {
			dir = ".lfc"
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		filename = filepath.Join(dir, "lfc.log")
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	writers = append(writers, f)
	if logToStderr {
		writers = append(writers, os.Stderr)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: resolveLevel(),
	})
	logger := slog.New(handler).With("pid", os.Getpid())

	mu.Lock()
	globalFile = f
	global = logger
	mu.Unlock()

	return logger, nil
}

// Get returns the process logger, defaulting to a discard logger until New
// has been called.
func Get() *slog.Logger {
	once.Do(func() {
		mu.Lock()
		if global == nil {
			global = NoOp()
		}
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// NoOp returns a logger that discards everything, used as the default
// before New is called and in tests.
func NoOp() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Close releases the underlying log file, if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if globalFile != nil {
		err := globalFile.Close()
		globalFile = nil
		return err
	}
	return nil
}

func resolveLevel() slog.Level {
	if v := os.Getenv("LFC_LOG_LEVEL"); v != "" {
		if lvl, ok := parseLevel(v); ok {
			return lvl
		}
	}
	if v, err := gitutil.ConfigGet("lfc.loglevel"); err == nil && v != "" {
		if lvl, ok := parseLevel(v); ok {
			return lvl
		}
	}
	return slog.LevelInfo
}

func parseLevel(value string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
