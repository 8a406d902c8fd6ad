package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Config struct {
	Level       string
	Format      string
	OutputPaths []string
}

var (
	mu            sync.RWMutex
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	closers       []io.Closer
)

// Init replaces the process logger. It may be called more than once; earlier
// file outputs are closed.
func Init(cfg Config) error {
	handler, files, err := buildHandler(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	for _, c := range closers {
		_ = c.Close()
	}
	closers = files
	defaultLogger = slog.New(handler)
	return nil
}

// New builds a standalone logger without touching the process default.
func New(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Named returns the process logger tagged with a component name.
func Named(component string) *slog.Logger {
	return L().With(slog.String("component", component))
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	for _, c := range closers {
		_ = c.Close()
	}
	closers = nil
}

func buildHandler(cfg Config) (slog.Handler, []io.Closer, error) {
	var files []io.Closer
	writers := make([]io.Writer, 0, len(cfg.OutputPaths))
	for _, out := range cfg.OutputPaths {
		writer, closer, err := openWriter(out)
		if err != nil {
			for _, c := range files {
				_ = c.Close()
			}
			return nil, nil, err
		}
		if closer != nil {
			files = append(files, closer)
		}
		writers = append(writers, writer)
	}
	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stderr
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(writer, opts), files, nil
	}
	return slog.NewJSONHandler(writer, opts), files, nil
}

func openWriter(path string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(path)) {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	case "discard", "none":
		return io.Discard, nil, nil
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		return file, file, nil
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
