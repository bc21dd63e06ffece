// Package obslog provides the structured logger used across the
// networking core: a thin, level-aware wrapper over zap so call sites
// use a short key/value form instead of reaching for zap's field
// constructors directly.
package obslog

import (
	"sync"

	"go.uber.org/zap"
)

// Logger wraps a zap.SugaredLogger with a package-level default, mirroring
// the Default()/SetDefault() shape used across the rest of the core's
// dependency corpus.
type Logger struct {
	sugar *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	current *Logger
)

// New builds a Logger backed by a production zap configuration. Pass
// debug=true for development-friendly, human-readable output.
func New(debug bool) *Logger {
	var zl *zap.Logger
	var err error
	if debug {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		zl = zap.NewNop()
	}
	return &Logger{sugar: zl.Sugar()}
}

// Default returns the process-wide default logger, creating a
// production logger the first time it's requested.
func Default() *Logger {
	mu.RLock()
	if current != nil {
		defer mu.RUnlock()
		return current
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = New(false)
	}
	return current
}

// SetDefault installs l as the process-wide default logger.
func SetDefault(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

func (l *Logger) Debug(msg string, kv ...any) { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.sugar.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.sugar.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.sugar.Errorw(msg, kv...) }

// Sync flushes any buffered log entries. Call it before process exit.
func (l *Logger) Sync() error { return l.sugar.Sync() }
