// Package logging provides category-keyed structured logging for signald.
// All output goes to stderr so the stdio transport can keep stdout for
// protocol frames.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and shutdown
	CategoryStore     Category = "store"     // Event persistence and queries
	CategoryTools     Category = "tools"     // Tool dispatch and the pipeline
	CategoryTransport Category = "transport" // Stdio/HTTP bindings, push endpoint
	CategoryClient    Category = "client"    // Outbound sessions
	CategoryAgent     Category = "agent"     // Agent and event generator
)

var (
	mu      sync.RWMutex
	root    *zap.Logger
	loggers = make(map[Category]*zap.Logger)
)

// Initialize builds the logging backend. Should be called once at startup;
// until then Get returns no-op loggers.
func Initialize(verbose bool, jsonFormat bool) error {
	cfg := zap.NewProductionConfig()
	if !jsonFormat {
		cfg = zap.NewDevelopmentConfig()
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	root = logger
	loggers = make(map[Category]*zap.Logger)
	mu.Unlock()
	return nil
}

// Get returns (or creates) the logger for the given category.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	base := root
	mu.RUnlock()

	if base == nil {
		return zap.NewNop()
	}

	mu.Lock()
	defer mu.Unlock()
	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}
	l := base.Named(string(category))
	loggers[category] = l
	return l
}

// Sync flushes buffered log entries. Call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		_ = root.Sync()
	}
}
