// Package logging provides categorized logging for the reconciliation agent.
// Each subsystem logs under its own named category so a single session's
// activity can be followed across the orchestrator, sandbox, and API layers.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup and configuration
	CategorySession Category = "session" // Session registry and lifecycle
	CategoryAgent   Category = "agent"   // Orchestrator state machine
	CategorySandbox Category = "sandbox" // Code validation and execution
	CategoryLLM     Category = "llm"     // LLM collaborator calls
	CategoryAPI     Category = "api"     // Host-facing operation surface
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Initialize sets up the process-wide logger. Debug mode switches to the
// development encoder and enables debug-level output.
func Initialize(debug bool) error {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	base = logger
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// SetLogger replaces the process-wide logger. Used by tests and by hosts that
// already own a zap configuration.
func SetLogger(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = logger
	loggers = make(map[Category]*zap.SugaredLogger)
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}

// Get returns the sugared logger for a category.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	if base == nil {
		base = zap.NewNop()
	}
	l := base.Named(string(cat)).Sugar()
	loggers[cat] = l
	return l
}

// Convenience helpers mirroring the categories above.

func Session(format string, args ...any)      { Get(CategorySession).Infof(format, args...) }
func SessionDebug(format string, args ...any) { Get(CategorySession).Debugf(format, args...) }
func Agent(format string, args ...any)        { Get(CategoryAgent).Infof(format, args...) }
func AgentDebug(format string, args ...any)   { Get(CategoryAgent).Debugf(format, args...) }
func AgentWarn(format string, args ...any)    { Get(CategoryAgent).Warnf(format, args...) }
func Sandbox(format string, args ...any)      { Get(CategorySandbox).Infof(format, args...) }
func SandboxDebug(format string, args ...any) { Get(CategorySandbox).Debugf(format, args...) }
func SandboxWarn(format string, args ...any)  { Get(CategorySandbox).Warnf(format, args...) }
func LLM(format string, args ...any)          { Get(CategoryLLM).Infof(format, args...) }
func LLMDebug(format string, args ...any)     { Get(CategoryLLM).Debugf(format, args...) }
func API(format string, args ...any)          { Get(CategoryAPI).Infof(format, args...) }
func APIWarn(format string, args ...any)      { Get(CategoryAPI).Warnf(format, args...) }
