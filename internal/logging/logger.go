// Package logging provides categorized logging for plando.
// Every subsystem logs through a named category so that a single noisy
// component can be silenced without losing the rest. The package is a
// thin layer over zap: callers use printf-style helpers, zap handles
// levels, encoding and output.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // startup, wiring, shutdown
	CategoryConfig     Category = "config"     // config load and validation
	CategoryCatalog    Category = "catalog"    // intent catalog load/reload
	CategoryPerception Category = "perception" // heuristic + semantic classification
	CategorySession    Category = "session"    // session store, TTL eviction
	CategoryDialogue   Category = "dialogue"   // turn pipeline, phase transitions
	CategoryTools      Category = "tools"      // tool registry and dispatch
	CategoryGeneration Category = "generation" // prose assembly
	CategoryStore      Category = "store"      // transcript persistence
	CategoryAPI        Category = "api"        // completion service calls
)

var (
	mu         sync.RWMutex
	base       = zap.NewNop().Sugar()
	debugMode  bool
	categories map[Category]bool // nil means all categories enabled
)

// Init installs the process logger. Pass the zap logger built by the
// CLI (or a test logger); debug enables the *Debug helpers.
func Init(logger *zap.Logger, debug bool) {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	base = logger.Sugar()
	debugMode = debug
}

// SetCategories restricts logging to the named categories. An empty or
// nil map re-enables everything.
func SetCategories(enabled map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	if len(enabled) == 0 {
		categories = nil
		return
	}
	categories = make(map[Category]bool, len(enabled))
	for name, on := range enabled {
		categories[Category(name)] = on
	}
}

// IsDebugMode reports whether debug logging is active.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debugMode
}

func categoryEnabled(c Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if categories == nil {
		return true
	}
	return categories[c]
}

// Logger is a category-scoped view of the process logger.
type Logger struct {
	cat Category
}

// Get returns the logger for a category.
func Get(c Category) *Logger {
	return &Logger{cat: c}
}

func (l *Logger) sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With("cat", string(l.cat))
}

// Debug logs at debug level when debug mode is on.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !IsDebugMode() || !categoryEnabled(l.cat) {
		return
	}
	l.sugar().Debugf(format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	if !categoryEnabled(l.cat) {
		return
	}
	l.sugar().Infof(format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	if !categoryEnabled(l.cat) {
		return
	}
	l.sugar().Warnf(format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	if !categoryEnabled(l.cat) {
		return
	}
	l.sugar().Errorf(format, args...)
}

// =============================================================================
// CATEGORY HELPERS
// =============================================================================
// Shorthand for the common info/debug pair per category. Keeps call
// sites to one identifier: logging.Dialogue("phase %s -> %s", a, b).

func Boot(format string, args ...interface{})        { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{})   { Get(CategoryBoot).Debug(format, args...) }
func Config(format string, args ...interface{})      { Get(CategoryConfig).Info(format, args...) }
func ConfigDebug(format string, args ...interface{}) { Get(CategoryConfig).Debug(format, args...) }
func Catalog(format string, args ...interface{})     { Get(CategoryCatalog).Info(format, args...) }
func CatalogDebug(format string, args ...interface{}) {
	Get(CategoryCatalog).Debug(format, args...)
}
func Perception(format string, args ...interface{}) { Get(CategoryPerception).Info(format, args...) }
func PerceptionDebug(format string, args ...interface{}) {
	Get(CategoryPerception).Debug(format, args...)
}
func Session(format string, args ...interface{})      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }
func Dialogue(format string, args ...interface{})     { Get(CategoryDialogue).Info(format, args...) }
func DialogueDebug(format string, args ...interface{}) {
	Get(CategoryDialogue).Debug(format, args...)
}
func Tools(format string, args ...interface{})      { Get(CategoryTools).Info(format, args...) }
func ToolsDebug(format string, args ...interface{}) { Get(CategoryTools).Debug(format, args...) }
func Generation(format string, args ...interface{}) {
	Get(CategoryGeneration).Info(format, args...)
}
func GenerationDebug(format string, args ...interface{}) {
	Get(CategoryGeneration).Debug(format, args...)
}
func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func API(format string, args ...interface{})        { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{})   { Get(CategoryAPI).Debug(format, args...) }

// =============================================================================
// TIMING
// =============================================================================

// Timer measures a named operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level.
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}
