package spies

import (
	"context"
	"sync"
)

// Log levels as recorded by the logger spies.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// SpyLogRecord represents one captured log call.
type SpyLogRecord struct {
	Level   string
	Message string
	Args    []any
}

// Attr returns the value following key in Args.
func (r SpyLogRecord) Attr(key string) (any, bool) {
	for i := 0; i+1 < len(r.Args); i += 2 {
		if k, ok := r.Args[i].(string); ok && k == key {
			return r.Args[i+1], true
		}
	}

	return nil, false
}

type logRecorder struct {
	mu      sync.Mutex
	records []SpyLogRecord
}

func (r *logRecorder) record(level, msg string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, SpyLogRecord{Level: level, Message: msg, Args: append([]any(nil), args...)})
}

// GetRecords returns a copy of all captured log calls.
func (r *logRecorder) GetRecords() []SpyLogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]SpyLogRecord(nil), r.records...)
}

// HasLog reports whether a message was logged at the level.
func (r *logRecorder) HasLog(level, message string) bool {
	_, found := r.FindLog(level, message)
	return found
}

// FindLog returns the first record with the level and message.
func (r *logRecorder) FindLog(level, message string) (SpyLogRecord, bool) {
	for _, record := range r.GetRecords() {
		if record.Level == level && record.Message == message {
			return record, true
		}
	}

	return SpyLogRecord{}, false
}

// HasInfoLog reports whether the message was logged at info level.
func (r *logRecorder) HasInfoLog(message string) bool {
	return r.HasLog(LevelInfo, message)
}

// HasWarnLog reports whether the message was logged at warn level.
func (r *logRecorder) HasWarnLog(message string) bool {
	return r.HasLog(LevelWarn, message)
}

// HasErrorLog reports whether the message was logged at error level.
func (r *logRecorder) HasErrorLog(message string) bool {
	return r.HasLog(LevelError, message)
}

// ContextualLoggerSpy captures circulation.ContextualLogger calls.
type ContextualLoggerSpy struct {
	logRecorder
}

// NewContextualLoggerSpy creates an empty ContextualLoggerSpy.
func NewContextualLoggerSpy() *ContextualLoggerSpy {
	return &ContextualLoggerSpy{}
}

// DebugContext records a debug message.
func (s *ContextualLoggerSpy) DebugContext(_ context.Context, msg string, args ...any) {
	s.record(LevelDebug, msg, args)
}

// InfoContext records an info message.
func (s *ContextualLoggerSpy) InfoContext(_ context.Context, msg string, args ...any) {
	s.record(LevelInfo, msg, args)
}

// WarnContext records a warning.
func (s *ContextualLoggerSpy) WarnContext(_ context.Context, msg string, args ...any) {
	s.record(LevelWarn, msg, args)
}

// ErrorContext records an error message.
func (s *ContextualLoggerSpy) ErrorContext(_ context.Context, msg string, args ...any) {
	s.record(LevelError, msg, args)
}

// LoggerSpy captures circulation.Logger calls.
type LoggerSpy struct {
	logRecorder
}

// NewLoggerSpy creates an empty LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{}
}

// Debug records a debug message.
func (s *LoggerSpy) Debug(msg string, args ...any) {
	s.record(LevelDebug, msg, args)
}

// Info records an info message.
func (s *LoggerSpy) Info(msg string, args ...any) {
	s.record(LevelInfo, msg, args)
}

// Warn records a warning.
func (s *LoggerSpy) Warn(msg string, args ...any) {
	s.record(LevelWarn, msg, args)
}

// Error records an error message.
func (s *LoggerSpy) Error(msg string, args ...any) {
	s.record(LevelError, msg, args)
}
