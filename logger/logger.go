// Package logger provides the structured logger used across the federation
// service. Entries carry typed fields, the service name and, when the context
// holds an OpenTelemetry span, its trace and span ids.
package logger

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	}
	return InfoLevel, fmt.Errorf("logger: unknown level %q", s)
}

// Field represents a key-value pair in a structured log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F is a shorthand for creating a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Entry represents a log entry with metadata.
type Entry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
	Service   string                 `json:"service"`
	TraceID   string                 `json:"trace_id,omitempty"`
	SpanID    string                 `json:"span_id,omitempty"`

	severity Level
	ctx      context.Context
}

// Logger represents the main logger instance.
type Logger struct {
	handlers    []OutputHandler
	level       Level
	serviceName string
	mu          sync.RWMutex
	callDepth   int
	exit        func(int)
}

// LoggerOption defines a functional option for configuring Logger.
type LoggerOption func(*Logger)

// WithHandler adds an OutputHandler to the logger.
func WithHandler(handler OutputHandler) LoggerOption {
	return func(l *Logger) {
		l.handlers = append(l.handlers, handler)
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(l *Logger) {
		l.level = level
	}
}

// WithService sets the service name.
func WithService(name string) LoggerOption {
	return func(l *Logger) {
		l.serviceName = name
	}
}

// WithExitFunc replaces os.Exit for fatal entries.
func WithExitFunc(exit func(int)) LoggerOption {
	return func(l *Logger) {
		l.exit = exit
	}
}

// NewLogger creates a new logger with the given options.
func NewLogger(options ...LoggerOption) *Logger {
	logger := &Logger{
		handlers:    make([]OutputHandler, 0),
		level:       InfoLevel,
		serviceName: "unknown",
		callDepth:   3,
		exit:        os.Exit,
	}

	for _, option := range options {
		option(logger)
	}

	return logger
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewLogger(WithLevel(FatalLevel + 1))
}

// DefaultLogger creates a basic logger that writes text to the console.
func DefaultLogger(serviceName string) *Logger {
	return NewLogger(
		WithService(serviceName),
		WithHandler(NewConsoleHandler(&TextFormatter{IncludeTimestamp: true, IncludeCaller: true})),
		WithLevel(InfoLevel),
	)
}

// Enabled reports whether entries at level are emitted.
func (l *Logger) Enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

// getCaller returns the file name and line number of the caller.
func (l *Logger) getCaller() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		return "unknown:0"
	}
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func (l *Logger) log(ctx context.Context, level Level, message string, fields ...Field) {
	if !l.Enabled(level) {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fieldsMap := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		fieldsMap[field.Key] = field.Value
	}

	entry := Entry{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   message,
		Fields:    fieldsMap,
		Service:   l.serviceName,
		Caller:    l.getCaller(),
		severity:  level,
		ctx:       ctx,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}

	l.mu.RLock()
	handlers := l.handlers
	l.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.Handle(entry); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to log entry: %v\n", err)
		}
	}

	if level == FatalLevel {
		l.exit(1)
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, DebugLevel, message, fields...)
}

// Info logs an info message.
func (l *Logger) Info(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, InfoLevel, message, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, WarnLevel, message, fields...)
}

// Error logs an error message.
func (l *Logger) Error(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, ErrorLevel, message, fields...)
}

// Fatal logs a fatal message and exits the application.
func (l *Logger) Fatal(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, FatalLevel, message, fields...)
}

// AddHandler adds a handler to the logger.
func (l *Logger) AddHandler(handler OutputHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, handler)
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Close closes all handlers.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []string
	for _, handler := range l.handlers {
		if err := handler.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing handlers: %s", strings.Join(errs, "; "))
	}
	return nil
}

// With creates an EntryBuilder carrying the given fields.
func (l *Logger) With(fields ...Field) *EntryBuilder {
	fieldsMap := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		fieldsMap[field.Key] = field.Value
	}
	return &EntryBuilder{logger: l, fields: fieldsMap}
}

// EntryBuilder helps build entries with additional context.
type EntryBuilder struct {
	logger *Logger
	fields map[string]interface{}
	ctx    context.Context
}

// Context adds a context to the entry builder.
func (b *EntryBuilder) Context(ctx context.Context) *EntryBuilder {
	b.ctx = ctx
	return b
}

// WithField adds a field to the entry builder.
func (b *EntryBuilder) WithField(key string, value interface{}) *EntryBuilder {
	b.fields[key] = value
	return b
}

// WithError adds an error as a field.
func (b *EntryBuilder) WithError(err error) *EntryBuilder {
	if err != nil {
		b.fields["error"] = err.Error()
	}
	return b
}

func (b *EntryBuilder) Debug(message string) { b.logger.log(b.ctx, DebugLevel, message, b.fieldsToSlice()...) }
func (b *EntryBuilder) Info(message string)  { b.logger.log(b.ctx, InfoLevel, message, b.fieldsToSlice()...) }
func (b *EntryBuilder) Warn(message string)  { b.logger.log(b.ctx, WarnLevel, message, b.fieldsToSlice()...) }
func (b *EntryBuilder) Error(message string) { b.logger.log(b.ctx, ErrorLevel, message, b.fieldsToSlice()...) }
func (b *EntryBuilder) Fatal(message string) { b.logger.log(b.ctx, FatalLevel, message, b.fieldsToSlice()...) }

func (b *EntryBuilder) fieldsToSlice() []Field {
	fields := make([]Field, 0, len(b.fields))
	for k, v := range b.fields {
		fields = append(fields, Field{Key: k, Value: v})
	}
	return fields
}
