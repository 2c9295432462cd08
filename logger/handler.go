package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// OutputHandler represents a destination for log entries.
type OutputHandler interface {
	// Handle processes a log entry
	Handle(entry Entry) error
	// Close performs any cleanup necessary
	Close() error
}

// WriterHandler writes formatted entries to an io.Writer.
type WriterHandler struct {
	out       io.Writer
	formatter Formatter
	mu        sync.Mutex
}

// NewWriterHandler creates a handler writing to w.
func NewWriterHandler(w io.Writer, formatter Formatter) *WriterHandler {
	return &WriterHandler{out: w, formatter: formatter}
}

// NewConsoleHandler creates a new handler that outputs to stdout.
func NewConsoleHandler(formatter Formatter) *WriterHandler {
	return NewWriterHandler(os.Stdout, formatter)
}

// Handle writes the log entry.
func (h *WriterHandler) Handle(entry Entry) error {
	bytes, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(bytes)
	return err
}

// Close implements the OutputHandler interface.
func (h *WriterHandler) Close() error {
	return nil
}

// Formatter defines the interface for formatting log entries.
type Formatter interface {
	Format(entry Entry) ([]byte, error)
}

// JsonFormatter formats log entries as JSON.
type JsonFormatter struct {
	Pretty bool
}

// Format converts the log entry to JSON.
func (f *JsonFormatter) Format(entry Entry) ([]byte, error) {
	var bytes []byte
	var err error

	if f.Pretty {
		bytes, err = json.MarshalIndent(entry, "", "  ")
	} else {
		bytes, err = json.Marshal(entry)
	}
	if err != nil {
		return nil, err
	}

	return append(bytes, '\n'), nil
}

// TextFormatter formats log entries as human-readable text.
type TextFormatter struct {
	IncludeTimestamp bool
	TimestampFormat  string
	IncludeCaller    bool
}

// Format converts the log entry to text. Fields are sorted by key.
func (f *TextFormatter) Format(entry Entry) ([]byte, error) {
	var parts []string

	if f.IncludeTimestamp {
		format := f.TimestampFormat
		if format == "" {
			format = time.RFC3339
		}
		parts = append(parts, entry.Timestamp.Format(format))
	}

	parts = append(parts, fmt.Sprintf("[%s]", entry.Level))

	if entry.Service != "" {
		parts = append(parts, fmt.Sprintf("[%s]", entry.Service))
	}

	if f.IncludeCaller && entry.Caller != "" {
		parts = append(parts, fmt.Sprintf("(%s)", entry.Caller))
	}

	parts = append(parts, entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fieldsStr := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldsStr = append(fieldsStr, fmt.Sprintf("%s=%v", k, entry.Fields[k]))
		}
		parts = append(parts, fmt.Sprintf("{%s}", strings.Join(fieldsStr, ", ")))
	}

	if entry.TraceID != "" {
		parts = append(parts, fmt.Sprintf("trace=%s", entry.TraceID))
	}

	return []byte(strings.Join(parts, " ") + "\n"), nil
}
