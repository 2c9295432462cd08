package logger

import (
	"context"
	"fmt"
	"time"

	otellog "go.opentelemetry.io/otel/log"
)

// OTelHandler forwards entries to an OpenTelemetry logger so they are
// exported next to traces and metrics.
type OTelHandler struct {
	logger otellog.Logger
}

// NewOTelHandler creates a handler emitting through the named logger of provider.
func NewOTelHandler(provider otellog.LoggerProvider, name string) *OTelHandler {
	return &OTelHandler{logger: provider.Logger(name)}
}

// Handle emits the entry as an OpenTelemetry log record.
func (h *OTelHandler) Handle(entry Entry) error {
	ctx := entry.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	var rec otellog.Record
	rec.SetTimestamp(entry.Timestamp)
	rec.SetObservedTimestamp(time.Now())
	rec.SetSeverity(severity(entry.severity))
	rec.SetSeverityText(entry.Level)
	rec.SetBody(otellog.StringValue(entry.Message))

	attrs := make([]otellog.KeyValue, 0, len(entry.Fields)+2)
	attrs = append(attrs, otellog.String("service", entry.Service))
	if entry.Caller != "" {
		attrs = append(attrs, otellog.String("caller", entry.Caller))
	}
	for k, v := range entry.Fields {
		attrs = append(attrs, keyValue(k, v))
	}
	rec.AddAttributes(attrs...)

	h.logger.Emit(ctx, rec)
	return nil
}

// Close is a no-op; the logger provider is shut down by its owner.
func (h *OTelHandler) Close() error {
	return nil
}

func severity(l Level) otellog.Severity {
	switch l {
	case DebugLevel:
		return otellog.SeverityDebug
	case InfoLevel:
		return otellog.SeverityInfo
	case WarnLevel:
		return otellog.SeverityWarn
	case ErrorLevel:
		return otellog.SeverityError
	case FatalLevel:
		return otellog.SeverityFatal
	default:
		return otellog.SeverityUndefined
	}
}

func keyValue(key string, v interface{}) otellog.KeyValue {
	switch val := v.(type) {
	case string:
		return otellog.String(key, val)
	case bool:
		return otellog.Bool(key, val)
	case int:
		return otellog.Int(key, val)
	case int64:
		return otellog.Int64(key, val)
	case float64:
		return otellog.Float64(key, val)
	case []string:
		values := make([]otellog.Value, len(val))
		for i, s := range val {
			values[i] = otellog.StringValue(s)
		}
		return otellog.Slice(key, values...)
	case error:
		return otellog.String(key, val.Error())
	case fmt.Stringer:
		return otellog.String(key, val.String())
	default:
		return otellog.String(key, fmt.Sprint(val))
	}
}
