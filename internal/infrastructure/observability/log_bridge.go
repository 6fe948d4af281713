package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
)

// otlpLogWriter forwards every zerolog line to an OpenTelemetry logger as
// the record body, keeping the zerolog level as severity.
type otlpLogWriter struct {
	logger otellog.Logger
}

var _ zerolog.LevelWriter = (*otlpLogWriter)(nil)

func newOTLPLogWriter(logger otellog.Logger) *otlpLogWriter {
	return &otlpLogWriter{logger: logger}
}

func (w *otlpLogWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

func (w *otlpLogWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	severity, text := severityFor(level)

	var record otellog.Record
	now := time.Now()
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetSeverity(severity)
	record.SetSeverityText(text)
	record.SetBody(otellog.StringValue(strings.TrimRight(string(p), "\n")))

	w.logger.Emit(context.Background(), record)
	return len(p), nil
}

func severityFor(level zerolog.Level) (otellog.Severity, string) {
	switch level {
	case zerolog.TraceLevel:
		return otellog.SeverityTrace, "TRACE"
	case zerolog.DebugLevel:
		return otellog.SeverityDebug, "DEBUG"
	case zerolog.InfoLevel:
		return otellog.SeverityInfo, "INFO"
	case zerolog.WarnLevel:
		return otellog.SeverityWarn, "WARN"
	case zerolog.ErrorLevel:
		return otellog.SeverityError, "ERROR"
	case zerolog.FatalLevel:
		return otellog.SeverityFatal, "FATAL"
	case zerolog.PanicLevel:
		return otellog.SeverityFatal4, "PANIC"
	default:
		return otellog.SeverityUndefined, ""
	}
}
