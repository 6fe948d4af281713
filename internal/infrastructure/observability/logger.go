package observability

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

var (
	loggerMu      sync.Mutex
	loggerOutput  io.Writer = os.Stdout
	loggerService string
	loggerEnv     string
)

// InitLogger configures the global zerolog logger. It is also installed as
// the default context logger, so log.Ctx on a bare context still writes.
func InitLogger(serviceName, env string) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	loggerService = serviceName
	loggerEnv = env
	loggerOutput = os.Stdout
	setGlobalLogger(buildLogger(loggerOutput, serviceName, env))
}

// buildLogger writes JSON to out. Development adds a console writer on
// stdout and drops caller info.
func buildLogger(out io.Writer, serviceName, env string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	ctx := zerolog.New(out).With()
	if env == "development" {
		console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		var w io.Writer = console
		if out != os.Stdout {
			w = zerolog.MultiLevelWriter(console, out)
		}
		ctx = zerolog.New(w).With()
	} else {
		ctx = ctx.Caller()
	}
	return ctx.Timestamp().Str("service", serviceName).Logger()
}

func setGlobalLogger(l zerolog.Logger) {
	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger
}

// teeLogs adds w as an extra destination for the global logger.
func teeLogs(w io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	loggerOutput = zerolog.MultiLevelWriter(os.Stdout, w)
	setGlobalLogger(buildLogger(loggerOutput, loggerService, loggerEnv))
}

// LoggerFromContext returns a logger with trace context
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	logger := log.With().Logger()

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return &logger
}

// GetLogger returns the global logger
func GetLogger() *zerolog.Logger {
	return &log.Logger
}
