package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for scan lifecycle events

func (l *Logger) LogScanStarted(ctx context.Context, scanID, accountID string, regions int) {
	l.WithContext(ctx).Info().
		Str("scan_id", scanID).
		Str("account_id", accountID).
		Int("regions", regions).
		Msg("scan started")
}

func (l *Logger) LogRegionFailed(ctx context.Context, scanID, region string, err error) {
	l.WithContext(ctx).Warn().
		Err(err).
		Str("scan_id", scanID).
		Str("region", region).
		Msg("region scan failed, continuing")
}

func (l *Logger) LogScanCompleted(ctx context.Context, scanID string, examined, findings int, monthlyWaste float64) {
	l.WithContext(ctx).Info().
		Str("scan_id", scanID).
		Int("resources_examined", examined).
		Int("findings", findings).
		Float64("estimated_monthly_waste", monthlyWaste).
		Msg("scan completed")
}

func (l *Logger) LogScanFailed(ctx context.Context, scanID string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("scan_id", scanID).
		Msg("scan failed")
}
