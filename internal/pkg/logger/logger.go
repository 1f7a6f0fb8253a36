package logger

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with analysis-specific functionality
type Logger struct {
	*zap.Logger
	serviceName string
}

// ContextKey for request context values
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	SubjectKey   ContextKey = "subject"
	TraceIDKey   ContextKey = "trace_id"
)

// New creates a new logger instance
func New(serviceName, environment string, debug bool) (*Logger, error) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	config.InitialFields = map[string]interface{}{
		"service": serviceName,
		"env":     environment,
		"pid":     os.Getpid(),
	}

	zapLogger, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger:      zapLogger,
		serviceName: serviceName,
	}, nil
}

// NewNop returns a logger that discards everything. Used by tests and the CLI.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Named returns a named sub-logger
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		Logger:      l.Logger.Named(name),
		serviceName: l.serviceName,
	}
}

// WithContext returns a logger with context values
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := []zap.Field{}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if subject, ok := ctx.Value(SubjectKey).(string); ok && subject != "" {
		fields = append(fields, zap.String("subject", subject))
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}

	return &Logger{
		Logger:      l.With(fields...),
		serviceName: l.serviceName,
	}
}

// WithAnalysis returns a logger with analysis context
func (l *Logger) WithAnalysis(analysisID string) *Logger {
	return &Logger{
		Logger:      l.With(zap.String("analysis_id", analysisID)),
		serviceName: l.serviceName,
	}
}

// AnalysisStarted logs the start of an analysis run
func (l *Logger) AnalysisStarted(analysisType string, start, end time.Time) {
	l.Info("analysis started",
		zap.String("analysis_type", analysisType),
		zap.Time("start_date", start),
		zap.Time("end_date", end),
	)
}

// AnalysisCompleted logs the completion of an analysis run
func (l *Logger) AnalysisCompleted(transactions, findings int, riskScore float64, durationMs int64) {
	l.Info("analysis completed",
		zap.Int("transactions", transactions),
		zap.Int("findings", findings),
		zap.Float64("risk_score", riskScore),
		zap.Int64("duration_ms", durationMs),
	)
}

// PatternDetected logs a detected pattern
func (l *Logger) PatternDetected(patternType, entityID string, count int, riskScore float64) {
	l.Warn("suspicious pattern detected",
		zap.String("pattern_type", patternType),
		zap.String("entity_id", entityID),
		zap.Int("count", count),
		zap.Float64("risk_score", riskScore),
	)
}

// UpstreamFailure logs a failed transaction fetch
func (l *Logger) UpstreamFailure(op string, err error) {
	l.Error("transaction fetch failed",
		zap.String("op", op),
		zap.Error(err),
	)
}

// AlertRaised logs a high-risk alert
func (l *Logger) AlertRaised(alertNumber string, riskScore float64) {
	l.Warn("alert raised",
		zap.String("alert_number", alertNumber),
		zap.Float64("risk_score", riskScore),
	)
}

// LatencyWarning logs when a stage exceeds expected latency
func (l *Logger) LatencyWarning(stage string, durationMs, thresholdMs int64) {
	l.Warn("latency threshold exceeded",
		zap.String("stage", stage),
		zap.Int64("duration_ms", durationMs),
		zap.Int64("threshold_ms", thresholdMs),
	)
}

// Helper field functions

// ErrorField creates an error field
func ErrorField(err error) zap.Field {
	return zap.Error(err)
}

// StringField creates a string field
func StringField(key, value string) zap.Field {
	return zap.String(key, value)
}
