package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/banking/batch-analysis/internal/config"
	"github.com/banking/batch-analysis/internal/domain"
	"github.com/banking/batch-analysis/internal/patterns"
	"github.com/banking/batch-analysis/internal/pkg/logger"
)

const tracerName = "github.com/banking/batch-analysis/internal/analysis"

// Run outcomes reported to the metrics recorder
const (
	OutcomeSuccess          = "success"
	OutcomeEmpty            = "empty"
	OutcomeInvalid          = "invalid"
	OutcomeUpstreamError    = "upstream_error"
	OutcomeComputationError = "computation_error"
)

// TransactionStore is the upstream transaction query collaborator
type TransactionStore interface {
	FindTransactions(ctx context.Context, q domain.TransactionQuery) ([]domain.Transaction, error)
}

// ResultStore keeps finished results for later retrieval
type ResultStore interface {
	Save(ctx context.Context, result *domain.AnalysisResult) error
	Get(ctx context.Context, analysisID string) (*domain.AnalysisResult, error)
}

// EventPublisher announces finished runs and high-risk alerts
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, event *domain.AnalysisCompletedEvent) error
	PublishAlert(ctx context.Context, alert *domain.AnalysisAlert) error
}

// MetricsRecorder receives run-level measurements
type MetricsRecorder interface {
	RunCompleted(outcome string, duration time.Duration)
	TransactionsFetched(n int)
	PatternsDetected(findings []domain.PatternFinding)
}

// Engine runs suspicious-pattern analyses: fetch, detect, aggregate,
// recommend, then hand the result to the optional result store and publisher.
type Engine struct {
	store          TransactionStore
	results        ResultStore
	publisher      EventPublisher
	metrics        MetricsRecorder
	detector       *patterns.Detector
	riskCalculator *patterns.RiskCalculator

	cfg    *config.AnalysisConfig
	log    *logger.Logger
	tracer trace.Tracer
	now    func() time.Time

	// Metrics
	runCount     int64
	avgLatencyMs float64
	latencyMu    sync.RWMutex
}

// NewEngine creates a new analysis engine. results, publisher and metrics may be nil.
func NewEngine(
	store TransactionStore,
	results ResultStore,
	publisher EventPublisher,
	detector *patterns.Detector,
	riskCalculator *patterns.RiskCalculator,
	metrics MetricsRecorder,
	cfg *config.AnalysisConfig,
	log *logger.Logger,
) *Engine {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if cfg == nil {
		cfg = &config.AnalysisConfig{}
	}
	return &Engine{
		store:          store,
		results:        results,
		publisher:      publisher,
		metrics:        metrics,
		detector:       detector,
		riskCalculator: riskCalculator,
		cfg:            cfg,
		log:            log.Named("analysis_engine"),
		tracer:         otel.Tracer(tracerName),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Run performs a suspicious-pattern analysis for the request's window.
// Errors are *domain.ValidationError, *domain.UpstreamFetchError or
// *domain.ComputationError. An empty window is a successful zero result.
func (e *Engine) Run(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		e.metrics.RunCompleted(OutcomeInvalid, 0)
		return nil, err
	}

	startTime := time.Now()
	ctx, span := e.tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("analysis.type", string(req.AnalysisType)),
		attribute.String("analysis.start_date", req.StartDate.Format(time.RFC3339)),
		attribute.String("analysis.end_date", req.EndDate.Format(time.RFC3339)),
	))
	defer span.End()

	log := e.log.WithContext(ctx)
	log.AnalysisStarted(string(req.AnalysisType), req.StartDate, req.EndDate)

	txs, err := e.fetch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction fetch failed")
		e.metrics.RunCompleted(OutcomeUpstreamError, time.Since(startTime))
		return nil, err
	}
	e.metrics.TransactionsFetched(len(txs))

	result, escalate, err := e.compute(ctx, req, txs)
	if err != nil {
		log.Error("analysis computation failed", logger.ErrorField(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis computation failed")
		e.metrics.RunCompleted(OutcomeComputationError, time.Since(startTime))
		return nil, err
	}

	log = log.WithAnalysis(result.AnalysisID)
	span.SetAttributes(
		attribute.String("analysis.id", result.AnalysisID),
		attribute.Int("analysis.findings", len(result.PatternsDetected)),
		attribute.Float64("analysis.risk_score", result.RiskScore),
	)
	for _, p := range result.PatternsDetected {
		log.PatternDetected(string(p.Type), p.EntityID, p.Count, p.RiskScore)
	}
	e.metrics.PatternsDetected(result.PatternsDetected)

	e.dispatch(ctx, log, result, escalate)

	duration := time.Since(startTime)
	e.recordLatency(duration.Milliseconds())
	if e.cfg.MaxRunLatency > 0 && duration > e.cfg.MaxRunLatency {
		log.LatencyWarning("analysis_run", duration.Milliseconds(), e.cfg.MaxRunLatency.Milliseconds())
	}

	outcome := OutcomeSuccess
	if len(txs) == 0 {
		outcome = OutcomeEmpty
	}
	e.metrics.RunCompleted(outcome, duration)
	log.AnalysisCompleted(len(txs), len(result.PatternsDetected), result.RiskScore, duration.Milliseconds())

	return result, nil
}

// Result returns a previously stored result
func (e *Engine) Result(ctx context.Context, analysisID string) (*domain.AnalysisResult, error) {
	if e.results == nil {
		return nil, domain.ErrResultNotFound
	}
	return e.results.Get(ctx, analysisID)
}

// fetch queries the store under the fetch timeout and rejects malformed records
func (e *Engine) fetch(ctx context.Context, req *domain.AnalysisRequest) ([]domain.Transaction, error) {
	ctx, span := e.tracer.Start(ctx, "analysis.fetch")
	defer span.End()

	if e.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
	}

	query := req.Query()
	txs, err := e.store.FindTransactions(ctx, query)
	if err != nil {
		var upstream *domain.UpstreamFetchError
		if !errors.As(err, &upstream) {
			err = domain.NewUpstreamFetchError("find_transactions", err)
		}
		e.log.UpstreamFailure("find_transactions", err)
		return nil, err
	}

	filtered := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			e.log.UpstreamFailure("malformed_record", err)
			return nil, domain.NewUpstreamFetchError("malformed_record", err)
		}
		if query.Matches(tx) {
			filtered = append(filtered, tx)
		}
	}

	span.SetAttributes(attribute.Int("analysis.transactions", len(filtered)))
	return filtered, nil
}

// compute runs detection, aggregation and recommendation and assembles the
// result. escalate is decided on the unrounded aggregate so that it always
// agrees with the recommendation banner. Panics in the pure core are converted
// into ComputationErrors.
func (e *Engine) compute(ctx context.Context, req *domain.AnalysisRequest, txs []domain.Transaction) (result *domain.AnalysisResult, escalate bool, err error) {
	_, span := e.tracer.Start(ctx, "analysis.detect")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("analysis computation panicked", zap.Any("panic", r), zap.Stack("stack"))
			result = nil
			escalate = false
			err = domain.NewComputationError("detection", fmt.Errorf("%v", r))
		}
	}()

	now := e.now()
	result = &domain.AnalysisResult{
		AnalysisID:       NewAnalysisID(now),
		AnalysisType:     req.AnalysisType,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		PatternsDetected: make([]domain.PatternFinding, 0),
		Recommendations:  make([]string, 0),
		CreatedAt:        now,
	}
	if len(txs) == 0 {
		return result, false, nil
	}

	findings := e.detector.Detect(txs)
	aggregate := e.riskCalculator.Aggregate(findings)
	if math.IsNaN(aggregate) || math.IsInf(aggregate, 0) {
		return nil, false, domain.NewComputationError("aggregation", fmt.Errorf("non-finite aggregate risk %v", aggregate))
	}

	result.TotalEntities = countDistinctSenders(txs)
	result.FlaggedEntities = len(domain.DistinctEntityIDs(findings))
	result.SuspiciousTransactions = len(txs)
	result.RiskScore = patterns.RoundScore(aggregate)
	result.PatternsDetected = findings
	result.Recommendations = patterns.Recommend(aggregate, findings)

	return result, domain.RequiresEscalation(aggregate), nil
}

// dispatch saves and announces the result. Failures are logged, never returned.
func (e *Engine) dispatch(ctx context.Context, log *logger.Logger, result *domain.AnalysisResult, escalate bool) {
	if e.results == nil && e.publisher == nil {
		return
	}

	// The request may be cancelled once the response is written; the
	// follow-up work gets its own budget.
	base := context.WithoutCancel(ctx)
	var (
		dctx   context.Context
		cancel context.CancelFunc
	)
	if e.cfg.DispatchTimeout > 0 {
		dctx, cancel = context.WithTimeout(base, e.cfg.DispatchTimeout)
	} else {
		dctx, cancel = context.WithCancel(base)
	}
	defer cancel()

	g, gctx := errgroup.WithContext(dctx)

	if e.results != nil {
		g.Go(func() error {
			if err := e.results.Save(gctx, result); err != nil {
				log.Warn("failed to store analysis result", logger.ErrorField(err))
			}
			return nil
		})
	}

	if e.publisher != nil {
		g.Go(func() error {
			if err := e.publisher.PublishAnalysisCompleted(gctx, domain.NewAnalysisCompletedEvent(result)); err != nil {
				log.Warn("failed to publish analysis event", logger.ErrorField(err))
			}
			return nil
		})

		if escalate {
			g.Go(func() error {
				alert := domain.NewAnalysisAlert(result)
				if err := e.publisher.PublishAlert(gctx, alert); err != nil {
					log.Warn("failed to publish alert", logger.ErrorField(err))
					return nil
				}
				log.AlertRaised(alert.AlertNumber, result.RiskScore)
				return nil
			})
		}
	}

	_ = g.Wait()
}

// recordLatency records run latency for metrics
func (e *Engine) recordLatency(durationMs int64) {
	e.latencyMu.Lock()
	defer e.latencyMu.Unlock()

	e.runCount++
	// Exponential moving average
	e.avgLatencyMs = e.avgLatencyMs*0.9 + float64(durationMs)*0.1
}

// GetAverageLatency returns the average run latency
func (e *Engine) GetAverageLatency() float64 {
	e.latencyMu.RLock()
	defer e.latencyMu.RUnlock()
	return e.avgLatencyMs
}

// GetRunCount returns total successful runs
func (e *Engine) GetRunCount() int64 {
	e.latencyMu.RLock()
	defer e.latencyMu.RUnlock()
	return e.runCount
}

// NewAnalysisID returns a timestamp-derived id with a random suffix, e.g.
// batch_20240301_090000_1a2b3c4d
func NewAnalysisID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("batch_%s_%s", now.UTC().Format("20060102_150405"), suffix)
}

func countDistinctSenders(txs []domain.Transaction) int {
	senders := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		senders[tx.SenderID] = struct{}{}
	}
	return len(senders)
}

type nopRecorder struct{}

func (nopRecorder) RunCompleted(string, time.Duration)       {}
func (nopRecorder) TransactionsFetched(int)                  {}
func (nopRecorder) PatternsDetected([]domain.PatternFinding) {}
