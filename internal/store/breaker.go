// Package store holds transaction store adapters shared by the backends.
package store

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/banking/batch-analysis/internal/analysis"
	"github.com/banking/batch-analysis/internal/config"
	"github.com/banking/batch-analysis/internal/domain"
	"github.com/banking/batch-analysis/internal/pkg/logger"
)

// BreakerStore guards a TransactionStore with a circuit breaker so that a
// failing database is not hammered by every analysis request.
type BreakerStore struct {
	next analysis.TransactionStore
	cb   *gobreaker.CircuitBreaker
	log  *logger.Logger
}

// NewBreakerStore wraps next with a circuit breaker configured from cfg
func NewBreakerStore(next analysis.TransactionStore, cfg config.BreakerConfig, log *logger.Logger) *BreakerStore {
	s := &BreakerStore{
		next: next,
		log:  log.Named("transaction_store_breaker"),
	}

	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "transaction_store",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return s
}

// countsAsHealthy reports whether err leaves the breaker's failure count
// alone. A caller giving up and a bad row are not database outages.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var upstream *domain.UpstreamFetchError
	return errors.As(err, &upstream) && upstream.Op == "malformed_record"
}

// FindTransactions delegates to the wrapped store unless the breaker is open
func (s *BreakerStore) FindTransactions(ctx context.Context, q domain.TransactionQuery) ([]domain.Transaction, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.FindTransactions(ctx, q)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.NewUpstreamFetchError("circuit_open", err)
		}
		return nil, err
	}
	return out.([]domain.Transaction), nil
}

// State returns the breaker's current state
func (s *BreakerStore) State() gobreaker.State {
	return s.cb.State()
}
