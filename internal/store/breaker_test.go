package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/batch-analysis/internal/config"
	"github.com/banking/batch-analysis/internal/domain"
	"github.com/banking/batch-analysis/internal/pkg/logger"
)

type flakyStore struct {
	calls int
	err   error
	txs   []domain.Transaction
}

func (f *flakyStore) FindTransactions(context.Context, domain.TransactionQuery) ([]domain.Transaction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.txs, nil
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	next := &flakyStore{txs: []domain.Transaction{{ID: "t1"}}}
	s := NewBreakerStore(next, config.BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute}, logger.NewNop())

	got, err := s.FindTransactions(context.Background(), domain.TransactionQuery{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, gobreaker.StateClosed, s.State())
}

func TestBreakerStore_OpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("connection refused")
	next := &flakyStore{err: boom}
	s := NewBreakerStore(next, config.BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute}, logger.NewNop())

	for i := 0; i < 2; i++ {
		_, err := s.FindTransactions(context.Background(), domain.TransactionQuery{})
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, s.State())

	_, err := s.FindTransactions(context.Background(), domain.TransactionQuery{})
	require.Error(t, err)
	assert.True(t, domain.IsUpstream(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}

func TestBreakerStore_IgnoresCallerAndDataErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"caller cancelled", context.Canceled},
		{"cancellation wrapped by the backend", domain.NewUpstreamFetchError("query_transactions", context.Canceled)},
		{"malformed row", domain.NewUpstreamFetchError("malformed_record", errors.New("negative amount"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &flakyStore{err: tt.err}
			s := NewBreakerStore(next, config.BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute}, logger.NewNop())

			for i := 0; i < 5; i++ {
				_, err := s.FindTransactions(context.Background(), domain.TransactionQuery{})
				assert.ErrorIs(t, err, tt.err)
			}
			assert.Equal(t, gobreaker.StateClosed, s.State())
			assert.Equal(t, 5, next.calls)
		})
	}
}

func TestBreakerStore_DeadlineCountsAsFailure(t *testing.T) {
	next := &flakyStore{err: context.DeadlineExceeded}
	s := NewBreakerStore(next, config.BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute}, logger.NewNop())

	for i := 0; i < 2; i++ {
		_, _ = s.FindTransactions(context.Background(), domain.TransactionQuery{})
	}
	assert.Equal(t, gobreaker.StateOpen, s.State())
}
