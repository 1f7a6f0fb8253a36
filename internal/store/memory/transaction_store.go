// Package memory provides an in-process transaction store, used by the
// offline CLI and by tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/banking/batch-analysis/internal/domain"
)

// TransactionStore holds transactions in memory
type TransactionStore struct {
	mu          sync.RWMutex
	txs         []domain.Transaction
	entityTypes map[string]string
}

// NewTransactionStore creates a store seeded with txs
func NewTransactionStore(txs ...domain.Transaction) *TransactionStore {
	s := &TransactionStore{entityTypes: make(map[string]string)}
	s.Add(txs...)
	return s
}

// Add appends transactions
func (s *TransactionStore) Add(txs ...domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, txs...)
}

// SetEntityType records the type of an entity for entity-type filtering
func (s *TransactionStore) SetEntityType(entityID, entityType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entityTypes[entityID] = entityType
}

// FindTransactions returns the transactions matching q. When entity types are
// requested, only senders of those types are kept.
func (s *TransactionStore) FindTransactions(ctx context.Context, q domain.TransactionQuery) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0)
	for _, tx := range s.txs {
		if !q.Matches(tx) {
			continue
		}
		if len(q.EntityTypes) > 0 && !slices.Contains(q.EntityTypes, s.entityTypes[tx.SenderID]) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}
