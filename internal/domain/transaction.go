package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a read-only snapshot of a transfer between two entities,
// fetched once per analysis run
type Transaction struct {
	ID         string          `json:"id"`
	SenderID   string          `json:"sender_id"`
	ReceiverID string          `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
}

// TransactionQuery describes the slice of the transaction store an analysis
// run reads. Both ends of the time range are inclusive.
type TransactionQuery struct {
	StartDate   time.Time
	EndDate     time.Time
	MinAmount   *decimal.Decimal
	EntityTypes []string
}

// Validate rejects records that cannot be fed to the detector.
// Self-transfers are valid input.
func (t *Transaction) Validate() error {
	if t.SenderID == "" {
		return fmt.Errorf("transaction %q: missing sender_id", t.ID)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("transaction %q: missing timestamp", t.ID)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction %q: negative amount %s", t.ID, t.Amount.String())
	}
	return nil
}

// IsSelfTransfer returns true if sender and receiver are the same entity
func (t *Transaction) IsSelfTransfer() bool {
	return t.SenderID == t.ReceiverID
}

// Matches reports whether the transaction falls inside the query's time range
// and amount floor. Entity types are resolved by the store, not here.
func (q TransactionQuery) Matches(t Transaction) bool {
	if t.Timestamp.Before(q.StartDate) || t.Timestamp.After(q.EndDate) {
		return false
	}
	if q.MinAmount != nil && t.Amount.LessThan(*q.MinAmount) {
		return false
	}
	return true
}
