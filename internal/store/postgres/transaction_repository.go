package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/banking/batch-analysis/internal/domain"
)

const findTransactionsQuery = `
	SELECT t.id, t.sender_id, t.receiver_id, t.amount::text, t.timestamp
	FROM transactions t
	JOIN entities e1 ON t.sender_id = e1.id
	JOIN entities e2 ON t.receiver_id = e2.id
	WHERE t.timestamp BETWEEN $1 AND $2
	  AND ($3::numeric IS NULL OR t.amount >= $3::numeric)
	  AND ($4::text[] IS NULL OR e1.entity_type = ANY($4::text[]))
	ORDER BY t.timestamp, t.id`

// Querier is the subset of pgxpool.Pool used by the repository
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// TransactionRepository reads transactions for analysis windows
type TransactionRepository struct {
	db Querier
}

// NewTransactionRepository creates a new repository
func NewTransactionRepository(db Querier) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// FindTransactions returns transactions in the inclusive window at or above
// the optional amount floor, restricted to senders of the requested types.
func (r *TransactionRepository) FindTransactions(ctx context.Context, q domain.TransactionQuery) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, findTransactionsQuery, queryArgs(q)...)
	if err != nil {
		return nil, domain.NewUpstreamFetchError("query_transactions", err)
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		var rec transactionRow
		if err := rows.Scan(&rec.ID, &rec.SenderID, &rec.ReceiverID, &rec.Amount, &rec.Timestamp); err != nil {
			return nil, domain.NewUpstreamFetchError("scan_transaction", err)
		}
		tx, err := rec.toDomain()
		if err != nil {
			return nil, domain.NewUpstreamFetchError("malformed_record", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewUpstreamFetchError("query_transactions", err)
	}

	return txs, nil
}

type transactionRow struct {
	ID         string
	SenderID   string
	ReceiverID string
	Amount     string
	Timestamp  time.Time
}

func (r transactionRow) toDomain() (domain.Transaction, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %q: invalid amount %q: %w", r.ID, r.Amount, err)
	}
	return domain.Transaction{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Amount:     amount,
		Timestamp:  r.Timestamp.UTC(),
	}, nil
}

// queryArgs binds optional filters as SQL NULL when absent
func queryArgs(q domain.TransactionQuery) []any {
	var minAmount *string
	if q.MinAmount != nil {
		s := q.MinAmount.String()
		minAmount = &s
	}

	var entityTypes []string
	if len(q.EntityTypes) > 0 {
		entityTypes = q.EntityTypes
	}

	return []any{q.StartDate, q.EndDate, minAmount, entityTypes}
}
