package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/batch-analysis/internal/domain"
)

type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos-1], nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type fakeQuerier struct {
	rows *fakeRows
	err  error
	sql  string
	args []any
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.sql = sql
	q.args = args
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestTransactionRepository_FindTransactions(t *testing.T) {
	db := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		{"t1", "S1", "R1", "9500.00", start.Add(time.Hour)},
		{"t2", "S1", "R2", "1000", start.Add(2 * time.Hour)},
	}}}
	repo := NewTransactionRepository(db)

	floor := decimal.NewFromInt(500)
	q := domain.TransactionQuery{
		StartDate:   start,
		EndDate:     start.Add(24 * time.Hour),
		MinAmount:   &floor,
		EntityTypes: []string{"individual"},
	}

	txs, err := repo.FindTransactions(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(9500)))
	assert.Equal(t, "R2", txs[1].ReceiverID)

	require.Len(t, db.args, 4)
	assert.Equal(t, start, db.args[0])
	assert.Equal(t, "500", *db.args[2].(*string))
	assert.Equal(t, []string{"individual"}, db.args[3])
	assert.Contains(t, db.sql, "BETWEEN $1 AND $2")
}

func TestTransactionRepository_NullFilters(t *testing.T) {
	args := queryArgs(domain.TransactionQuery{StartDate: start, EndDate: start})

	assert.Nil(t, args[2].(*string))
	assert.Nil(t, args[3].([]string))
}

func TestTransactionRepository_Errors(t *testing.T) {
	t.Run("query failure", func(t *testing.T) {
		repo := NewTransactionRepository(&fakeQuerier{err: errors.New("connection reset")})

		_, err := repo.FindTransactions(context.Background(), domain.TransactionQuery{})
		require.Error(t, err)
		assert.True(t, domain.IsUpstream(err))
	})

	t.Run("unparseable amount", func(t *testing.T) {
		repo := NewTransactionRepository(&fakeQuerier{rows: &fakeRows{rows: [][]any{
			{"t1", "S1", "R1", "NaN-ish", start},
		}}})

		_, err := repo.FindTransactions(context.Background(), domain.TransactionQuery{})
		require.Error(t, err)
		var upstream *domain.UpstreamFetchError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, "malformed_record", upstream.Op)
	})

	t.Run("row iteration failure", func(t *testing.T) {
		repo := NewTransactionRepository(&fakeQuerier{rows: &fakeRows{err: errors.New("broken pipe")}})

		_, err := repo.FindTransactions(context.Background(), domain.TransactionQuery{})
		assert.True(t, domain.IsUpstream(err))
	})
}
