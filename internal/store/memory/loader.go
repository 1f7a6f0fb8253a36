package memory

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/banking/batch-analysis/internal/domain"
)

// LoadFile reads transactions from a .json or .csv file
func LoadFile(path string) ([]domain.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening transactions file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(f)
	case ".csv":
		return LoadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported transactions file type %q", filepath.Ext(path))
	}
}

// LoadJSON decodes a JSON array of transactions
func LoadJSON(r io.Reader) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	if err := json.NewDecoder(r).Decode(&txs); err != nil {
		return nil, fmt.Errorf("error decoding transactions: %w", err)
	}
	for i := range txs {
		if err := txs[i].Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return txs, nil
}

// LoadCSV reads records of the form id,sender_id,receiver_id,amount,timestamp
// with a header row. Timestamps are RFC 3339.
func LoadCSV(r io.Reader) ([]domain.Transaction, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("transaction file is missing its header row")
	}

	txs := make([]domain.Transaction, 0, len(records)-1)
	for i, record := range records[1:] {
		line := i + 2
		if len(record) < 5 {
			return nil, fmt.Errorf("invalid record format at line %d: insufficient fields", line)
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(record[3]))
		if err != nil {
			return nil, fmt.Errorf("invalid amount at line %d: %w", line, err)
		}
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[4]))
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp at line %d: %w", line, err)
		}

		tx := domain.Transaction{
			ID:         strings.TrimSpace(record[0]),
			SenderID:   strings.TrimSpace(record[1]),
			ReceiverID: strings.TrimSpace(record[2]),
			Amount:     amount,
			Timestamp:  ts.UTC(),
		}
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
