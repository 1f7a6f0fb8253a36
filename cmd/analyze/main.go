// Command analyze runs a suspicious-pattern analysis over a local JSON or CSV
// file of transactions and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/banking/batch-analysis/internal/analysis"
	"github.com/banking/batch-analysis/internal/config"
	"github.com/banking/batch-analysis/internal/domain"
	"github.com/banking/batch-analysis/internal/patterns"
	"github.com/banking/batch-analysis/internal/pkg/logger"
	"github.com/banking/batch-analysis/internal/store/memory"
)

type options struct {
	input     string
	start     string
	end       string
	threshold string
	verbose   bool
}

func main() {
	var opts options
	fs := pflag.NewFlagSet("analyze", pflag.ExitOnError)
	fs.StringVarP(&opts.input, "input", "i", "", "transactions file (.json or .csv)")
	fs.StringVar(&opts.start, "start", "", "window start, RFC 3339 or YYYY-MM-DD (default: earliest transaction)")
	fs.StringVar(&opts.end, "end", "", "window end, RFC 3339 or YYYY-MM-DD (default: latest transaction)")
	fs.StringVar(&opts.threshold, "threshold", "", "minimum transaction amount")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")
	_ = fs.Parse(os.Args[1:])

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.input == "" {
		return fmt.Errorf("--input is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewNop()
	if opts.verbose {
		if log, err = logger.New("batch-analysis-cli", "development", cfg.Telemetry.Debug); err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
	}

	txs, err := memory.LoadFile(opts.input)
	if err != nil {
		return err
	}

	req, err := buildRequest(opts, txs)
	if err != nil {
		return err
	}

	engine := analysis.NewEngine(
		memory.NewTransactionStore(txs...),
		nil,
		nil,
		patterns.NewDetector(&cfg.Patterns),
		patterns.NewRiskCalculator(),
		nil,
		&cfg.Analysis,
		log,
	)

	result, err := engine.Run(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func buildRequest(opts options, txs []domain.Transaction) (*domain.AnalysisRequest, error) {
	start, end := span(txs)

	if opts.start != "" {
		t, err := parseTime(opts.start)
		if err != nil {
			return nil, fmt.Errorf("invalid --start: %w", err)
		}
		start = t
	}
	if opts.end != "" {
		t, err := parseTime(opts.end)
		if err != nil {
			return nil, fmt.Errorf("invalid --end: %w", err)
		}
		if len(opts.end) == len(time.DateOnly) {
			// a bare date covers the whole day
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		end = t
	}
	if len(txs) == 0 {
		start, end = emptyWindow(opts, start, end, time.Now().UTC())
	}

	req := &domain.AnalysisRequest{
		StartDate:           start,
		EndDate:             end,
		AnalysisType:        domain.AnalysisSuspiciousPatterns,
		ConfidenceThreshold: domain.DefaultConfidenceThreshold,
	}
	if opts.threshold != "" {
		d, err := decimal.NewFromString(opts.threshold)
		if err != nil {
			return nil, fmt.Errorf("invalid --threshold: %w", err)
		}
		req.ThresholdAmount = &d
	}
	return req, nil
}

// span returns the earliest and latest timestamps in txs
func span(txs []domain.Transaction) (time.Time, time.Time) {
	var start, end time.Time
	for _, tx := range txs {
		if start.IsZero() || tx.Timestamp.Before(start) {
			start = tx.Timestamp
		}
		if tx.Timestamp.After(end) {
			end = tx.Timestamp
		}
	}
	return start, end
}

// emptyWindow picks a valid window when there is no data to span. An
// unset side collapses onto the set one, or both onto now.
func emptyWindow(opts options, start, end, now time.Time) (time.Time, time.Time) {
	switch {
	case opts.start == "" && opts.end == "":
		return now, now
	case opts.start == "":
		return end, end
	case opts.end == "":
		return start, start
	}
	return start, end
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}
