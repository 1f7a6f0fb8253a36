// Package patterns holds the suspicious-transaction detection rules, the risk
// aggregation over their findings, and the recommendations derived from both.
// Everything here is pure computation over an in-memory transaction set.
package patterns

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/banking/batch-analysis/internal/config"
	"github.com/banking/batch-analysis/internal/domain"
)

// Detector evaluates the detection rules over a transaction set
type Detector struct {
	cfg config.PatternsConfig

	roundUnit            decimal.Decimal
	structuringThreshold decimal.Decimal
	structuringFloor     decimal.Decimal
}

// NewDetector creates a detector. A nil config selects the reference thresholds.
func NewDetector(cfg *config.PatternsConfig) *Detector {
	c := config.DefaultPatternsConfig()
	if cfg != nil {
		c = *cfg
	}

	threshold := decimal.NewFromFloat(c.StructuringThreshold)
	return &Detector{
		cfg:                  c,
		roundUnit:            decimal.NewFromFloat(c.RoundNumberUnit),
		structuringThreshold: threshold,
		structuringFloor:     threshold.Mul(decimal.NewFromFloat(c.StructuringBandRatio)),
	}
}

// Detect runs every rule, in a fixed order, over the same sorted copy of txs.
// The input slice is not modified. An empty input yields an empty result.
func (d *Detector) Detect(txs []domain.Transaction) []domain.PatternFinding {
	findings := make([]domain.PatternFinding, 0)
	if len(txs) == 0 {
		return findings
	}

	sorted := make([]domain.Transaction, len(txs))
	copy(sorted, txs)
	slices.SortStableFunc(sorted, func(a, b domain.Transaction) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	findings = append(findings, d.detectRapidSuccession(sorted)...)
	if f, ok := d.detectRoundNumberBias(sorted); ok {
		findings = append(findings, f)
	}
	if f, ok := d.detectStructuring(sorted); ok {
		findings = append(findings, f)
	}
	return findings
}

// detectRapidSuccession emits one finding per sender whose consecutive
// transfers are too close together too often. Senders are visited in the
// order of their first transaction.
func (d *Detector) detectRapidSuccession(sorted []domain.Transaction) []domain.PatternFinding {
	order := make([]string, 0)
	bySender := make(map[string][]time.Time)
	for _, tx := range sorted {
		if _, seen := bySender[tx.SenderID]; !seen {
			order = append(order, tx.SenderID)
		}
		bySender[tx.SenderID] = append(bySender[tx.SenderID], tx.Timestamp)
	}

	findings := make([]domain.PatternFinding, 0)
	for _, sender := range order {
		stamps := bySender[sender]
		if len(stamps) < d.cfg.RapidMinTransactions {
			continue
		}

		rapid := 0
		for i := 1; i < len(stamps); i++ {
			if stamps[i].Sub(stamps[i-1]) < d.cfg.RapidGapWindow {
				rapid++
			}
		}
		if rapid < d.cfg.RapidMinGaps {
			continue
		}

		findings = append(findings, domain.PatternFinding{
			Type:      domain.PatternRapidSuccession,
			EntityID:  sender,
			Count:     rapid,
			RiskScore: math.Min(d.cfg.RapidScoreCap, float64(rapid)*d.cfg.RapidScorePerGap),
			Description: fmt.Sprintf("Entity %s made %d transactions within %d-minute windows",
				sender, rapid, int(d.cfg.RapidGapWindow.Minutes())),
		})
	}
	return findings
}

// detectRoundNumberBias is a population-level signal: it fires when the share
// of amounts that are exact multiples of the round unit exceeds the minimum.
func (d *Detector) detectRoundNumberBias(sorted []domain.Transaction) (domain.PatternFinding, bool) {
	if !d.roundUnit.IsPositive() {
		return domain.PatternFinding{}, false
	}

	round := 0
	for _, tx := range sorted {
		if tx.Amount.Mod(d.roundUnit).IsZero() {
			round++
		}
	}

	total := len(sorted)
	if float64(round) <= float64(total)*d.cfg.RoundNumberMinShare {
		return domain.PatternFinding{}, false
	}

	pct := roundTo(float64(round)/float64(total)*100, 2)
	return domain.PatternFinding{
		Type:        domain.PatternRoundNumberBias,
		Count:       round,
		RiskScore:   d.cfg.RoundNumberScore,
		Description: fmt.Sprintf("%d transactions with round amounts detected", round),
		Percentage:  &pct,
	}, true
}

// detectStructuring counts amounts in [threshold*ratio, threshold)
func (d *Detector) detectStructuring(sorted []domain.Transaction) (domain.PatternFinding, bool) {
	near := 0
	for _, tx := range sorted {
		if d.inStructuringBand(tx.Amount) {
			near++
		}
	}
	if near == 0 {
		return domain.PatternFinding{}, false
	}

	return domain.PatternFinding{
		Type:      domain.PatternPotentialStructuring,
		Count:     near,
		RiskScore: d.cfg.StructuringScore,
		Description: fmt.Sprintf("%d transactions just below $%s threshold",
			near, d.structuringThreshold.String()),
	}, true
}

func (d *Detector) inStructuringBand(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(d.structuringFloor) && amount.LessThan(d.structuringThreshold)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
