package patterns

import (
	"github.com/banking/batch-analysis/internal/domain"
)

// ScorePrecision is the number of decimals the aggregate is presented with
const ScorePrecision = 3

// RiskCalculator combines finding scores into a single aggregate risk
type RiskCalculator struct{}

// NewRiskCalculator creates a new risk calculator
func NewRiskCalculator() *RiskCalculator {
	return &RiskCalculator{}
}

// Aggregate returns the arithmetic mean of the finding scores, or 0 when
// there are none. Every finding weighs the same regardless of type, count
// or entity scope; severity-weighted views belong to the consumer.
func (c *RiskCalculator) Aggregate(findings []domain.PatternFinding) float64 {
	if len(findings) == 0 {
		return 0.0
	}

	total := 0.0
	for _, f := range findings {
		total += f.RiskScore
	}
	return total / float64(len(findings))
}

// Level classifies an aggregate score
func (c *RiskCalculator) Level(score float64) domain.RiskLevel {
	return domain.CalculateRiskLevel(score)
}

// RoundScore rounds a score for presentation
func RoundScore(score float64) float64 {
	return roundTo(score, ScorePrecision)
}
