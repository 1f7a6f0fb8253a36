package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banking/batch-analysis/internal/domain"
)

func scored(scores ...float64) []domain.PatternFinding {
	out := make([]domain.PatternFinding, 0, len(scores))
	for _, s := range scores {
		out = append(out, domain.PatternFinding{Type: domain.PatternPotentialStructuring, RiskScore: s})
	}
	return out
}

func TestRiskCalculator_Aggregate(t *testing.T) {
	calc := NewRiskCalculator()

	assert.Equal(t, 0.0, calc.Aggregate(nil))
	assert.Equal(t, 0.0, RoundScore(calc.Aggregate(scored())))

	mean := calc.Aggregate(scored(0.8, 0.6, 0.8))
	assert.InDelta(t, 2.2/3, mean, 1e-12)
	assert.Equal(t, 0.733, RoundScore(mean))

	assert.InDelta(t, 0.9, calc.Aggregate(scored(0.9)), 1e-12)
}

func TestRiskCalculator_EqualWeights(t *testing.T) {
	calc := NewRiskCalculator()

	findings := []domain.PatternFinding{
		{Type: domain.PatternRapidSuccession, EntityID: "S1", Count: 40, RiskScore: 0.9},
		{Type: domain.PatternRoundNumberBias, Count: 1, RiskScore: 0.6},
	}
	assert.InDelta(t, 0.75, calc.Aggregate(findings), 1e-12)
}

func TestRiskCalculator_Level(t *testing.T) {
	calc := NewRiskCalculator()

	tests := []struct {
		score float64
		want  domain.RiskLevel
	}{
		{0.0, domain.RiskLevelLow},
		{0.5, domain.RiskLevelLow},
		{0.6, domain.RiskLevelMedium},
		{0.7, domain.RiskLevelMedium},
		{0.733, domain.RiskLevelHigh},
		{0.9, domain.RiskLevelCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calc.Level(tt.score), "score %v", tt.score)
	}
}
