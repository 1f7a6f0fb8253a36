package patterns

import (
	"github.com/banking/batch-analysis/internal/domain"
)

const (
	RecommendImmediateInvestigation = "Immediate investigation recommended for high-risk patterns"
	RecommendEnhancedMonitoring     = "Enhanced monitoring suggested for identified entities"
	RecommendReviewAutomation       = "Review rapid transaction entities for potential automation"
	RecommendInvestigateStructuring = "Investigate potential structuring activities"
)

const enhancedMonitoringScore = 0.5

// Recommend maps the full-precision aggregate and the finding types to an
// ordered list of recommendations. Lines whose condition is false are omitted.
// At most one of the two risk banners is ever present.
func Recommend(aggregate float64, findings []domain.PatternFinding) []string {
	recs := make([]string, 0, 3)

	switch {
	case domain.RequiresEscalation(aggregate):
		recs = append(recs, RecommendImmediateInvestigation)
	case aggregate > enhancedMonitoringScore:
		recs = append(recs, RecommendEnhancedMonitoring)
	}

	if domain.HasPatternType(findings, domain.PatternRapidSuccession) {
		recs = append(recs, RecommendReviewAutomation)
	}
	if domain.HasPatternType(findings, domain.PatternPotentialStructuring) {
		recs = append(recs, RecommendInvestigateStructuring)
	}
	return recs
}
