package domain

// PatternType represents types of suspicious patterns
type PatternType string

const (
	PatternRapidSuccession      PatternType = "rapid_succession"
	PatternRoundNumberBias      PatternType = "round_number_bias"
	PatternPotentialStructuring PatternType = "potential_structuring"
)

// RiskLevel represents the risk severity
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// PatternFinding is one detected pattern instance produced by a single rule
// on one analysis run. It has no identity outside its parent result.
type PatternFinding struct {
	Type        PatternType `json:"type"`
	EntityID    string      `json:"entity_id,omitempty"` // entity-scoped patterns only
	Count       int         `json:"count"`
	RiskScore   float64     `json:"risk_score"` // 0.0 - 1.0
	Description string      `json:"description"`
	Percentage  *float64    `json:"percentage,omitempty"` // round_number_bias only
}

// IsEntityScoped returns true if the finding is attached to a single entity
func (f *PatternFinding) IsEntityScoped() bool {
	return f.EntityID != ""
}

// HasPatternType returns true if any finding has the given type
func HasPatternType(findings []PatternFinding, t PatternType) bool {
	for _, f := range findings {
		if f.Type == t {
			return true
		}
	}
	return false
}

// DistinctEntityIDs returns the entity ids carried by findings, first-seen order
func DistinctEntityIDs(findings []PatternFinding) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, f := range findings {
		if !f.IsEntityScoped() {
			continue
		}
		if _, ok := seen[f.EntityID]; ok {
			continue
		}
		seen[f.EntityID] = struct{}{}
		ids = append(ids, f.EntityID)
	}
	return ids
}

// CalculateRiskLevel returns the risk level for a 0-1 score
func CalculateRiskLevel(score float64) RiskLevel {
	switch {
	case score > 0.8:
		return RiskLevelCritical
	case score > 0.7:
		return RiskLevelHigh
	case score > 0.5:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}
