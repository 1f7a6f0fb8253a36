package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertType represents the type of analysis alert
type AlertType string

const (
	AlertTypePattern AlertType = "PATTERN_DETECTION"
)

// AlertStatus represents the status of an alert
type AlertStatus string

const (
	AlertStatusNew AlertStatus = "NEW"
)

// EscalationThreshold is the aggregate risk above which a run raises an alert
const EscalationThreshold = 0.7

// AnalysisAlert is raised for a batch run whose aggregate risk warrants
// immediate investigation. Case handling happens downstream.
type AnalysisAlert struct {
	ID          uuid.UUID   `json:"id"`
	AlertNumber string      `json:"alert_number"`
	AnalysisID  string      `json:"analysis_id"`
	AlertType   AlertType   `json:"alert_type"`
	Status      AlertStatus `json:"status"`
	Priority    RiskLevel   `json:"priority"`
	RiskScore   float64     `json:"risk_score"`

	// Details
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	PatternTypes    []PatternType `json:"pattern_types"`
	EntityIDs       []string      `json:"entity_ids,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`

	// Analysed window
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	DetectedAt time.Time `json:"detected_at"`
}

// RequiresEscalation reports whether an aggregate risk should raise an alert.
// It takes the full-precision aggregate, not the rounded RiskScore.
func RequiresEscalation(aggregate float64) bool {
	return aggregate > EscalationThreshold
}

// NewAnalysisAlert builds an alert from a result
func NewAnalysisAlert(r *AnalysisResult) *AnalysisAlert {
	id := uuid.New()
	summary := r.ToSummary()
	return &AnalysisAlert{
		ID:              id,
		AlertNumber:     fmt.Sprintf("AML-%s-%s", r.CreatedAt.Format("20060102"), id.String()[:8]),
		AnalysisID:      r.AnalysisID,
		AlertType:       AlertTypePattern,
		Status:          AlertStatusNew,
		Priority:        CalculateRiskLevel(r.RiskScore),
		RiskScore:       r.RiskScore,
		Title:           fmt.Sprintf("High-risk patterns in batch %s", r.AnalysisID),
		Description:     fmt.Sprintf("%d pattern(s) detected across %d flagged entities", len(r.PatternsDetected), r.FlaggedEntities),
		PatternTypes:    summary.PatternTypes,
		EntityIDs:       r.FlaggedEntityIDs(),
		Recommendations: r.Recommendations,
		WindowStart:     r.StartDate,
		WindowEnd:       r.EndDate,
		DetectedAt:      r.CreatedAt,
	}
}
