package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AnalysisType identifies the kind of batch analysis requested
type AnalysisType string

const (
	AnalysisSuspiciousPatterns AnalysisType = "suspicious_patterns"
	AnalysisNetwork            AnalysisType = "network_analysis"
	AnalysisAnomalyDetection   AnalysisType = "anomaly_detection"
	AnalysisComplianceCheck    AnalysisType = "compliance_check"
)

// DefaultConfidenceThreshold is applied when a request omits confidence_threshold
const DefaultConfidenceThreshold = 0.8

// AnalysisTypeInfo describes an analysis type for the catalogue endpoint
type AnalysisTypeInfo struct {
	ID          AnalysisType `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Supported   bool         `json:"supported"`
}

var analysisCatalogue = []AnalysisTypeInfo{
	{
		ID:          AnalysisSuspiciousPatterns,
		Name:        "Suspicious Pattern Detection",
		Description: "Detect patterns like structuring, rapid transactions, and round number bias",
		Supported:   true,
	},
	{
		ID:          AnalysisNetwork,
		Name:        "Network Analysis",
		Description: "Analyze entity relationships and connectivity patterns",
	},
	{
		ID:          AnalysisAnomalyDetection,
		Name:        "Anomaly Detection",
		Description: "Statistical anomaly detection in transaction patterns",
	},
	{
		ID:          AnalysisComplianceCheck,
		Name:        "Compliance Verification",
		Description: "Check compliance with regulatory requirements",
	},
}

// AnalysisCatalogue returns every known analysis type in a fixed order
func AnalysisCatalogue() []AnalysisTypeInfo {
	out := make([]AnalysisTypeInfo, len(analysisCatalogue))
	copy(out, analysisCatalogue)
	return out
}

// ParseAnalysisType converts a wire value into an AnalysisType.
// Unknown values are rejected rather than passed through.
func ParseAnalysisType(s string) (AnalysisType, error) {
	for _, info := range analysisCatalogue {
		if string(info.ID) == s {
			return info.ID, nil
		}
	}
	return "", NewValidationError("analysis_type", fmt.Sprintf("unrecognized analysis type %q", s))
}

// IsSupported returns true if this service can execute the analysis type
func (t AnalysisType) IsSupported() bool {
	return t == AnalysisSuspiciousPatterns
}

// BatchAnalysisRequest is the wire form of an analysis request
type BatchAnalysisRequest struct {
	StartDate           time.Time        `json:"start_date" validate:"required"`
	EndDate             time.Time        `json:"end_date" validate:"required,gtefield=StartDate"`
	AnalysisType        string           `json:"analysis_type" validate:"required"`
	EntityTypes         []string         `json:"entity_types,omitempty" validate:"omitempty,dive,required"`
	ThresholdAmount     *decimal.Decimal `json:"threshold_amount,omitempty"`
	ConfidenceThreshold *float64         `json:"confidence_threshold,omitempty" validate:"omitempty,min=0,max=1"`
}

// AnalysisRequest is a validated, typed analysis request
type AnalysisRequest struct {
	StartDate           time.Time
	EndDate             time.Time
	AnalysisType        AnalysisType
	EntityTypes         []string
	ThresholdAmount     *decimal.Decimal
	ConfidenceThreshold float64 // accepted, not consulted by any detection rule
}

// ToAnalysisRequest parses the wire request into its typed form
func (r *BatchAnalysisRequest) ToAnalysisRequest() (*AnalysisRequest, error) {
	analysisType, err := ParseAnalysisType(r.AnalysisType)
	if err != nil {
		return nil, err
	}

	req := &AnalysisRequest{
		StartDate:           r.StartDate.UTC(),
		EndDate:             r.EndDate.UTC(),
		AnalysisType:        analysisType,
		EntityTypes:         r.EntityTypes,
		ThresholdAmount:     r.ThresholdAmount,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
	if r.ConfidenceThreshold != nil {
		req.ConfidenceThreshold = *r.ConfidenceThreshold
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate checks the request before any data is fetched
func (r *AnalysisRequest) Validate() error {
	if r.StartDate.IsZero() {
		return NewValidationError("start_date", "start_date is required")
	}
	if r.EndDate.IsZero() {
		return NewValidationError("end_date", "end_date is required")
	}
	if r.EndDate.Before(r.StartDate) {
		return NewValidationError("end_date", "end_date must not be before start_date")
	}
	if _, err := ParseAnalysisType(string(r.AnalysisType)); err != nil {
		return err
	}
	if !r.AnalysisType.IsSupported() {
		return NewValidationError("analysis_type", fmt.Sprintf("unsupported analysis type: %s", r.AnalysisType))
	}
	if r.ThresholdAmount != nil && r.ThresholdAmount.IsNegative() {
		return NewValidationError("threshold_amount", "threshold_amount must be non-negative")
	}
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		return NewValidationError("confidence_threshold", "confidence_threshold must be within [0, 1]")
	}
	return nil
}

// Query returns the store query for this request
func (r *AnalysisRequest) Query() TransactionQuery {
	return TransactionQuery{
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		MinAmount:   r.ThresholdAmount,
		EntityTypes: r.EntityTypes,
	}
}

// AnalysisResult is the immutable outcome of one analysis run
type AnalysisResult struct {
	AnalysisID             string           `json:"analysis_id"`
	AnalysisType           AnalysisType     `json:"analysis_type"`
	StartDate              time.Time        `json:"start_date"`
	EndDate                time.Time        `json:"end_date"`
	TotalEntities          int              `json:"total_entities"`
	FlaggedEntities        int              `json:"flagged_entities"`
	SuspiciousTransactions int              `json:"suspicious_transactions"`
	RiskScore              float64          `json:"risk_score"` // rounded to 3 decimals
	PatternsDetected       []PatternFinding `json:"patterns_detected"`
	Recommendations        []string         `json:"recommendations"`
	CreatedAt              time.Time        `json:"created_at"`
}

// FlaggedEntityIDs returns the distinct entity ids carried by findings,
// in first-seen order
func (r *AnalysisResult) FlaggedEntityIDs() []string {
	return DistinctEntityIDs(r.PatternsDetected)
}

// AnalysisSummary is a lean DTO for event payloads
type AnalysisSummary struct {
	AnalysisID      string        `json:"analysis_id"`
	AnalysisType    AnalysisType  `json:"analysis_type"`
	RiskScore       float64       `json:"risk_score"`
	FlaggedEntities int           `json:"flagged_entities"`
	PatternTypes    []PatternType `json:"pattern_types"`
	CreatedAt       time.Time     `json:"created_at"`
}

// ToSummary converts AnalysisResult to AnalysisSummary
func (r *AnalysisResult) ToSummary() *AnalysisSummary {
	types := make([]PatternType, 0, len(r.PatternsDetected))
	for _, p := range r.PatternsDetected {
		types = append(types, p.Type)
	}
	return &AnalysisSummary{
		AnalysisID:      r.AnalysisID,
		AnalysisType:    r.AnalysisType,
		RiskScore:       r.RiskScore,
		FlaggedEntities: r.FlaggedEntities,
		PatternTypes:    types,
		CreatedAt:       r.CreatedAt,
	}
}
