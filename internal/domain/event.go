package domain

import (
	"time"

	"github.com/google/uuid"
)

const EventTypeAnalysisCompleted = "analysis.completed"

// AnalysisCompletedEvent is published after every successful run
type AnalysisCompletedEvent struct {
	EventID   uuid.UUID        `json:"event_id"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Summary   *AnalysisSummary `json:"payload"`
}

// NewAnalysisCompletedEvent wraps a result summary in an event envelope
func NewAnalysisCompletedEvent(r *AnalysisResult) *AnalysisCompletedEvent {
	return &AnalysisCompletedEvent{
		EventID:   uuid.New(),
		EventType: EventTypeAnalysisCompleted,
		Timestamp: r.CreatedAt,
		Summary:   r.ToSummary(),
	}
}
