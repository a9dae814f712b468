package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus tells whether the session ran to completion or was abandoned.
type ResultStatus string

const (
	ResultStatusCompleted ResultStatus = "completed"
	ResultStatusAbandoned ResultStatus = "abandoned"
)

// CompletionReason records which path ended the session.
type CompletionReason string

const (
	ReasonSubmitted CompletionReason = "submitted"
	ReasonTimeout   CompletionReason = "timeout"
	ReasonCancelled CompletionReason = "cancelled"
)

// Result is the frozen outcome of one proctored session.
type Result struct {
	SessionID           uuid.UUID        `json:"session_id"`
	OfferID             uuid.UUID        `json:"offer_id"`
	CandidateID         int              `json:"candidate_id"`
	Status              ResultStatus     `json:"status"`
	Reason              CompletionReason `json:"reason"`
	CompetencyScore     int              `json:"competency_score"`
	CredibilityScore    int              `json:"credibility_score"`
	CorrectAnswers      int              `json:"correct_answers"`
	TotalQuestions      int              `json:"total_questions"`
	TotalElapsedSeconds int              `json:"total_elapsed_seconds"`
	Anomalies           []AnomalyEvent   `json:"anomalies"`
	CompletedAt         time.Time        `json:"completed_at"`
}

// Clone returns a deep copy so callers cannot mutate a frozen result.
func (r Result) Clone() Result {
	out := r
	out.Anomalies = make([]AnomalyEvent, len(r.Anomalies))
	copy(out.Anomalies, r.Anomalies)
	return out
}
