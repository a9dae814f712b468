package proctor

import (
	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Snapshot is the read-only view of a session sent to the candidate.
type Snapshot struct {
	SessionID            uuid.UUID            `json:"session_id"`
	OfferID              uuid.UUID            `json:"offer_id"`
	Phase                Phase                `json:"phase"`
	RemainingSeconds     int                  `json:"remaining_seconds"`
	Remaining            string               `json:"remaining"`
	CurrentQuestionIndex int                  `json:"current_question_index"`
	TotalQuestions       int                  `json:"total_questions"`
	AnsweredCount        int                  `json:"answered_count"`
	Answers              []model.AnswerRecord `json:"answers"`
	AnomalyCount         int                  `json:"anomaly_count"`
	CameraActive         bool                 `json:"camera_active"`
	MicActive            bool                 `json:"mic_active"`
}

// Snapshot returns the current view of the session. Answers follow question order.
func (c *Controller) Snapshot() Snapshot {
	s := c.State()

	answers := make([]model.AnswerRecord, 0, len(s.Answers))
	for _, q := range c.questions {
		if a, ok := s.Answers[q.ID]; ok {
			answers = append(answers, a)
		}
	}

	return Snapshot{
		SessionID:            c.id,
		OfferID:              c.offerID,
		Phase:                s.Phase,
		RemainingSeconds:     s.RemainingSeconds,
		Remaining:            FormatClock(s.RemainingSeconds),
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		TotalQuestions:       len(c.questions),
		AnsweredCount:        len(answers),
		Answers:              answers,
		AnomalyCount:         len(s.Anomalies),
		CameraActive:         s.CameraActive,
		MicActive:            s.MicActive,
	}
}
