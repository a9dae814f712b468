package model

import "github.com/google/uuid"

// Question is a single multiple-choice question from the recruiter-authored QCM.
// Questions are immutable for the duration of a session.
type Question struct {
	ID                 uuid.UUID `json:"id"`
	Text               string    `json:"text"`
	Options            []string  `json:"options"`
	CorrectOptionIndex int       `json:"correct_option_index"`
	OrderNum           int       `json:"order_num"`
}

// CandidateQuestion is the question as sent to the candidate (no answer key).
type CandidateQuestion struct {
	ID      uuid.UUID `json:"id"`
	Text    string    `json:"text"`
	Options []string  `json:"options"`
}

// ForCandidate strips the answer key.
func (q Question) ForCandidate() CandidateQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return CandidateQuestion{ID: q.ID, Text: q.Text, Options: opts}
}

// IsCorrect reports whether optionIndex is the question's correct option.
func (q Question) IsCorrect(optionIndex int) bool {
	return q.CorrectOptionIndex == optionIndex
}

// AnswerRecord is the candidate's current selection for one question.
type AnswerRecord struct {
	QuestionID          uuid.UUID `json:"question_id"`
	SelectedOptionIndex int       `json:"selected_option_index"`
}
