package proctor

import "github.com/stemsi/exstem-proctor/internal/model"

// AnomalyPenalty is the credibility lost per recorded anomaly.
const AnomalyPenalty = 15

// Scores is the Scorer's output for one completed session.
type Scores struct {
	Competency     int
	Credibility    int
	CorrectAnswers int
	TotalQuestions int
	ElapsedSeconds int
}

// CompetencyScore is round(100*correct/total) with ties rounding up; 0 when
// there are no questions.
func CompetencyScore(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

// CredibilityScore is max(0, 100 - 15*anomalies).
func CredibilityScore(anomalies int) int {
	return max(0, 100-AnomalyPenalty*anomalies)
}

// Evaluate scores a completed session. Unanswered questions count as incorrect.
func Evaluate(s SessionState, questions []model.Question) (Scores, error) {
	if s.Phase != PhaseCompleted {
		return Scores{}, ErrNotCompleted
	}

	correct := 0
	for _, q := range questions {
		if ans, ok := s.Answers[q.ID]; ok && q.IsCorrect(ans.SelectedOptionIndex) {
			correct++
		}
	}

	return Scores{
		Competency:     CompetencyScore(correct, len(questions)),
		Credibility:    CredibilityScore(len(s.Anomalies)),
		CorrectAnswers: correct,
		TotalQuestions: len(questions),
		ElapsedSeconds: s.ElapsedSeconds(),
	}, nil
}
