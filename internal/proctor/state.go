package proctor

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Phase is the session's position in the state machine. Transitions only go
// forward and Completed is absorbing.
type Phase string

const (
	PhaseAwaitingConsent Phase = "AWAITING_CONSENT"
	PhaseInProgress      Phase = "IN_PROGRESS"
	PhaseCompleted       Phase = "COMPLETED"
)

// SessionState is the whole mutable state of one session. It is only ever
// replaced through reduce, never modified in place.
type SessionState struct {
	Phase                Phase                            `json:"phase"`
	ConsentGranted       bool                             `json:"consent_granted"`
	DurationSeconds      int                              `json:"duration_seconds"`
	RemainingSeconds     int                              `json:"remaining_seconds"`
	CurrentQuestionIndex int                              `json:"current_question_index"`
	Answers              map[uuid.UUID]model.AnswerRecord `json:"answers"`
	Anomalies            []model.AnomalyEvent             `json:"anomalies"`
	CameraActive         bool                             `json:"camera_active"`
	MicActive            bool                             `json:"mic_active"`
}

func newSessionState() SessionState {
	return SessionState{
		Phase:     PhaseAwaitingConsent,
		Answers:   map[uuid.UUID]model.AnswerRecord{},
		Anomalies: []model.AnomalyEvent{},
	}
}

// Clone returns a deep copy.
func (s SessionState) Clone() SessionState {
	out := s
	out.Answers = maps.Clone(s.Answers)
	if out.Answers == nil {
		out.Answers = map[uuid.UUID]model.AnswerRecord{}
	}
	out.Anomalies = append([]model.AnomalyEvent{}, s.Anomalies...)
	return out
}

// ElapsedSeconds is the part of the budget consumed so far.
func (s SessionState) ElapsedSeconds() int {
	return s.DurationSeconds - s.RemainingSeconds
}

// FormatClock renders seconds as mm:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

type action interface {
	apply(s SessionState, questions []model.Question) (SessionState, error)
}

// reduce returns the state after a. On error the input state is returned as is.
func reduce(s SessionState, questions []model.Question, a action) (SessionState, error) {
	next, err := a.apply(s, questions)
	if err != nil {
		return s, err
	}
	return next, nil
}

type beginAction struct {
	durationSeconds int
	cameraActive    bool
	micActive       bool
}

func (a beginAction) apply(s SessionState, _ []model.Question) (SessionState, error) {
	switch s.Phase {
	case PhaseInProgress:
		return s, ErrAlreadyStarted
	case PhaseCompleted:
		return s, ErrSessionClosed
	}
	s.Phase = PhaseInProgress
	s.ConsentGranted = true
	s.DurationSeconds = a.durationSeconds
	s.RemainingSeconds = a.durationSeconds
	s.CurrentQuestionIndex = 0
	s.CameraActive = a.cameraActive
	s.MicActive = a.micActive
	return s, nil
}

type selectAction struct {
	questionID  uuid.UUID
	optionIndex int
}

func (a selectAction) apply(s SessionState, questions []model.Question) (SessionState, error) {
	if s.Phase != PhaseInProgress {
		return s, ErrNotInProgress
	}
	idx := slices.IndexFunc(questions, func(q model.Question) bool { return q.ID == a.questionID })
	if idx < 0 {
		return s, ErrUnknownQuestion
	}
	if a.optionIndex < 0 || a.optionIndex >= len(questions[idx].Options) {
		return s, ErrOptionOutOfRange
	}
	s.Answers = maps.Clone(s.Answers)
	s.Answers[a.questionID] = model.AnswerRecord{QuestionID: a.questionID, SelectedOptionIndex: a.optionIndex}
	return s, nil
}

type navigateAction struct {
	delta int
}

func (a navigateAction) apply(s SessionState, questions []model.Question) (SessionState, error) {
	if s.Phase != PhaseInProgress {
		return s, ErrNotInProgress
	}
	if a.delta > 0 && s.CurrentQuestionIndex < len(questions) {
		if _, answered := s.Answers[questions[s.CurrentQuestionIndex].ID]; !answered {
			return s, ErrAnswerRequired
		}
	}
	target := s.CurrentQuestionIndex + a.delta
	if target < 0 || target >= len(questions) {
		return s, nil
	}
	s.CurrentQuestionIndex = target
	return s, nil
}

type tickAction struct{}

func (tickAction) apply(s SessionState, _ []model.Question) (SessionState, error) {
	if s.Phase != PhaseInProgress {
		return s, ErrNotInProgress
	}
	if s.RemainingSeconds > 0 {
		s.RemainingSeconds--
	}
	return s, nil
}

type anomalyAction struct {
	event model.AnomalyEvent
}

func (a anomalyAction) apply(s SessionState, _ []model.Question) (SessionState, error) {
	if s.Phase != PhaseInProgress {
		return s, ErrNotInProgress
	}
	ev := a.event
	if n := len(s.Anomalies); n > 0 && ev.Timestamp.Before(s.Anomalies[n-1].Timestamp) {
		ev.Timestamp = s.Anomalies[n-1].Timestamp
	}
	s.Anomalies = append(slices.Clip(s.Anomalies), ev)
	return s, nil
}

type mediaAction struct {
	cameraActive bool
	micActive    bool
}

func (a mediaAction) apply(s SessionState, _ []model.Question) (SessionState, error) {
	s.CameraActive = a.cameraActive
	s.MicActive = a.micActive
	return s, nil
}

type completeAction struct{}

func (completeAction) apply(s SessionState, _ []model.Question) (SessionState, error) {
	if s.Phase != PhaseInProgress {
		return s, ErrNotInProgress
	}
	s.Phase = PhaseCompleted
	return s, nil
}
