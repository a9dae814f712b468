package websocket

import (
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart    Action = "start"
	ActionMedia    Action = "media"
	ActionAnswer   Action = "answer"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionSubmit   Action = "submit"
	ActionSignal   Action = "signal"
	ActionState    Action = "state"
	ActionPing     Action = "ping"
)

// Request is the single client message shape. Only the fields relevant to
// Action are read.
type Request struct {
	Action Action `json:"action"`

	// start
	Consent bool `json:"consent,omitempty"`

	// media: outcome of the browser's permission prompt
	Camera     bool `json:"camera,omitempty"`
	Microphone bool `json:"microphone,omitempty"`

	// answer
	QuestionID  string `json:"question_id,omitempty"`
	OptionIndex *int   `json:"option_index,omitempty"`

	// signal
	Type  string `json:"type,omitempty"`
	Key   string `json:"key,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventPaper        Event = "paper"
	EventState        Event = "state"
	EventMediaRequest Event = "media_request"
	EventMediaRelease Event = "media_release"
	EventWarning      Event = "warning"
	EventCompleted    Event = "completed"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

// EventResponse carries events without a payload.
type EventResponse struct {
	Event Event `json:"event"`
}

type PaperResponse struct {
	Event           Event                     `json:"event"`
	Questions       []model.CandidateQuestion `json:"questions"`
	DurationSeconds int                       `json:"duration_seconds"`
}

type StateResponse struct {
	Event Event            `json:"event"`
	State proctor.Snapshot `json:"state"`
}

// WarningResponse is the non-blocking notice shown when an anomaly is recorded.
type WarningResponse struct {
	Event        Event             `json:"event"`
	Kind         model.AnomalyKind `json:"kind"`
	Message      string            `json:"message"`
	AnomalyCount int               `json:"anomaly_count"`
	Timestamp    time.Time         `json:"timestamp"`
}

type CompletedResponse struct {
	Event  Event        `json:"event"`
	Result model.Result `json:"result"`
}

type ErrorResponse struct {
	Event   Event  `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
