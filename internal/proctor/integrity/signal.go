package integrity

import (
	"strings"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// SignalType is the raw environment event reported by the candidate's browser.
type SignalType string

const (
	SignalBlur        SignalType = "blur"
	SignalContextMenu SignalType = "contextmenu"
	SignalKeyDown     SignalType = "keydown"
)

// Signal is one raw environment event. Key, Ctrl and Shift only matter for keydown.
type Signal struct {
	Type  SignalType `json:"type" binding:"required,oneof=blur contextmenu keydown"`
	Key   string     `json:"key,omitempty" binding:"max=32"`
	Ctrl  bool       `json:"ctrl,omitempty"`
	Shift bool       `json:"shift,omitempty"`
}

// Classify maps a raw signal to an anomaly kind. ok is false for signals that
// are not integrity violations (ordinary typing, unknown types).
func Classify(sig Signal) (kind model.AnomalyKind, ok bool) {
	switch sig.Type {
	case SignalBlur:
		return model.AnomalyFocusLost, true
	case SignalContextMenu:
		return model.AnomalyContextMenuAttempt, true
	case SignalKeyDown:
		return classifyKey(sig)
	}
	return "", false
}

func classifyKey(sig Signal) (model.AnomalyKind, bool) {
	if sig.Key == "F12" || (sig.Ctrl && sig.Shift && strings.EqualFold(sig.Key, "i")) {
		return model.AnomalyDevToolsAttempt, true
	}
	if sig.Ctrl {
		switch sig.Key {
		case "c", "v", "a":
			return model.AnomalyClipboardAttempt, true
		}
	}
	return "", false
}
