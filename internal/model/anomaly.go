package model

import "time"

// AnomalyKind enumerates the integrity signals captured during a session.
type AnomalyKind string

const (
	AnomalyFocusLost          AnomalyKind = "focus-lost"
	AnomalyContextMenuAttempt AnomalyKind = "context-menu-attempt"
	AnomalyDevToolsAttempt    AnomalyKind = "devtools-attempt"
	AnomalyClipboardAttempt   AnomalyKind = "clipboard-attempt"
)

// AnomalyKinds lists every kind in a stable order.
var AnomalyKinds = []AnomalyKind{
	AnomalyFocusLost,
	AnomalyContextMenuAttempt,
	AnomalyDevToolsAttempt,
	AnomalyClipboardAttempt,
}

// Valid reports whether k is a known kind.
func (k AnomalyKind) Valid() bool {
	switch k {
	case AnomalyFocusLost, AnomalyContextMenuAttempt, AnomalyDevToolsAttempt, AnomalyClipboardAttempt:
		return true
	}
	return false
}

// Warning returns the message shown to the candidate when k is detected.
func (k AnomalyKind) Warning() string {
	switch k {
	case AnomalyFocusLost:
		return "Changement de fenêtre détecté. Restez sur la page du test."
	case AnomalyContextMenuAttempt:
		return "Le menu contextuel est désactivé pendant le test."
	case AnomalyDevToolsAttempt:
		return "L'ouverture des outils développeur est interdite pendant le test."
	case AnomalyClipboardAttempt:
		return "Copier, coller et tout sélectionner sont interdits pendant le test."
	default:
		return "Comportement inhabituel détecté."
	}
}

// AnomalyEvent is one captured integrity signal. Events are append-only.
type AnomalyEvent struct {
	Kind      AnomalyKind `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
}
