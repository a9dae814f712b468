package proctor

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Media is the camera+microphone holder a session acquires on start and
// releases on every exit path. *media.Monitor implements it.
type Media interface {
	Acquire(ctx context.Context) error
	Release()
	CameraActive() bool
	MicActive() bool
}

// Watcher captures anomalies while the session is in progress. Install
// gives up when ctx is done. *integrity.Watcher implements it.
type Watcher interface {
	Install(ctx context.Context, sink func(model.AnomalyEvent)) error
	Teardown()
}

// ResultStore receives the frozen Result exactly once per completed session.
type ResultStore interface {
	Save(ctx context.Context, offerID uuid.UUID, candidateID int, result model.Result) error
}

// Observer is notified of session events. Calls are made outside the session
// lock and must not block. SessionCompleted arrives after the store has
// answered for the Result.
type Observer interface {
	AnomalyDetected(event model.AnomalyEvent, total int)
	SessionCompleted(result model.Result)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) AnomalyDetected(model.AnomalyEvent, int) {}
func (NopObserver) SessionCompleted(model.Result)           {}
