package integrity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
)

var (
	ErrAlreadyInstalled = errors.New("watcher already installed")
	ErrWatcherClosed    = errors.New("watcher torn down")
)

// Source delivers raw signals to a subscriber until unsubscribed. ctx bounds
// the subscription handshake only.
// Implementations must not block inside fn's caller for long; the watcher's
// callback itself never blocks.
type Source interface {
	Subscribe(ctx context.Context, fn func(Signal)) (unsubscribe func(), err error)
}

// Watcher turns raw signals from its sources into anomaly events while
// installed. Events are stamped on observation and delivered to the sink
// asynchronously, in arrival order, on a single goroutine.
type Watcher struct {
	sources []Source
	now     func() time.Time
	log     zerolog.Logger

	mu         sync.Mutex
	installed  bool
	installing bool
	closed     bool
	sink       func(model.AnomalyEvent)
	pending    []model.AnomalyEvent
	unsubs     []func()

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeDone sync.Once
}

// NewWatcher creates a Watcher over sources. now defaults to time.Now.
func NewWatcher(now func() time.Time, log zerolog.Logger, sources ...Source) *Watcher {
	if now == nil {
		now = time.Now
	}
	return &Watcher{
		sources: sources,
		now:     now,
		log:     log.With().Str("component", "integrity_watcher").Logger(),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Install subscribes to every source and starts delivering anomalies to sink.
// If any subscription fails, or ctx ends first, the ones already made are
// undone. Teardown may run while subscriptions are in flight.
func (w *Watcher) Install(ctx context.Context, sink func(model.AnomalyEvent)) error {
	w.mu.Lock()
	switch {
	case w.closed:
		w.mu.Unlock()
		return ErrWatcherClosed
	case w.installed || w.installing:
		w.mu.Unlock()
		return ErrAlreadyInstalled
	}
	w.installing = true
	w.mu.Unlock()

	undo := func(unsubs []func()) {
		for _, u := range unsubs {
			u()
		}
	}

	unsubs := make([]func(), 0, len(w.sources))
	var err error
	for _, src := range w.sources {
		if err = ctx.Err(); err != nil {
			break
		}
		var unsub func()
		if unsub, err = src.Subscribe(ctx, w.observe); err != nil {
			break
		}
		unsubs = append(unsubs, unsub)
	}

	w.mu.Lock()
	w.installing = false
	if err == nil && w.closed {
		err = ErrWatcherClosed
	}
	if err != nil {
		w.pending = nil
		w.mu.Unlock()
		undo(unsubs)
		return err
	}
	w.sink = sink
	w.unsubs = unsubs
	w.installed = true
	w.mu.Unlock()

	go w.pump()

	w.log.Debug().Int("sources", len(w.sources)).Msg("Watcher installed")
	return nil
}

// Teardown unsubscribes every source and stops delivery. It does not wait for
// the delivery goroutine; use Done for that. Safe to call more than once.
func (w *Watcher) Teardown() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	wasInstalled := w.installed
	unsubs := w.unsubs
	w.unsubs = nil
	w.pending = nil
	w.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	close(w.stop)

	if !wasInstalled {
		w.closeDone.Do(func() { close(w.done) })
	}
	w.log.Debug().Msg("Watcher torn down")
}

// Done is closed once the watcher has been torn down and delivery has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) observe(sig Signal) {
	kind, ok := Classify(sig)
	if !ok {
		return
	}

	w.mu.Lock()
	if !(w.installed || w.installing) || w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = append(w.pending, model.AnomalyEvent{Kind: kind, Timestamp: w.now()})
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) pump() {
	defer w.closeDone.Do(func() { close(w.done) })

	for {
		select {
		case <-w.stop:
			return
		case <-w.wake:
			w.mu.Lock()
			batch := w.pending
			w.pending = nil
			sink := w.sink
			w.mu.Unlock()

			for _, ev := range batch {
				select {
				case <-w.stop:
					return
				default:
				}
				sink(ev)
			}
		}
	}
}
