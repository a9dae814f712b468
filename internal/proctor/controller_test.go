package proctor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMedia struct {
	mu       sync.Mutex
	err      error
	block    bool
	entered  chan struct{}
	active   bool
	acquires int
	releases int
}

func (m *fakeMedia) Acquire(ctx context.Context) error {
	m.mu.Lock()
	m.acquires++
	block, err, entered := m.block, m.err, m.entered
	m.mu.Unlock()

	if block {
		if entered != nil {
			close(entered)
		}
		<-ctx.Done()
		return &media.AccessError{Cause: media.ErrDeviceUnavailable}
	}
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.active = true
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	m.active = false
}

func (m *fakeMedia) CameraActive() bool { m.mu.Lock(); defer m.mu.Unlock(); return m.active }
func (m *fakeMedia) MicActive() bool    { m.mu.Lock(); defer m.mu.Unlock(); return m.active }

func (m *fakeMedia) counts() (acquires, releases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquires, m.releases
}

type fakeWatcher struct {
	mu         sync.Mutex
	installErr error
	// stall makes Install wait for its context, closing entered first.
	stall     bool
	entered   chan struct{}
	onInstall func(sink func(model.AnomalyEvent))
	sink      func(model.AnomalyEvent)
	installs  int
	teardowns int
}

func (w *fakeWatcher) Install(ctx context.Context, sink func(model.AnomalyEvent)) error {
	w.mu.Lock()
	stall, entered, hook := w.stall, w.entered, w.onInstall
	w.mu.Unlock()

	if stall {
		if entered != nil {
			close(entered)
		}
		<-ctx.Done()
		return ctx.Err()
	}
	if hook != nil {
		hook(sink)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.installErr != nil {
		return w.installErr
	}
	w.installs++
	w.sink = sink
	return nil
}

func (w *fakeWatcher) Teardown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.teardowns++
}

// emit delivers an anomaly through the installed sink even after teardown,
// mimicking a late delivery.
func (w *fakeWatcher) emit(kind model.AnomalyKind, ts time.Time) {
	w.mu.Lock()
	sink := w.sink
	w.mu.Unlock()
	if sink != nil {
		sink(model.AnomalyEvent{Kind: kind, Timestamp: ts})
	}
}

type savedResult struct {
	offerID     uuid.UUID
	candidateID int
	result      model.Result
}

type memStore struct {
	mu    sync.Mutex
	err   error
	saved []savedResult
}

func (s *memStore) Save(_ context.Context, offerID uuid.UUID, candidateID int, result model.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, savedResult{offerID, candidateID, result})
	return s.err
}

func (s *memStore) all() []savedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]savedResult(nil), s.saved...)
}

type countingObserver struct {
	mu        sync.Mutex
	anomalies []int
	completed int
}

func (o *countingObserver) AnomalyDetected(_ model.AnomalyEvent, total int) {
	o.mu.Lock()
	o.anomalies = append(o.anomalies, total)
	o.mu.Unlock()
}

func (o *countingObserver) SessionCompleted(model.Result) {
	o.mu.Lock()
	o.completed++
	o.mu.Unlock()
}

type harness struct {
	ctrl     *Controller
	media    *fakeMedia
	watcher  *fakeWatcher
	store    *memStore
	observer *countingObserver
	qs       []model.Question
	offerID  uuid.UUID
}

func newHarness(t *testing.T, n int, cfg Config) *harness {
	t.Helper()
	h := &harness{
		media:    &fakeMedia{},
		watcher:  &fakeWatcher{},
		store:    &memStore{},
		observer: &countingObserver{},
		qs:       makeQuestions(n),
		offerID:  uuid.New(),
	}
	ctrl, err := NewController(h.offerID, 42, h.qs, cfg, Deps{
		Media:    h.media,
		Watcher:  h.watcher,
		Store:    h.store,
		Observer: h.observer,
		Logger:   zerolog.Nop(),
		Clock:    func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

func manualConfig(duration int) Config {
	return Config{DurationSeconds: duration, AbandonPolicy: AbandonDiscard}
}

func TestNewControllerRejectsEmptyBank(t *testing.T) {
	_, err := NewController(uuid.New(), 1, nil, manualConfig(60), Deps{
		Media: &fakeMedia{}, Watcher: &fakeWatcher{}, Store: &memStore{},
	})
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestStartWithoutConsentHasNoSideEffects(t *testing.T) {
	h := newHarness(t, 3, manualConfig(1800))

	err := h.ctrl.Start(t.Context(), false)

	assert.ErrorIs(t, err, ErrConsentRequired)
	acquires, _ := h.media.counts()
	assert.Zero(t, acquires)
	assert.Zero(t, h.watcher.installs)
	assert.Equal(t, PhaseAwaitingConsent, h.ctrl.State().Phase)
}

func TestStartAcquiresMediaAndInstallsWatcher(t *testing.T) {
	h := newHarness(t, 3, manualConfig(1800))

	require.NoError(t, h.ctrl.Start(t.Context(), true))

	s := h.ctrl.State()
	assert.Equal(t, PhaseInProgress, s.Phase)
	assert.Equal(t, 1800, s.RemainingSeconds)
	assert.True(t, s.CameraActive)
	assert.True(t, s.MicActive)
	assert.Equal(t, 1, h.watcher.installs)

	assert.ErrorIs(t, h.ctrl.Start(t.Context(), true), ErrAlreadyStarted)
}

func TestStartMediaFailureIsRetryable(t *testing.T) {
	h := newHarness(t, 2, manualConfig(60))
	h.media.err = &media.AccessError{Cause: media.ErrPermissionDenied}

	err := h.ctrl.Start(t.Context(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrAccess)
	assert.ErrorIs(t, err, media.ErrPermissionDenied)

	s := h.ctrl.State()
	assert.Equal(t, PhaseAwaitingConsent, s.Phase)
	assert.False(t, s.CameraActive)
	assert.False(t, s.MicActive)
	assert.Zero(t, h.watcher.installs)

	h.media.err = nil
	require.NoError(t, h.ctrl.Start(t.Context(), true))
	assert.Equal(t, PhaseInProgress, h.ctrl.State().Phase)
}

func TestStartWrapsUnknownMediaErrors(t *testing.T) {
	h := newHarness(t, 1, manualConfig(60))
	h.media.err = errors.New("driver crashed")

	err := h.ctrl.Start(t.Context(), true)

	var accessErr *media.AccessError
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, "unknown", accessErr.Reason())
}

func TestStartReleasesMediaWhenWatcherFails(t *testing.T) {
	h := newHarness(t, 1, manualConfig(60))
	h.watcher.installErr = errors.New("redis down")

	err := h.ctrl.Start(t.Context(), true)
	require.Error(t, err)

	_, releases := h.media.counts()
	assert.Equal(t, 1, releases)
	assert.Equal(t, PhaseAwaitingConsent, h.ctrl.State().Phase)
	assert.False(t, h.ctrl.State().CameraActive)
}

func TestScenarioScoresFromFinalState(t *testing.T) {
	h := newHarness(t, 5, manualConfig(1800))
	require.NoError(t, h.ctrl.Start(t.Context(), true))

	for i, q := range h.qs {
		option := 0
		if i == 4 {
			option = 2
		}
		require.NoError(t, h.ctrl.SelectAnswer(q.ID, option))
	}
	h.watcher.emit(model.AnomalyFocusLost, time.Now())
	h.watcher.emit(model.AnomalyClipboardAttempt, time.Now())

	for range 1200 {
		assert.False(t, h.ctrl.tick())
	}
	assert.Equal(t, 600, h.ctrl.State().RemainingSeconds)

	result, err := h.ctrl.Submit(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 80, result.CompetencyScore)
	assert.Equal(t, 70, result.CredibilityScore)
	assert.Equal(t, 1200, result.TotalElapsedSeconds)
	assert.Equal(t, 4, result.CorrectAnswers)
	assert.Equal(t, 5, result.TotalQuestions)
	assert.Len(t, result.Anomalies, 2)
	assert.Equal(t, model.ResultStatusCompleted, result.Status)
	assert.Equal(t, model.ReasonSubmitted, result.Reason)
	assert.Equal(t, h.offerID, result.OfferID)

	saved := h.store.all()
	require.Len(t, saved, 1)
	assert.Equal(t, h.offerID, saved[0].offerID)
	assert.Equal(t, 42, saved[0].candidateID)
	assert.Equal(t, result, saved[0].result)

	assert.Equal(t, []int{1, 2}, h.observer.anomalies)
	assert.Equal(t, 1, h.observer.completed)
}

func TestSubmitTearsDownAndReleases(t *testing.T) {
	h := newHarness(t, 2, manualConfig(60))
	require.NoError(t, h.ctrl.Start(t.Context(), true))

	_, err := h.ctrl.Submit(t.Context())
	require.NoError(t, err)

	_, releases := h.media.counts()
	assert.Equal(t, 1, releases)
	assert.Equal(t, 1, h.watcher.teardowns)
	s := h.ctrl.State()
	assert.Equal(t, PhaseCompleted, s.Phase)
	assert.False(t, s.CameraActive)
	assert.False(t, s.MicActive)

	_, err = h.ctrl.Submit(t.Context())
	assert.ErrorIs(t, err, ErrNotInProgress)
	assert.Len(t, h.store.all(), 1)
}

func TestSubmitBeforeStart(t *testing.T) {
	h := newHarness(t, 1, manualConfig(60))
	_, err := h.ctrl.Submit(t.Context())
	assert.ErrorIs(t, err, ErrNotInProgress)
	assert.Empty(t, h.store.all())
}

func TestSubmitReturnsResultWhenSaveFails(t *testing.T) {
	h := newHarness(t, 1, manualConfig(60))
	h.store.err = errors.New("queue unavailable")
	require.NoError(t, h.ctrl.Start(t.Context(), true))

	result, err := h.ctrl.Submit(t.Context())
	assert.Error(t, err)
	assert.Equal(t, model.ResultStatusCompleted, result.Status)

	frozen, ok := h.ctrl.Result()
	assert.True(t, ok)
	assert.Equal(t, result, frozen)
}

func TestTimeoutCompletesWithUnansweredQuestions(t *testing.T) {
	h := newHarness(t, 3, manualConfig(3))
	require.NoError(t, h.ctrl.Start(t.Context(), true))
	require.NoError(t, h.ctrl.SelectAnswer(h.qs[0].ID, 0))

	assert.False(t, h.ctrl.tick())
	assert.False(t, h.ctrl.tick())
	assert.True(t, h.ctrl.tick())

	s := h.ctrl.State()
	assert.Equal(t, PhaseCompleted, s.Phase)
	assert.Equal(t, 0, s.RemainingSeconds)

	result, ok := h.ctrl.Result()
	require.True(t, ok)
	assert.Equal(t, model.ReasonTimeout, result.Reason)
	assert.Equal(t, 33, result.CompetencyScore)
	assert.Equal(t, 3, result.TotalElapsedSeconds)

	_, releases := h.media.counts()
	assert.Equal(t, 1, releases)
	assert.Equal(t, 1, h.watcher.teardowns)
	assert.Len(t, h.store.all(), 1)

	assert.True(t, h.ctrl.tick())
	assert.Len(t, h.store.all(), 1)
}

func TestCompletedResultIsFrozen(t *testing.T) {
	h := newHarness(t, 2, manualConfig(60))
	require.NoError(t, h.ctrl.Start(t.Context(), true))
	require.NoError(t, h.ctrl.SelectAnswer(h.qs[0].ID, 0))

	result, err := h.ctrl.Submit(t.Context())
	require.NoError(t, err)

	assert.ErrorIs(t, h.ctrl.SelectAnswer(h.qs[1].ID, 0), ErrNotInProgress)
	assert.ErrorIs(t, h.ctrl.GoToNext(), ErrNotInProgress)
	assert.ErrorIs(t, h.ctrl.GoToPrevious(), ErrNotInProgress)
	h.watcher.emit(model.AnomalyDevToolsAttempt, time.Now())

	result.Anomalies = append(result.Anomalies, model.AnomalyEvent{Kind: model.AnomalyFocusLost})

	frozen, ok := h.ctrl.Result()
	require.True(t, ok)
	assert.Empty(t, frozen.Anomalies)
	assert.Equal(t, 100, frozen.CredibilityScore)
	assert.Equal(t, 50, frozen.CompetencyScore)
	assert.Empty(t, h.ctrl.State().Anomalies)
}

func TestNavigationGuard(t *testing.T) {
	h := newHarness(t, 2, manualConfig(60))
	require.NoError(t, h.ctrl.Start(t.Context(), true))

	assert.ErrorIs(t, h.ctrl.GoToNext(), ErrAnswerRequired)
	assert.Equal(t, 0, h.ctrl.State().CurrentQuestionIndex)

	require.NoError(t, h.ctrl.SelectAnswer(h.qs[0].ID, 1))
	require.NoError(t, h.ctrl.GoToNext())
	assert.Equal(t, 1, h.ctrl.State().CurrentQuestionIndex)

	require.NoError(t, h.ctrl.GoToPrevious())
	require.NoError(t, h.ctrl.GoToPrevious())
	assert.Equal(t, 0, h.ctrl.State().CurrentQuestionIndex)
}

func TestCancelDiscardTearsDownWithoutResult(t *testing.T) {
	h := newHarness(t, 2, manualConfig(60))
	require.NoError(t, h.ctrl.Start(t.Context(), true))

	require.NoError(t, h.ctrl.Cancel(t.Context()))
	require.NoError(t, h.ctrl.Close())

	_, releases := h.media.counts()
	assert.Equal(t, 1, releases)
	assert.Equal(t, 1, h.watcher.teardowns)
	assert.Empty(t, h.store.all())
	_, ok := h.ctrl.Result()
	assert.False(t, ok)
	assert.Equal(t, PhaseCompleted, h.ctrl.State().Phase)
	assert.ErrorIs(t, h.ctrl.Start(t.Context(), true), ErrSessionClosed)
}

func TestCancelRecordEmitsAbandonedResult(t *testing.T) {
	cfg := manualConfig(60)
	cfg.AbandonPolicy = AbandonRecord
	h := newHarness(t, 2, cfg)
	require.NoError(t, h.ctrl.Start(t.Context(), true))
	h.ctrl.tick()

	require.NoError(t, h.ctrl.Cancel(t.Context()))

	saved := h.store.all()
	require.Len(t, saved, 1)
	assert.Equal(t, model.ResultStatusAbandoned, saved[0].result.Status)
	assert.Equal(t, model.ReasonCancelled, saved[0].result.Reason)
	assert.Equal(t, 1, saved[0].result.TotalElapsedSeconds)

	require.NoError(t, h.ctrl.Cancel(t.Context()))
	assert.Len(t, h.store.all(), 1)
}

func TestCancelInterruptsPendingStart(t *testing.T) {
	h := newHarness(t, 1, manualConfig(60))
	h.media.block = true
	h.media.entered = make(chan struct{})

	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.Start(context.Background(), true) }()

	<-h.media.entered
	assert.ErrorIs(t, h.ctrl.Start(t.Context(), true), ErrStartPending)
	require.NoError(t, h.ctrl.Cancel(t.Context()))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("pending start was not interrupted")
	}
	assert.Zero(t, h.watcher.installs)
	assert.Equal(t, PhaseAwaitingConsent, h.ctrl.State().Phase)
}

func TestCancelDuringWatcherInstall(t *testing.T) {
	h := newHarness(t, 1, manualConfig(60))
	h.watcher.stall = true
	h.watcher.entered = make(chan struct{})

	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.Start(context.Background(), true) }()

	<-h.watcher.entered
	cancelled := make(chan error, 1)
	go func() { cancelled <- h.ctrl.Cancel(t.Context()) }()

	select {
	case err := <-cancelled:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cancel blocked behind watcher install")
	}

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("pending start was not interrupted")
	}

	acquires, releases := h.media.counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases)
	assert.Equal(t, PhaseAwaitingConsent, h.ctrl.State().Phase)
	assert.ErrorIs(t, h.ctrl.Start(t.Context(), true), ErrSessionClosed)
}

func TestStartKeepsAnomaliesSeenDuringInstall(t *testing.T) {
	h := newHarness(t, 2, manualConfig(60))
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h.watcher.onInstall = func(sink func(model.AnomalyEvent)) {
		sink(model.AnomalyEvent{Kind: model.AnomalyFocusLost, Timestamp: ts})
	}

	require.NoError(t, h.ctrl.Start(t.Context(), true))

	s := h.ctrl.State()
	require.Len(t, s.Anomalies, 1)
	assert.Equal(t, model.AnomalyFocusLost, s.Anomalies[0].Kind)
	h.observer.mu.Lock()
	assert.Equal(t, []int{1}, h.observer.anomalies)
	h.observer.mu.Unlock()
}

func TestCountdownSchedulerForcesCompletion(t *testing.T) {
	h := newHarness(t, 2, Config{DurationSeconds: 3, TickInterval: 5 * time.Millisecond})
	require.NoError(t, h.ctrl.Start(t.Context(), true))

	assert.Eventually(t, func() bool {
		return h.ctrl.State().Phase == PhaseCompleted
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return len(h.store.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.ReasonTimeout, h.store.all()[0].result.Reason)
	assert.Equal(t, 3, h.store.all()[0].result.TotalElapsedSeconds)
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t, 3, manualConfig(125))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseAwaitingConsent, snap.Phase)
	assert.Equal(t, 3, snap.TotalQuestions)

	require.NoError(t, h.ctrl.Start(t.Context(), true))
	require.NoError(t, h.ctrl.SelectAnswer(h.qs[2].ID, 1))
	require.NoError(t, h.ctrl.SelectAnswer(h.qs[0].ID, 3))
	h.watcher.emit(model.AnomalyFocusLost, time.Now())

	snap = h.ctrl.Snapshot()
	assert.Equal(t, h.ctrl.ID(), snap.SessionID)
	assert.Equal(t, "02:05", snap.Remaining)
	assert.Equal(t, 2, snap.AnsweredCount)
	require.Len(t, snap.Answers, 2)
	assert.Equal(t, h.qs[0].ID, snap.Answers[0].QuestionID)
	assert.Equal(t, h.qs[2].ID, snap.Answers[1].QuestionID)
	assert.Equal(t, 1, snap.AnomalyCount)
	assert.True(t, snap.CameraActive)
}
