package proctor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor/media"
)

// AbandonPolicy decides what a cancelled in-progress session leaves behind.
type AbandonPolicy string

const (
	// AbandonDiscard tears the session down without emitting a Result.
	AbandonDiscard AbandonPolicy = "discard"
	// AbandonRecord emits a Result with status abandoned.
	AbandonRecord AbandonPolicy = "record"
)

// Config holds the per-session tunables.
type Config struct {
	DurationSeconds int
	// TickInterval is the countdown period. Zero disables the internal
	// scheduler; the countdown is then driven by tick.
	TickInterval  time.Duration
	AbandonPolicy AbandonPolicy
	SaveTimeout   time.Duration
}

// DefaultConfig returns the standard 30-minute budget ticking once per second.
func DefaultConfig() Config {
	return Config{
		DurationSeconds: 1800,
		TickInterval:    time.Second,
		AbandonPolicy:   AbandonDiscard,
		SaveTimeout:     5 * time.Second,
	}
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Media    Media
	Watcher  Watcher
	Store    ResultStore
	Observer Observer
	Logger   zerolog.Logger
	Clock    func() time.Time
}

// Controller is the session state machine for one candidate taking one
// offer's test. All methods are safe for concurrent use.
type Controller struct {
	id          uuid.UUID
	offerID     uuid.UUID
	candidateID int
	questions   []model.Question
	cfg         Config

	media    Media
	watcher  Watcher
	store    ResultStore
	observer Observer
	log      zerolog.Logger
	now      func() time.Time

	mu            sync.Mutex
	state         SessionState
	acquiring     bool
	cancelAcquire context.CancelFunc
	early         []model.AnomalyEvent
	closed        bool
	stopTick      chan struct{}
	result        *model.Result
}

// NewController creates a session awaiting consent.
func NewController(offerID uuid.UUID, candidateID int, questions []model.Question, cfg Config, deps Deps) (*Controller, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if deps.Media == nil || deps.Watcher == nil || deps.Store == nil {
		return nil, errors.New("proctor: media, watcher and store are required")
	}
	if cfg.DurationSeconds <= 0 {
		cfg.DurationSeconds = DefaultConfig().DurationSeconds
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = DefaultConfig().SaveTimeout
	}
	if cfg.AbandonPolicy == "" {
		cfg.AbandonPolicy = AbandonDiscard
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	id := uuid.New()
	return &Controller{
		id:          id,
		offerID:     offerID,
		candidateID: candidateID,
		questions:   append([]model.Question(nil), questions...),
		cfg:         cfg,
		media:       deps.Media,
		watcher:     deps.Watcher,
		store:       deps.Store,
		observer:    deps.Observer,
		now:         deps.Clock,
		log: deps.Logger.With().
			Str("component", "session_controller").
			Str("session_id", id.String()).
			Str("offer_id", offerID.String()).
			Int("candidate_id", candidateID).
			Logger(),
		state: newSessionState(),
	}, nil
}

func (c *Controller) ID() uuid.UUID      { return c.id }
func (c *Controller) OfferID() uuid.UUID { return c.offerID }
func (c *Controller) CandidateID() int   { return c.candidateID }

// DurationSeconds is the test's time budget.
func (c *Controller) DurationSeconds() int { return c.cfg.DurationSeconds }

// Questions returns the paper as shown to the candidate.
func (c *Controller) Questions() []model.CandidateQuestion {
	out := make([]model.CandidateQuestion, len(c.questions))
	for i, q := range c.questions {
		out[i] = q.ForCandidate()
	}
	return out
}

// State returns a copy of the current state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Result returns the frozen result once the session has completed with one.
func (c *Controller) Result() (model.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return model.Result{}, false
	}
	return c.result.Clone(), true
}

// Start moves the session into progress. consent is the aggregated consent
// gate; without it nothing is acquired. Media failures return an
// *media.AccessError and leave the session awaiting consent so the caller may
// retry. Start blocks while the media permission prompt is pending and while
// the integrity watcher subscribes; Cancel interrupts both.
func (c *Controller) Start(ctx context.Context, consent bool) error {
	if !consent {
		c.log.Info().Msg("Start refused: consent not granted")
		return ErrConsentRequired
	}

	c.mu.Lock()
	switch {
	case c.closed || c.state.Phase == PhaseCompleted:
		c.mu.Unlock()
		return ErrSessionClosed
	case c.state.Phase == PhaseInProgress:
		c.mu.Unlock()
		return ErrAlreadyStarted
	case c.acquiring:
		c.mu.Unlock()
		return ErrStartPending
	}
	acquireCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.acquiring = true
	c.cancelAcquire = cancel
	c.mu.Unlock()

	err := c.media.Acquire(acquireCtx)
	var installErr error
	if err == nil {
		// Anomalies observed before the state commits are held in c.early.
		if installErr = c.watcher.Install(acquireCtx, c.recordAnomaly); installErr != nil {
			c.media.Release()
		}
	}

	c.mu.Lock()
	c.acquiring = false
	c.cancelAcquire = nil
	early := c.early
	c.early = nil

	if err != nil {
		c.state, _ = reduce(c.state, c.questions, mediaAction{})
		closed := c.closed
		c.mu.Unlock()

		var accessErr *media.AccessError
		if !errors.As(err, &accessErr) {
			err = &media.AccessError{Cause: err}
		}
		c.log.Warn().Err(err).Msg("Start failed: media access")
		if closed {
			return ErrSessionClosed
		}
		return err
	}

	if installErr != nil {
		c.state, _ = reduce(c.state, c.questions, mediaAction{})
		closed := c.closed
		c.mu.Unlock()

		c.log.Error().Err(installErr).Msg("Start failed: integrity watcher")
		if closed {
			return ErrSessionClosed
		}
		return fmt.Errorf("install integrity watcher: %w", installErr)
	}

	if c.closed {
		c.watcher.Teardown()
		c.media.Release()
		c.state, _ = reduce(c.state, c.questions, mediaAction{})
		c.mu.Unlock()
		return ErrSessionClosed
	}

	c.state, _ = reduce(c.state, c.questions, beginAction{
		durationSeconds: c.cfg.DurationSeconds,
		cameraActive:    c.media.CameraActive(),
		micActive:       c.media.MicActive(),
	})

	var replayed []model.AnomalyEvent
	for _, ev := range early {
		next, rerr := reduce(c.state, c.questions, anomalyAction{event: ev})
		if rerr != nil {
			continue
		}
		c.state = next
		replayed = append(replayed, next.Anomalies[len(next.Anomalies)-1])
	}
	total := len(c.state.Anomalies) - len(replayed)

	if c.cfg.TickInterval > 0 {
		c.stopTick = make(chan struct{})
		go c.runCountdown(c.stopTick, c.cfg.TickInterval)
	}
	c.mu.Unlock()

	for _, ev := range replayed {
		total++
		c.observer.AnomalyDetected(ev, total)
	}

	c.log.Info().Int("duration_seconds", c.cfg.DurationSeconds).Int("questions", len(c.questions)).Msg("Session started")
	return nil
}

// SelectAnswer records optionIndex for questionID, replacing any earlier choice.
func (c *Controller) SelectAnswer(questionID uuid.UUID, optionIndex int) error {
	return c.apply(selectAction{questionID: questionID, optionIndex: optionIndex})
}

// GoToNext advances one question. It fails with ErrAnswerRequired when the
// current question is unanswered. On the last question it is a no-op.
func (c *Controller) GoToNext() error {
	return c.apply(navigateAction{delta: 1})
}

// GoToPrevious moves back one question. On the first question it is a no-op.
func (c *Controller) GoToPrevious() error {
	return c.apply(navigateAction{delta: -1})
}

func (c *Controller) apply(a action) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := reduce(c.state, c.questions, a)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Submit completes the session whatever the number of answered questions and
// hands the Result to the store. The Result is returned even when saving it fails.
func (c *Controller) Submit(ctx context.Context) (model.Result, error) {
	c.mu.Lock()
	if c.state.Phase != PhaseInProgress {
		c.mu.Unlock()
		return model.Result{}, ErrNotInProgress
	}
	result := c.completeLocked(model.ResultStatusCompleted, model.ReasonSubmitted)
	c.mu.Unlock()

	return result, c.finish(ctx, result)
}

// Cancel abandons the session. In progress, it runs the same teardown as
// Submit and, under AbandonRecord, emits an abandoned Result. A pending Start
// is interrupted. Cancel is idempotent.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	if c.acquiring && c.cancelAcquire != nil {
		c.cancelAcquire()
	}

	if c.state.Phase != PhaseInProgress {
		c.mu.Unlock()
		return nil
	}

	if c.cfg.AbandonPolicy == AbandonRecord {
		result := c.completeLocked(model.ResultStatusAbandoned, model.ReasonCancelled)
		c.mu.Unlock()
		return c.finish(ctx, result)
	}

	c.teardownLocked()
	c.state, _ = reduce(c.state, c.questions, completeAction{})
	c.mu.Unlock()

	c.log.Info().Str("reason", string(model.ReasonCancelled)).Msg("Session discarded")
	return nil
}

// Close cancels the session with a background context.
func (c *Controller) Close() error {
	return c.Cancel(context.Background())
}

func (c *Controller) runCountdown(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if c.tick() {
				return
			}
		}
	}
}

// tick advances the countdown by one second and reports whether the session
// is no longer in progress.
func (c *Controller) tick() bool {
	c.mu.Lock()
	next, err := reduce(c.state, c.questions, tickAction{})
	if err != nil {
		c.mu.Unlock()
		return true
	}
	c.state = next
	if next.RemainingSeconds > 0 {
		c.mu.Unlock()
		return false
	}

	result := c.completeLocked(model.ResultStatusCompleted, model.ReasonTimeout)
	c.mu.Unlock()

	_ = c.finish(context.Background(), result)
	return true
}

func (c *Controller) recordAnomaly(ev model.AnomalyEvent) {
	c.mu.Lock()
	if c.acquiring && c.state.Phase == PhaseAwaitingConsent {
		c.early = append(c.early, ev)
		c.mu.Unlock()
		return
	}
	next, err := reduce(c.state, c.questions, anomalyAction{event: ev})
	if err != nil {
		c.mu.Unlock()
		return
	}
	c.state = next
	recorded := next.Anomalies[len(next.Anomalies)-1]
	total := len(next.Anomalies)
	c.mu.Unlock()

	c.log.Debug().Str("kind", string(recorded.Kind)).Int("total", total).Msg("Anomaly recorded")
	c.observer.AnomalyDetected(recorded, total)
}

// teardownLocked unsubscribes the watcher, releases media and stops the
// countdown. Callers hold c.mu.
func (c *Controller) teardownLocked() {
	c.watcher.Teardown()
	c.media.Release()
	c.state, _ = reduce(c.state, c.questions, mediaAction{})
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}

// completeLocked performs the Completed transition and freezes the Result.
// Callers hold c.mu and have checked the session is in progress.
func (c *Controller) completeLocked(status model.ResultStatus, reason model.CompletionReason) model.Result {
	c.teardownLocked()
	c.state, _ = reduce(c.state, c.questions, completeAction{})

	scores, _ := Evaluate(c.state, c.questions)
	result := model.Result{
		SessionID:           c.id,
		OfferID:             c.offerID,
		CandidateID:         c.candidateID,
		Status:              status,
		Reason:              reason,
		CompetencyScore:     scores.Competency,
		CredibilityScore:    scores.Credibility,
		CorrectAnswers:      scores.CorrectAnswers,
		TotalQuestions:      scores.TotalQuestions,
		TotalElapsedSeconds: scores.ElapsedSeconds,
		Anomalies:           append([]model.AnomalyEvent{}, c.state.Anomalies...),
		CompletedAt:         c.now(),
	}
	c.result = &result
	return result.Clone()
}

// finish hands the frozen result to the store, then to the observer. It runs
// exactly once per session, outside the lock.
func (c *Controller) finish(ctx context.Context, result model.Result) error {
	c.log.Info().
		Str("status", string(result.Status)).
		Str("reason", string(result.Reason)).
		Int("competency_score", result.CompetencyScore).
		Int("credibility_score", result.CredibilityScore).
		Int("anomalies", len(result.Anomalies)).
		Int("elapsed_seconds", result.TotalElapsedSeconds).
		Msg("Session completed")

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.SaveTimeout)
	defer cancel()

	err := c.store.Save(saveCtx, c.offerID, c.candidateID, result.Clone())
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to save session result")
		err = fmt.Errorf("save result: %w", err)
	}

	// Observers hear of completion only once the store has answered.
	c.observer.SessionCompleted(result.Clone())
	return err
}
