package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/proctor/integrity"
	"github.com/stemsi/exstem-proctor/internal/proctor/media"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	ErrSessionActive    = errors.New("a proctored session is already open for this candidate")
	ErrAlreadyCompleted = errors.New("candidate already completed this test")
	ErrSessionNotFound  = errors.New("no open session")
)

const monitorPublishTimeout = 2 * time.Second

// SessionNotifier receives the events a live session pushes to its client.
// Methods are called from session goroutines and must not block.
type SessionNotifier interface {
	MediaRequested()
	MediaReleased()
	AnomalyWarning(event model.AnomalyEvent, total int)
	Completed(result model.Result)
}

// ProctorConfig holds the session tunables.
type ProctorConfig struct {
	Session       proctor.Config
	PromptTimeout time.Duration
	LeaseTTL      time.Duration
}

// NewProctorConfig derives the session tunables from the application config.
func NewProctorConfig(cfg *config.Config) ProctorConfig {
	return ProctorConfig{
		Session: proctor.Config{
			DurationSeconds: int(cfg.TestDuration / time.Second),
			TickInterval:    cfg.TickInterval,
			AbandonPolicy:   proctor.AbandonPolicy(cfg.AbandonPolicy),
			SaveTimeout:     5 * time.Second,
		},
		PromptTimeout: cfg.MediaPromptTimeout,
		// The lease outlives the test so a crashed instance cannot hold it forever.
		LeaseTTL: cfg.TestDuration + cfg.MediaPromptTimeout + time.Minute,
	}
}

// MonitorEvent is published on the offer's monitor channel.
type MonitorEvent struct {
	Type         string            `json:"type"`
	OfferID      uuid.UUID         `json:"offer_id"`
	CandidateID  int               `json:"candidate_id"`
	SessionID    uuid.UUID         `json:"session_id"`
	Kind         model.AnomalyKind `json:"kind,omitempty"`
	AnomalyCount int               `json:"anomaly_count"`
	Result       *model.Result     `json:"result,omitempty"`
	At           time.Time         `json:"at"`
}

type sessionKey struct {
	offerID     uuid.UUID
	candidateID int
}

// ProctorService owns the live sessions of this instance: one per
// (offer, candidate).
type ProctorService struct {
	rdb       *redis.Client
	questions *QuestionBankService
	consents  *ConsentService
	results   *ResultService
	store     proctor.ResultStore
	metrics   *Metrics
	cfg       ProctorConfig
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

// NewProctorService creates a new ProctorService.
func NewProctorService(
	rdb *redis.Client,
	questions *QuestionBankService,
	consents *ConsentService,
	results *ResultService,
	store proctor.ResultStore,
	metrics *Metrics,
	cfg ProctorConfig,
	log zerolog.Logger,
) *ProctorService {
	if metrics == nil {
		metrics, _ = NewMetrics(noop.NewMeterProvider().Meter("exstem-proctor"))
	}
	return &ProctorService{
		rdb:       rdb,
		questions: questions,
		consents:  consents,
		results:   results,
		store:     store,
		metrics:   metrics,
		cfg:       cfg,
		log:       log.With().Str("component", "proctor_service").Logger(),
		sessions:  make(map[sessionKey]*Session),
	}
}

// Open creates the candidate's session for an offer, awaiting consent.
func (s *ProctorService) Open(ctx context.Context, offerID uuid.UUID, candidateID int, notifier SessionNotifier) (*Session, error) {
	done, err := s.results.Exists(ctx, offerID, candidateID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, ErrAlreadyCompleted
	}

	questions, err := s.questions.Load(ctx, offerID)
	if err != nil {
		return nil, err
	}

	key := sessionKey{offerID: offerID, candidateID: candidateID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[key]; ok {
		return nil, ErrSessionActive
	}

	log := s.log.With().Str("offer_id", offerID.String()).Int("candidate_id", candidateID).Logger()

	device := media.NewPromptDevice(notifier.MediaRequested, notifier.MediaReleased)
	leased := media.NewLeasedDevice(s.rdb, config.CacheKey.CandidateMediaLeaseKey(candidateID), s.cfg.LeaseTTL, device, log)
	monitor := media.NewMonitor(leased, nil, log)

	bus := integrity.NewBus()
	watcher := integrity.NewWatcher(nil, log,
		bus,
		integrity.NewRedisSource(s.rdb, config.CacheKey.SessionSignalChannel(offerID, candidateID), log),
	)

	sess := &Session{svc: s, key: key, device: device, bus: bus, notifier: notifier}
	ctrl, err := proctor.NewController(offerID, candidateID, questions, s.cfg.Session, proctor.Deps{
		Media:    monitor,
		Watcher:  watcher,
		Store:    s.store,
		Observer: sess,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	sess.Controller = ctrl

	s.sessions[key] = sess
	s.metrics.SessionOpened(ctx)
	log.Info().Str("session_id", ctrl.ID().String()).Int("questions", len(questions)).Msg("Session opened")
	return sess, nil
}

// Get returns the open session of a candidate for an offer.
func (s *ProctorService) Get(offerID uuid.UUID, candidateID int) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey{offerID: offerID, candidateID: candidateID}]
	return sess, ok
}

// OpenSessions returns the number of sessions registered on this instance.
func (s *ProctorService) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ActiveSessions returns snapshots of the offer's sessions open on this instance.
func (s *ProctorService) ActiveSessions(offerID uuid.UUID) []proctor.Snapshot {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for k, sess := range s.sessions {
		if k.offerID == offerID {
			sessions = append(sessions, sess)
		}
	}
	s.mu.Unlock()

	out := make([]proctor.Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Snapshot())
	}
	return out
}

// PublishSignal forwards a raw signal to the session's watcher, wherever the
// session is running.
func (s *ProctorService) PublishSignal(ctx context.Context, offerID uuid.UUID, candidateID int, sig integrity.Signal) error {
	return integrity.PublishSignal(ctx, s.rdb, config.CacheKey.SessionSignalChannel(offerID, candidateID), sig)
}

// Shutdown cancels every open session.
func (s *ProctorService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		if err := sess.Cancel(ctx); err != nil {
			s.log.Error().Err(err).Str("session_id", sess.ID().String()).Msg("Failed to cancel session on shutdown")
		}
		s.unregister(sess)
	}
	s.log.Info().Int("sessions", len(sessions)).Msg("Open sessions cancelled")
}

func (s *ProctorService) unregister(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[sess.key]; ok && cur == sess {
		delete(s.sessions, sess.key)
		s.metrics.SessionClosed(context.Background())
	}
}

func (s *ProctorService) publishMonitor(ev MonitorEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), monitorPublishTimeout)
		defer cancel()
		if err := s.rdb.Publish(ctx, config.CacheKey.OfferMonitorChannel(ev.OfferID), payload).Err(); err != nil {
			s.log.Warn().Err(err).Str("type", ev.Type).Msg("Failed to publish monitor event")
		}
	}()
}

// Session is one candidate's live proctored test.
type Session struct {
	*proctor.Controller

	svc      *ProctorService
	key      sessionKey
	device   *media.PromptDevice
	bus      *integrity.Bus
	notifier SessionNotifier
}

// Start checks the recorded consent gate together with the client's own
// consent flag and starts the session. It blocks until the client reports
// the media prompt outcome or the prompt times out.
func (s *Session) Start(ctx context.Context, clientConsent bool) error {
	if !clientConsent {
		s.svc.metrics.StartFailed(ctx, proctor.ErrConsentRequired)
		return proctor.ErrConsentRequired
	}

	granted, err := s.svc.consents.Granted(ctx, s.key.offerID, s.key.candidateID)
	if err != nil {
		return err
	}

	if s.svc.cfg.PromptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.svc.cfg.PromptTimeout)
		defer cancel()
	}

	if err := s.Controller.Start(ctx, granted); err != nil {
		s.svc.metrics.StartFailed(ctx, err)
		return err
	}

	s.svc.metrics.SessionStarted(ctx)
	s.svc.publishMonitor(MonitorEvent{
		Type:        "started",
		OfferID:     s.key.offerID,
		CandidateID: s.key.candidateID,
		SessionID:   s.ID(),
		At:          time.Now().UTC(),
	})
	return nil
}

// ReportMedia delivers the client's permission prompt outcome.
func (s *Session) ReportMedia(g media.Grant) bool {
	return s.device.Report(g)
}

// Signal feeds a raw environment signal reported over the session stream.
func (s *Session) Signal(sig integrity.Signal) {
	s.bus.Publish(sig)
}

// Close cancels the session and removes it from the registry.
func (s *Session) Close() error {
	err := s.Controller.Close()
	s.svc.unregister(s)
	return err
}

// AnomalyDetected implements proctor.Observer.
func (s *Session) AnomalyDetected(ev model.AnomalyEvent, total int) {
	s.notifier.AnomalyWarning(ev, total)
	s.svc.metrics.AnomalyRecorded(context.Background(), ev.Kind)
	s.svc.publishMonitor(MonitorEvent{
		Type:         "anomaly",
		OfferID:      s.key.offerID,
		CandidateID:  s.key.candidateID,
		SessionID:    s.ID(),
		Kind:         ev.Kind,
		AnomalyCount: total,
		At:           ev.Timestamp,
	})
}

// SessionCompleted implements proctor.Observer. The result has already been
// through the store, so a reopen sees it.
func (s *Session) SessionCompleted(result model.Result) {
	s.notifier.Completed(result)
	s.svc.metrics.SessionCompleted(context.Background(), result)
	s.svc.publishMonitor(MonitorEvent{
		Type:         string(result.Status),
		OfferID:      s.key.offerID,
		CandidateID:  s.key.candidateID,
		SessionID:    result.SessionID,
		AnomalyCount: len(result.Anomalies),
		Result:       &result,
		At:           result.CompletedAt,
	})
	s.svc.unregister(s)
}
