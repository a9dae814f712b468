package service

import (
	"context"
	"errors"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/proctor/media"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the proctoring instruments.
type Metrics struct {
	sessionsStarted   metric.Int64Counter
	sessionsCompleted metric.Int64Counter
	activeSessions    metric.Int64UpDownCounter
	anomalies         metric.Int64Counter
	startFailures     metric.Int64Counter
}

// NewMetrics registers the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.sessionsStarted, err = meter.Int64Counter("proctor.sessions.started",
		metric.WithDescription("Sessions that entered the in-progress phase"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}
	if m.sessionsCompleted, err = meter.Int64Counter("proctor.sessions.completed",
		metric.WithDescription("Sessions that emitted a result"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}
	if m.activeSessions, err = meter.Int64UpDownCounter("proctor.sessions.active",
		metric.WithDescription("Sessions currently registered on this instance"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}
	if m.anomalies, err = meter.Int64Counter("proctor.anomalies",
		metric.WithDescription("Integrity anomalies recorded"),
		metric.WithUnit("{anomaly}"),
	); err != nil {
		return nil, err
	}
	if m.startFailures, err = meter.Int64Counter("proctor.start.failures",
		metric.WithDescription("Session starts refused or failed"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) SessionOpened(ctx context.Context) { m.activeSessions.Add(ctx, 1) }
func (m *Metrics) SessionClosed(ctx context.Context) { m.activeSessions.Add(ctx, -1) }
func (m *Metrics) SessionStarted(ctx context.Context) { m.sessionsStarted.Add(ctx, 1) }

func (m *Metrics) SessionCompleted(ctx context.Context, res model.Result) {
	m.sessionsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(res.Status)),
		attribute.String("reason", string(res.Reason)),
	))
}

func (m *Metrics) AnomalyRecorded(ctx context.Context, kind model.AnomalyKind) {
	m.anomalies.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (m *Metrics) StartFailed(ctx context.Context, err error) {
	reason := "other"
	var accessErr *media.AccessError
	if errors.As(err, &accessErr) {
		reason = "media_" + accessErr.Reason()
	} else if errors.Is(err, proctor.ErrConsentRequired) {
		reason = "consent"
	}
	m.startFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
