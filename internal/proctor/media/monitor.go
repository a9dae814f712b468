package media

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Stream is a live combined camera+microphone stream.
type Stream interface {
	// Stop stops every underlying track. It must be safe to call more than once.
	Stop()
}

// Device opens camera and microphone together. Open may suspend while the
// candidate answers a permission prompt.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// PreviewSink receives the live stream for the candidate's self-preview.
type PreviewSink interface {
	Bind(s Stream)
}

// Monitor acquires and releases camera+microphone as a pair.
// Both flags are always equal outside of Acquire.
type Monitor struct {
	mu     sync.Mutex
	device Device
	sink   PreviewSink
	log    zerolog.Logger

	stream       Stream
	cameraActive bool
	micActive    bool
}

// NewMonitor creates a Monitor. sink may be nil.
func NewMonitor(device Device, sink PreviewSink, log zerolog.Logger) *Monitor {
	return &Monitor{
		device: device,
		sink:   sink,
		log:    log.With().Str("component", "media_monitor").Logger(),
	}
}

// Acquire requests combined camera+microphone access. On failure both flags
// are false and the error is an *AccessError.
func (m *Monitor) Acquire(ctx context.Context) error {
	m.mu.Lock()
	if m.stream != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	stream, err := m.device.Open(ctx)
	if err == nil && stream == nil {
		err = ErrDeviceUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.cameraActive, m.micActive = false, false
		var ae *AccessError
		if !errors.As(err, &ae) {
			err = &AccessError{Cause: err}
		}
		m.log.Warn().Err(err).Msg("Media acquisition failed")
		return err
	}

	// A concurrent Acquire won the race; keep the first stream.
	if m.stream != nil {
		stream.Stop()
		return nil
	}

	m.stream = stream
	m.cameraActive, m.micActive = true, true
	if m.sink != nil {
		m.sink.Bind(stream)
	}
	m.log.Debug().Msg("Media acquired")
	return nil
}

// Release stops all tracks and clears both flags. Safe to call repeatedly
// or without a prior Acquire.
func (m *Monitor) Release() {
	m.mu.Lock()
	stream := m.stream
	m.stream = nil
	m.cameraActive, m.micActive = false, false
	m.mu.Unlock()

	if stream != nil {
		stream.Stop()
		m.log.Debug().Msg("Media released")
	}
}

// CameraActive reports whether the camera is currently held.
func (m *Monitor) CameraActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cameraActive
}

// MicActive reports whether the microphone is currently held.
func (m *Monitor) MicActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.micActive
}
