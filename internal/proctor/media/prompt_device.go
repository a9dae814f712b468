package media

import (
	"context"
	"fmt"
	"sync"
)

// Grant is the outcome of the browser's permission prompt.
type Grant struct {
	Camera     bool `json:"camera"`
	Microphone bool `json:"microphone"`
}

// PromptDevice is a Device whose tracks live in the candidate's browser.
// Open asks the client to prompt for access and suspends until the client
// reports the outcome through Report, or ctx ends.
type PromptDevice struct {
	prompt func()
	onStop func()
	grants chan Grant
}

// NewPromptDevice creates a PromptDevice. prompt is invoked on every Open and
// onStop when the opened stream is stopped. Both may be nil.
func NewPromptDevice(prompt, onStop func()) *PromptDevice {
	return &PromptDevice{
		prompt: prompt,
		onStop: onStop,
		grants: make(chan Grant, 1),
	}
}

// Open implements Device.
func (d *PromptDevice) Open(ctx context.Context) (Stream, error) {
	// Drop a stale report left over from an earlier prompt.
	select {
	case <-d.grants:
	default:
	}

	if d.prompt != nil {
		d.prompt()
	}

	select {
	case g := <-d.grants:
		if !g.Camera || !g.Microphone {
			return nil, &AccessError{Cause: ErrPermissionDenied}
		}
		return &remoteStream{onStop: d.onStop}, nil
	case <-ctx.Done():
		return nil, &AccessError{Cause: fmt.Errorf("%w: %v", ErrDeviceUnavailable, ctx.Err())}
	}
}

// Report delivers the prompt outcome. It never blocks; it returns false when
// a report is already pending.
func (d *PromptDevice) Report(g Grant) bool {
	select {
	case d.grants <- g:
		return true
	default:
		return false
	}
}

type remoteStream struct {
	once   sync.Once
	onStop func()
}

func (s *remoteStream) Stop() {
	s.once.Do(func() {
		if s.onStop != nil {
			s.onStop()
		}
	})
}
