package media

import (
	"errors"
	"fmt"
)

var (
	// ErrAccess matches every *AccessError via errors.Is.
	ErrAccess = errors.New("media access error")

	ErrPermissionDenied  = errors.New("permission denied")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrDeviceBusy        = errors.New("device held by another session")
)

// AccessError is returned when camera+microphone acquisition fails.
type AccessError struct {
	Cause error
}

func (e *AccessError) Error() string {
	if e.Cause == nil {
		return ErrAccess.Error()
	}
	return fmt.Sprintf("%s: %v", ErrAccess.Error(), e.Cause)
}

func (e *AccessError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrAccess) true for any AccessError.
func (e *AccessError) Is(target error) bool { return target == ErrAccess }

// Reason returns a short machine-readable reason for presentation layers.
func (e *AccessError) Reason() string {
	switch {
	case errors.Is(e.Cause, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(e.Cause, ErrDeviceBusy):
		return "device_busy"
	case errors.Is(e.Cause, ErrDeviceUnavailable):
		return "device_unavailable"
	default:
		return "unknown"
	}
}
