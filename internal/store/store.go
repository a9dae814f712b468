// Package store holds the ResultStore implementations the session controller
// hands its frozen Result to.
package store

import "errors"

// ErrNotFound is returned when no result exists for the offer and candidate.
var ErrNotFound = errors.New("result not found")
