// Package common defines shared constants and sentinel errors used across
// the store, queue and sync layers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Storage errors. ErrStorageUnavailable is fatal to the calling operation
	// and never retried internally.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrSerialization      = errors.New("serialization error")

	// Replay errors (recoverable, drive the retry counter).
	ErrTransport = errors.New("transport error")

	// Validation errors.
	ErrUnknownOperation = errors.New("unknown operation")
)
