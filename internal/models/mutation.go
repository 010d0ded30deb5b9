// Package models defines the records owned by the durable store: pending
// mutations, local shadow records and cached table snapshots.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
)

// Operation is the entity-level meaning of a mutation.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ParseOperation validates s as an Operation.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OperationCreate, OperationUpdate, OperationDelete:
		return op, nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrUnknownOperation, s)
	}
}

// PendingMutation is a durable record of one write that has not been
// confirmed by the server yet.
type PendingMutation struct {
	// ID is time-ordered plus random (UUIDv7) and never changes.
	ID string

	// Target, Method, Headers and Body are replayed verbatim.
	Target  string
	Method  string
	Headers map[string]string
	Body    []byte

	// EnqueuedAt orders replay; it is strictly increasing per queue.
	EnqueuedAt time.Time

	// RetryCount grows by one per failed replay; the mutation is evicted once
	// it exceeds common.MaxRetries.
	RetryCount int

	// Table is the logical collection the mutation affects.
	Table     string
	Operation Operation

	// LocalID references the shadow record awaiting this mutation, if any.
	LocalID string
}
