// Package common contains shared constants and sentinel errors used across
// offsync components.
package common

// MaxRetries is the retry ceiling of a pending mutation. A mutation whose
// retry counter grows past this value is evicted.
const MaxRetries = 5

// LocalIDPrefix namespaces client-generated shadow record identifiers so they
// can never collide with server-assigned ones.
const LocalIDPrefix = "local:"

// LastSyncMetadataKey is the metadata key holding the time of the last
// finished drain cycle.
const LastSyncMetadataKey = "last_sync"
