package models

import "time"

// Status is the summary the UI polls instead of per-mutation callbacks.
// LastSync is zero until the first drain cycle finishes.
type Status struct {
	IsOnline     bool      `json:"isOnline"`
	PendingCount int       `json:"pendingRequests"`
	ShadowCount  int       `json:"shadowCount"`
	LastSync     time.Time `json:"lastSync"`
}
