package models

import (
	"encoding/json"
	"time"
)

// CacheEntry is the last known good snapshot of a whole table.
type CacheEntry struct {
	Table       string
	Data        json.RawMessage
	LastUpdated time.Time
}
