package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
)

// LocalOriginField is set to true in every shadow payload.
const LocalOriginField = "_local"

// ShadowRecord is an optimistic stand-in for an entity created while offline.
type ShadowRecord struct {
	ID        string
	Table     string
	Payload   map[string]any
	CreatedAt time.Time
}

// IsLocalID reports whether id was generated on this client.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, common.LocalIDPrefix)
}
