package domain

import (
	"fmt"
	"time"
)

// Audio source types routed into a broadcast mix.
const (
	SourceTypeHostMic = "host_mic"
	SourceTypeCoHost  = "cohost"
	SourceTypeCaller  = "caller"
	SourceTypeMusic   = "music"
)

// AudioSource is a named audio input attached to a broadcast session.
type AudioSource struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	Label             string    `json:"label,omitempty"`
	Volume            float64   `json:"volume"`
	Muted             bool      `json:"muted"`
	Priority          int       `json:"priority"`
	OwnerConnectionID string    `json:"owner_connection_id"`
	AddedAt           time.Time `json:"added_at"`
}

// SourceID derives a deterministic id from (type, owner) so that
// re-adding the same logical source replaces rather than duplicates it.
func SourceID(sourceType, ownerConnectionID string) string {
	return fmt.Sprintf("%s:%s", sourceType, ownerConnectionID)
}
