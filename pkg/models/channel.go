package models

import "time"

// Channel represents a linear channel assembled from scheduled assets.
// Namespace scopes asset lookups and the channel's standby asset key.
type Channel struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Namespace     string    `json:"namespace" db:"namespace"`
	LiveOverride  bool      `json:"live_override" db:"live_override"`
	LiveSourceRef string    `json:"live_source_ref,omitempty" db:"live_source_ref"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
