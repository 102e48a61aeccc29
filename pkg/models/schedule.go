package models

import (
	"strings"
	"time"
)

// ScheduledItem is one timed entry on a channel's timeline.
type ScheduledItem struct {
	ID              string    `json:"id" db:"id"`
	ChannelID       string    `json:"channel_id" db:"channel_id"`
	StartTime       time.Time `json:"start_time" db:"start_time"`
	DurationSeconds int       `json:"duration_seconds" db:"duration_seconds"`
	AssetRef        string    `json:"asset_ref" db:"asset_ref"`
	Title           string    `json:"title,omitempty" db:"title"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Playable reports whether the item carries enough data to be played.
// Items failing this check are skipped by the active-item scan and by
// template building, but still show up in plain schedule listings.
func (s *ScheduledItem) Playable() bool {
	return s.DurationSeconds > 0 && strings.TrimSpace(s.AssetRef) != ""
}

// Duration returns the item's play length.
func (s *ScheduledItem) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

// End returns the instant at which the item stops playing.
func (s *ScheduledItem) End() time.Time {
	return s.StartTime.Add(s.Duration())
}

// ActiveAt reports whether the item is playing at the given instant.
func (s *ScheduledItem) ActiveAt(now time.Time) bool {
	return s.Playable() && !s.StartTime.After(now) && now.Before(s.End())
}
