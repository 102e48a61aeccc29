package models

import (
	"fmt"
	"time"
)

// ExtendMode selects how far a schedule extension reaches.
type ExtendMode string

// ExtendMode constants
const (
	ExtendModeBlocks ExtendMode = "blocks"
	ExtendModeDays   ExtendMode = "days"
)

// ExtendRequest asks the worker to grow a channel's timeline by
// replicating its template window forward in time.
type ExtendRequest struct {
	JobID       string     `json:"job_id"`
	ChannelID   string     `json:"channel_id"`
	Mode        ExtendMode `json:"mode"`
	Blocks      int        `json:"blocks,omitempty"`
	Days        int        `json:"days,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
}

// Validate checks the request before it is queued.
func (r *ExtendRequest) Validate() error {
	if r.ChannelID == "" {
		return fmt.Errorf("channel_id is required")
	}
	switch r.Mode {
	case ExtendModeBlocks:
		if r.Blocks <= 0 {
			return fmt.Errorf("blocks must be a positive integer, got %d", r.Blocks)
		}
	case ExtendModeDays:
		if r.Days <= 0 {
			return fmt.Errorf("days must be a positive integer, got %d", r.Days)
		}
	default:
		return fmt.Errorf("unknown extend mode %q", r.Mode)
	}
	return nil
}

// ExtendResult summarizes a completed schedule extension.
type ExtendResult struct {
	ChannelID        string    `json:"channel_id"`
	BlockCount       int       `json:"block_count"`
	TemplateItems    int       `json:"template_items"`
	TemplateDuration int       `json:"template_duration_seconds"`
	InsertedCount    int       `json:"inserted_count"`
	NewEnd           time.Time `json:"new_end"`
}
