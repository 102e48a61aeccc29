package models

import "errors"

// Schedule extension errors. All of them abort the run before anything
// is written.
var (
	ErrNoProgramsFound        = errors.New("no programs found for channel")
	ErrInvalidTemplate        = errors.New("template window has no playable items")
	ErrBatchSafetyCapExceeded = errors.New("estimated row count exceeds batch safety cap")
)

// Lookup errors
var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrSessionNotFound = errors.New("session not found")
)
