package models

// PlayoutState describes what a viewer session is showing right now.
type PlayoutState string

// PlayoutState constants
const (
	StateNoChannel        PlayoutState = "no_channel"
	StateLoading          PlayoutState = "loading"
	StateLive             PlayoutState = "live"
	StatePlayingScheduled PlayoutState = "playing_scheduled"
	StatePlayingStandby   PlayoutState = "playing_standby"
	StateError            PlayoutState = "error"
)
