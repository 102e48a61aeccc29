// Package playout decides what a channel is showing at any instant and
// keeps per-viewer sessions re-evaluating themselves at the right time.
package playout

import (
	"context"
	"fmt"
	"time"

	"github.com/linearcast/playout/internal/config"
	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/internal/metrics"
	"github.com/linearcast/playout/pkg/models"
)

// TimelineStore is the read side of the schedule timeline.
type TimelineStore interface {
	// ListStartedOnOrBefore returns up to limit items with a start time
	// at or before now, most recent first.
	ListStartedOnOrBefore(ctx context.Context, channelID string, now time.Time, limit int) ([]models.ScheduledItem, error)
	// ListStartingAfter returns the earliest item starting strictly
	// after now, or nil when nothing is upcoming.
	ListStartingAfter(ctx context.Context, channelID string, now time.Time) (*models.ScheduledItem, error)
}

// AssetLocator resolves a stored reference within a namespace.
type AssetLocator interface {
	Resolve(ref, namespace string) (string, error)
}

// Decision is one answer to "what plays right now".
type Decision struct {
	State models.PlayoutState `json:"state"`
	// SourceURL is what the player should load.
	SourceURL string `json:"source_url,omitempty"`
	// Item carries the scheduled item's metadata. It stays populated on
	// a soft fallback so the viewer still sees the intended title.
	Item *models.ScheduledItem `json:"item,omitempty"`
	// Fallback marks a standby source shown in place of a scheduled
	// item that could not be resolved or failed during playback.
	Fallback bool `json:"fallback,omitempty"`
	// NextBoundary is the next instant the decision can change. Nil
	// means nothing is scheduled and re-evaluation waits for an
	// external trigger.
	NextBoundary *time.Time `json:"next_boundary,omitempty"`
	EvaluatedAt  time.Time  `json:"evaluated_at"`
}

// Resolver computes playout decisions. It holds no per-channel state;
// sessions own the timers.
type Resolver struct {
	store      TimelineStore
	locator    AssetLocator
	standbyKey string
	lookback   int
	timeout    time.Duration
	log        *logging.Logger
}

// NewResolver creates a resolver with the given collaborators.
func NewResolver(store TimelineStore, locator AssetLocator, cfg config.PlayoutConfig, log *logging.Logger) *Resolver {
	lookback := cfg.LookbackItems
	if lookback <= 0 {
		lookback = 8
	}
	timeout := cfg.EvaluateTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Resolver{
		store:      store,
		locator:    locator,
		standbyKey: cfg.StandbyKey,
		lookback:   lookback,
		timeout:    timeout,
		log:        log,
	}
}

// StandbyURL resolves the channel namespace's standby asset.
func (r *Resolver) StandbyURL(namespace string) (string, error) {
	return r.locator.Resolve(r.standbyKey, namespace)
}

// Evaluate computes the decision for a channel at the given instant.
// Timeline or asset store failures return an Error-state decision along
// with the error; the caller decides whether to re-trigger.
func (r *Resolver) Evaluate(ctx context.Context, ch models.Channel, now time.Time) (Decision, error) {
	if ch.LiveOverride {
		d := Decision{
			State:       models.StateLive,
			SourceURL:   ch.LiveSourceRef,
			EvaluatedAt: now,
		}
		metrics.EvaluationsTotal.WithLabelValues(string(d.State)).Inc()
		return d, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	recent, err := r.store.ListStartedOnOrBefore(ctx, ch.ID, now, r.lookback)
	if err != nil {
		return r.errorDecision(ch, now, fmt.Errorf("failed to read timeline: %w", err))
	}

	next, err := r.store.ListStartingAfter(ctx, ch.ID, now)
	if err != nil {
		return r.errorDecision(ch, now, fmt.Errorf("failed to read upcoming timeline: %w", err))
	}

	active := findActive(recent, now)

	d := Decision{EvaluatedAt: now}
	d.NextBoundary = nextBoundary(active, next)

	switch {
	case active == nil:
		standby, err := r.StandbyURL(ch.Namespace)
		if err != nil {
			return r.errorDecision(ch, now, fmt.Errorf("failed to resolve standby asset: %w", err))
		}
		d.State = models.StatePlayingStandby
		d.SourceURL = standby
		metrics.StandbyFallbacksTotal.WithLabelValues("no_active_item").Inc()

	default:
		d.Item = active
		source, err := r.locator.Resolve(active.AssetRef, ch.Namespace)
		if err == nil {
			d.State = models.StatePlayingScheduled
			d.SourceURL = source
		} else {
			// Soft fallback: standby source, scheduled metadata.
			standby, serr := r.StandbyURL(ch.Namespace)
			if serr != nil {
				return r.errorDecision(ch, now, fmt.Errorf("failed to resolve standby asset: %w", serr))
			}
			d.State = models.StatePlayingStandby
			d.SourceURL = standby
			d.Fallback = true
			metrics.StandbyFallbacksTotal.WithLabelValues("unresolvable_ref").Inc()
			r.log.WithChannelID(ch.ID).WithError(err).Warn("Asset reference unresolvable, playing standby")
		}
	}

	metrics.EvaluationsTotal.WithLabelValues(string(d.State)).Inc()
	r.log.LogPlayoutDecision(ch.ID, string(d.State), d.Fallback, d.NextBoundary)
	return d, nil
}

func (r *Resolver) errorDecision(ch models.Channel, now time.Time, err error) (Decision, error) {
	metrics.EvaluationsTotal.WithLabelValues(string(models.StateError)).Inc()
	r.log.WithChannelID(ch.ID).ErrorWithErr("Playout evaluation failed", err)
	return Decision{State: models.StateError, EvaluatedAt: now}, err
}

// findActive scans recently started items, most recent first, skipping
// unplayable ones. Only the first playable item is tested: it is active
// when now falls before its end, otherwise the channel is in a gap.
// Items sharing a start time keep the store's scan order; whichever is
// seen first wins.
func findActive(recent []models.ScheduledItem, now time.Time) *models.ScheduledItem {
	for i := range recent {
		item := &recent[i]
		if !item.Playable() {
			continue
		}
		if now.Before(item.End()) {
			return item
		}
		return nil
	}
	return nil
}

// nextBoundary is the earlier of the active item's end and the next
// item's start. With neither, the resolver goes idle until an external
// trigger.
func nextBoundary(active *models.ScheduledItem, next *models.ScheduledItem) *time.Time {
	var boundary *time.Time

	if active != nil {
		end := active.End()
		boundary = &end
	}
	if next != nil {
		if boundary == nil || next.StartTime.Before(*boundary) {
			start := next.StartTime
			boundary = &start
		}
	}

	return boundary
}
