package playout

import (
	"context"
	"sync"
	"time"

	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/internal/metrics"
	"github.com/linearcast/playout/pkg/models"
)

// Session is one viewer's long-lived resolver instance. It owns at most
// one pending re-evaluation timer; arming a new one always cancels the
// previous one first, and Close cancels whatever is left.
type Session struct {
	ID      string
	Channel models.Channel

	resolver *Resolver
	log      *logging.Logger
	now      func() time.Time

	mu       sync.Mutex
	timer    *time.Timer
	timerGen uint64
	decision Decision
	closed   bool
}

func newSession(id string, ch models.Channel, resolver *Resolver, log *logging.Logger) *Session {
	return &Session{
		ID:       id,
		Channel:  ch,
		resolver: resolver,
		log:      log.WithSessionID(id).WithChannelID(ch.ID),
		now:      time.Now,
		decision: Decision{State: models.StateLoading},
	}
}

// Decision returns the session's current decision.
func (s *Session) Decision() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decision
}

// Refresh runs a full evaluation at the current instant and re-arms the
// boundary timer. It is the entry point for session creation, boundary
// expiry, natural asset end, and operator re-triggers after an error.
func (s *Session) Refresh() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked()
}

func (s *Session) refreshLocked() Decision {
	if s.closed {
		return s.decision
	}

	s.stopTimerLocked()

	d, err := s.resolver.Evaluate(context.Background(), s.Channel, s.now())
	s.decision = d
	if err != nil {
		// Resolution stays unscheduled; the next external trigger
		// restarts from here.
		return s.decision
	}

	if d.NextBoundary != nil {
		s.armTimerLocked(*d.NextBoundary)
	}

	return s.decision
}

// PlaybackFailure handles a runtime failure reported by the playback
// subsystem: one-shot swap to the standby source without retrying the
// original and without touching the pending boundary timer.
func (s *Session) PlaybackFailure() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.decision.State != models.StatePlayingScheduled {
		return s.decision
	}

	standby, err := s.resolver.StandbyURL(s.Channel.Namespace)
	if err != nil {
		s.log.ErrorWithErr("Failed to resolve standby after playback failure", err)
		s.decision = Decision{State: models.StateError, EvaluatedAt: s.now()}
		return s.decision
	}

	s.decision.State = models.StatePlayingStandby
	s.decision.SourceURL = standby
	s.decision.Fallback = true
	metrics.StandbyFallbacksTotal.WithLabelValues("playback_error").Inc()
	s.log.Warn("Playback failed, switched to standby")

	return s.decision
}

// AssetEnded handles the current asset finishing naturally: immediate
// re-evaluation, preempting whatever boundary timer was pending.
func (s *Session) AssetEnded() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked()
}

// Close tears the session down and cancels any outstanding timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
}

func (s *Session) armTimerLocked(boundary time.Time) {
	delay := boundary.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.timerGen++
	gen := s.timerGen
	s.timer = time.AfterFunc(delay, func() { s.onBoundary(gen) })
	metrics.BoundaryTimersArmed.Inc()
	s.log.Debugf("Boundary timer armed for %s", boundary.UTC().Format(time.RFC3339))
}

func (s *Session) stopTimerLocked() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
	metrics.BoundaryTimersArmed.Dec()
}

// onBoundary runs when an armed timer fires. The generation check drops
// callbacks from timers that were replaced while the callback was
// waiting on the lock.
func (s *Session) onBoundary(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.timerGen || s.timer == nil {
		return
	}

	// The fired timer is spent; forget it before re-arming.
	s.timer = nil
	metrics.BoundaryTimersArmed.Dec()

	s.log.Debug("Boundary reached, re-evaluating")
	s.refreshLocked()
}
