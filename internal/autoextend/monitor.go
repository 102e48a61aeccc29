// Package autoextend keeps channel schedules from running dry by
// enqueueing extension jobs for channels whose remaining runway falls
// below a threshold.
package autoextend

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linearcast/playout/internal/config"
	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/internal/metrics"
	"github.com/linearcast/playout/pkg/models"
)

// TimelineReader provides the channel list and each channel's schedule.
type TimelineReader interface {
	ListChannels(ctx context.Context) ([]*models.Channel, error)
	ListAll(ctx context.Context, channelID string) ([]models.ScheduledItem, error)
}

// Publisher enqueues extension jobs for the worker.
type Publisher interface {
	PublishExtend(ctx context.Context, req *models.ExtendRequest) error
}

// DepthReporter is implemented by publishers that can report their
// backlog, used to spot a stalled worker from the sweep logs.
type DepthReporter interface {
	GetQueueDepth() (int, error)
}

// Monitor periodically sweeps all channels and requests extensions for
// those with low runway. The per-channel lease held by the worker keeps
// concurrent monitors from double-extending; the cooldown keeps a
// single monitor from re-enqueueing a job still sitting in the queue.
type Monitor struct {
	repo      TimelineReader
	publisher Publisher
	interval  time.Duration
	minRunway time.Duration
	blocks    int
	cooldown  time.Duration
	log       *logging.Logger

	mu       sync.Mutex
	enqueued map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a runway monitor.
func New(repo TimelineReader, publisher Publisher, cfg config.AutoExtendConfig, log *logging.Logger) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}
	blocks := cfg.Blocks
	if blocks <= 0 {
		blocks = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		minRunway: cfg.MinRunway,
		blocks:    blocks,
		cooldown:  cooldown,
		log:       log,
		enqueued:  make(map[string]time.Time),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the sweep loop.
func (m *Monitor) Start() {
	go m.sweepLoop()
	m.log.Infof("Runway monitor started (interval %s, min runway %s)", m.interval, m.minRunway)
}

// Stop stops the sweep loop.
func (m *Monitor) Stop() {
	m.cancel()
	m.log.Info("Runway monitor stopped")
}

func (m *Monitor) sweepLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.ctx, time.Now())
		}
	}
}

// Sweep checks every channel once and enqueues extension jobs for the
// ones below the runway threshold.
func (m *Monitor) Sweep(ctx context.Context, now time.Time) {
	if dr, ok := m.publisher.(DepthReporter); ok {
		if depth, err := dr.GetQueueDepth(); err == nil {
			m.log.WithField("queue_depth", depth).Debug("Runway sweep starting")
		}
	}

	channels, err := m.repo.ListChannels(ctx)
	if err != nil {
		m.log.WithError(err).Error("Runway sweep failed to list channels")
		return
	}

	for _, ch := range channels {
		if m.onCooldown(ch.ID, now) {
			continue
		}

		runway, ok, err := m.runway(ctx, ch.ID, now)
		if err != nil {
			m.log.WithChannelID(ch.ID).WithError(err).Error("Failed to read timeline for runway check")
			continue
		}
		// Channels with no playable items cannot be extended; the
		// extender would have no template to repeat.
		if !ok || runway >= m.minRunway {
			continue
		}

		req := &models.ExtendRequest{
			JobID:       uuid.New().String(),
			ChannelID:   ch.ID,
			Mode:        models.ExtendModeBlocks,
			Blocks:      m.blocks,
			RequestedAt: now.UTC(),
		}

		if err := m.publisher.PublishExtend(ctx, req); err != nil {
			m.log.WithChannelID(ch.ID).WithError(err).Error("Failed to enqueue automatic extension")
			continue
		}

		m.markEnqueued(ch.ID, now)
		metrics.AutoExtendEnqueuedTotal.Inc()
		m.log.WithChannelID(ch.ID).WithJobID(req.JobID).
			Infof("Enqueued automatic extension (runway %s)", runway)
	}
}

// runway returns how much playable schedule remains past now. The
// second return is false when the channel has no playable items at all.
func (m *Monitor) runway(ctx context.Context, channelID string, now time.Time) (time.Duration, bool, error) {
	items, err := m.repo.ListAll(ctx, channelID)
	if err != nil {
		return 0, false, err
	}

	var end time.Time
	found := false
	for i := range items {
		if !items[i].Playable() {
			continue
		}
		if itemEnd := items[i].End(); itemEnd.After(end) {
			end = itemEnd
		}
		found = true
	}
	if !found {
		return 0, false, nil
	}
	if end.Before(now) {
		return 0, true, nil
	}
	return end.Sub(now), true, nil
}

func (m *Monitor) onCooldown(channelID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.enqueued[channelID]
	return ok && now.Sub(last) < m.cooldown
}

func (m *Monitor) markEnqueued(channelID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued[channelID] = now
}
