package autoextend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linearcast/playout/internal/config"
	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/pkg/models"
)

type fakeRepo struct {
	channels []*models.Channel
	items    map[string][]models.ScheduledItem
	listErr  error
}

func (f *fakeRepo) ListChannels(_ context.Context) ([]*models.Channel, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.channels, nil
}

func (f *fakeRepo) ListAll(_ context.Context, channelID string) ([]models.ScheduledItem, error) {
	return f.items[channelID], nil
}

type fakePublisher struct {
	published []*models.ExtendRequest
	err       error
}

func (f *fakePublisher) PublishExtend(_ context.Context, req *models.ExtendRequest) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, req)
	return nil
}

func newTestMonitor(repo *fakeRepo, pub *fakePublisher) *Monitor {
	return New(repo, pub, config.AutoExtendConfig{
		Enabled:   true,
		Interval:  time.Minute,
		MinRunway: 6 * time.Hour,
		Blocks:    10,
		Cooldown:  10 * time.Minute,
	}, logging.NewNopLogger())
}

func item(channelID string, start time.Time, d time.Duration) models.ScheduledItem {
	return models.ScheduledItem{
		ChannelID:       channelID,
		StartTime:       start,
		DurationSeconds: int(d.Seconds()),
		AssetRef:        "clip.mp4",
	}
}

func TestSweepEnqueuesLowRunwayChannel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		channels: []*models.Channel{
			{ID: "low", Namespace: "low"},
			{ID: "high", Namespace: "high"},
		},
		items: map[string][]models.ScheduledItem{
			"low":  {item("low", now.Add(-time.Hour), 3*time.Hour)},
			"high": {item("high", now, 48*time.Hour)},
		},
	}
	pub := &fakePublisher{}

	m := newTestMonitor(repo, pub)
	m.Sweep(context.Background(), now)

	require.Len(t, pub.published, 1)
	req := pub.published[0]
	assert.Equal(t, "low", req.ChannelID)
	assert.Equal(t, models.ExtendModeBlocks, req.Mode)
	assert.Equal(t, 10, req.Blocks)
	assert.NotEmpty(t, req.JobID)
}

func TestSweepSkipsChannelWithoutPlayableItems(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		channels: []*models.Channel{
			{ID: "empty"},
			{ID: "broken"},
		},
		items: map[string][]models.ScheduledItem{
			"broken": {{ChannelID: "broken", StartTime: now, DurationSeconds: 0, AssetRef: ""}},
		},
	}
	pub := &fakePublisher{}

	newTestMonitor(repo, pub).Sweep(context.Background(), now)

	assert.Empty(t, pub.published)
}

func TestSweepExpiredTimelineCountsAsZeroRunway(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		channels: []*models.Channel{{ID: "stale"}},
		items: map[string][]models.ScheduledItem{
			"stale": {item("stale", now.Add(-48*time.Hour), time.Hour)},
		},
	}
	pub := &fakePublisher{}

	newTestMonitor(repo, pub).Sweep(context.Background(), now)

	require.Len(t, pub.published, 1)
	assert.Equal(t, "stale", pub.published[0].ChannelID)
}

func TestSweepCooldownSuppressesRepeats(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		channels: []*models.Channel{{ID: "low"}},
		items: map[string][]models.ScheduledItem{
			"low": {item("low", now.Add(-time.Hour), 2*time.Hour)},
		},
	}
	pub := &fakePublisher{}
	m := newTestMonitor(repo, pub)

	m.Sweep(context.Background(), now)
	m.Sweep(context.Background(), now.Add(time.Minute))
	require.Len(t, pub.published, 1)

	// Past the cooldown the channel is eligible again.
	m.Sweep(context.Background(), now.Add(11*time.Minute))
	assert.Len(t, pub.published, 2)
}

// depthPublisher also reports a queue backlog, like the real queue.
type depthPublisher struct {
	fakePublisher
	depthCalls int
}

func (d *depthPublisher) GetQueueDepth() (int, error) {
	d.depthCalls++
	return len(d.published), nil
}

func TestSweepReadsQueueDepthWhenAvailable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		channels: []*models.Channel{{ID: "low"}},
		items: map[string][]models.ScheduledItem{
			"low": {item("low", now.Add(-time.Hour), 2*time.Hour)},
		},
	}
	pub := &depthPublisher{}

	m := New(repo, pub, config.AutoExtendConfig{
		Interval:  time.Minute,
		MinRunway: 6 * time.Hour,
		Blocks:    10,
		Cooldown:  10 * time.Minute,
	}, logging.NewNopLogger())

	m.Sweep(context.Background(), now)

	assert.Equal(t, 1, pub.depthCalls)
	assert.Len(t, pub.published, 1)
}

func TestSweepPublishFailureAllowsRetry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		channels: []*models.Channel{{ID: "low"}},
		items: map[string][]models.ScheduledItem{
			"low": {item("low", now.Add(-time.Hour), 2*time.Hour)},
		},
	}
	pub := &fakePublisher{err: errors.New("queue down")}
	m := newTestMonitor(repo, pub)

	m.Sweep(context.Background(), now)
	assert.Empty(t, pub.published)

	// A failed publish must not start the cooldown.
	pub.err = nil
	m.Sweep(context.Background(), now.Add(time.Minute))
	assert.Len(t, pub.published, 1)
}
