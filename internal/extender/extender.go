// Package extender grows a channel's timeline by replicating a template
// window of its existing schedule forward in time.
package extender

import (
	"context"
	"fmt"
	"time"

	"github.com/linearcast/playout/internal/config"
	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/internal/metrics"
	"github.com/linearcast/playout/pkg/models"
)

// templateWindow is how much of the earliest schedule day forms the
// repeating template.
const templateWindow = 24 * time.Hour

// Repository is the timeline access the extender needs.
type Repository interface {
	// ListAll returns a channel's full timeline, earliest first.
	ListAll(ctx context.Context, channelID string) ([]models.ScheduledItem, error)
	// InsertBatch writes all items atomically.
	InsertBatch(ctx context.Context, items []models.ScheduledItem) error
}

// Extender runs schedule extensions.
type Extender struct {
	repo      Repository
	safetyCap int
	log       *logging.Logger
}

// New creates an extender.
func New(repo Repository, cfg config.ExtenderConfig, log *logging.Logger) *Extender {
	safetyCap := cfg.SafetyCap
	if safetyCap <= 0 {
		safetyCap = 2000
	}

	return &Extender{
		repo:      repo,
		safetyCap: safetyCap,
		log:       log,
	}
}

// template is the repeating pattern derived from a channel's schedule.
type template struct {
	items []models.ScheduledItem
	// offsets[i] is items[i].StartTime relative to the window start.
	offsets []time.Duration
	// duration is the sum of item durations. Gaps inside the window do
	// not count, so blocks pack back to back with no dead air.
	duration time.Duration
}

// Extend validates the request, derives the template, and appends the
// requested number of blocks in one atomic write. All failures happen
// before anything is inserted.
func (e *Extender) Extend(ctx context.Context, req models.ExtendRequest) (*models.ExtendResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extend request: %w", err)
	}

	log := e.log.WithJobID(req.JobID).WithChannelID(req.ChannelID)
	started := time.Now()

	result, err := e.extend(ctx, req)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ExtendRunsTotal.WithLabelValues(string(req.Mode), status).Inc()

	blocks, inserted := 0, 0
	if result != nil {
		blocks, inserted = result.BlockCount, result.InsertedCount
		metrics.ExtendRowsInserted.Add(float64(inserted))
	}
	log.LogExtendRun(req.JobID, req.ChannelID, blocks, inserted, time.Since(started), err)

	return result, err
}

func (e *Extender) extend(ctx context.Context, req models.ExtendRequest) (*models.ExtendResult, error) {
	existing, err := e.repo.ListAll(ctx, req.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}
	if len(existing) == 0 {
		return nil, models.ErrNoProgramsFound
	}

	tmpl, err := buildTemplate(existing)
	if err != nil {
		return nil, err
	}

	currentEnd := timelineEnd(existing)

	blockCount := req.Blocks
	if req.Mode == models.ExtendModeDays {
		blockCount = blocksForDays(currentEnd, req.Days, tmpl.duration)
	}

	estimated := blockCount * len(tmpl.items)
	if estimated > e.safetyCap {
		metrics.ExtendCapAbortsTotal.Inc()
		return nil, fmt.Errorf("%w: %d rows estimated, cap is %d",
			models.ErrBatchSafetyCapExceeded, estimated, e.safetyCap)
	}

	generated := make([]models.ScheduledItem, 0, estimated)
	for i := 0; i < blockCount; i++ {
		blockBase := currentEnd.Add(time.Duration(i) * tmpl.duration)
		for j, src := range tmpl.items {
			generated = append(generated, models.ScheduledItem{
				ChannelID:       req.ChannelID,
				StartTime:       blockBase.Add(tmpl.offsets[j]),
				DurationSeconds: src.DurationSeconds,
				AssetRef:        src.AssetRef,
				Title:           src.Title,
			})
		}
	}

	if err := e.repo.InsertBatch(ctx, generated); err != nil {
		return nil, fmt.Errorf("failed to insert generated items: %w", err)
	}

	return &models.ExtendResult{
		ChannelID:        req.ChannelID,
		BlockCount:       blockCount,
		TemplateItems:    len(tmpl.items),
		TemplateDuration: int(tmpl.duration / time.Second),
		InsertedCount:    len(generated),
		NewEnd:           currentEnd.Add(time.Duration(blockCount) * tmpl.duration),
	}, nil
}

// buildTemplate slices the first 24 hours of the timeline into the
// repeating pattern. An empty window falls back to the whole timeline.
func buildTemplate(existing []models.ScheduledItem) (*template, error) {
	earliest := existing[0].StartTime

	var window []models.ScheduledItem
	for _, item := range existing {
		if item.StartTime.Sub(earliest) < templateWindow {
			window = append(window, item)
		}
	}
	if len(window) == 0 {
		window = existing
	}

	tmpl := &template{}
	for _, item := range window {
		if !item.Playable() {
			continue
		}
		tmpl.items = append(tmpl.items, item)
		tmpl.offsets = append(tmpl.offsets, item.StartTime.Sub(earliest))
		tmpl.duration += item.Duration()
	}

	if len(tmpl.items) == 0 {
		return nil, models.ErrInvalidTemplate
	}
	if tmpl.duration <= 0 {
		return nil, fmt.Errorf("%w: non-positive duration sum", models.ErrInvalidTemplate)
	}

	return tmpl, nil
}

// timelineEnd is the latest end across all items, not the last start.
func timelineEnd(items []models.ScheduledItem) time.Time {
	var end time.Time
	for _, item := range items {
		if itemEnd := item.End(); itemEnd.After(end) {
			end = itemEnd
		}
	}
	return end
}

// blocksForDays counts how many template repetitions it takes to push
// the timeline's end at least the requested number of days forward.
func blocksForDays(currentEnd time.Time, days int, blockDuration time.Duration) int {
	target := currentEnd.Add(time.Duration(days) * 24 * time.Hour)

	count := 0
	for working := currentEnd; working.Before(target); working = working.Add(blockDuration) {
		count++
	}
	return count
}
