package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/pkg/models"
)

// Repository provides timeline store operations
type Repository struct {
	db  *DB
	log *logging.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, log *logging.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// Health checks the underlying connection
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Channels

// GetChannel retrieves a channel by ID
func (r *Repository) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var ch models.Channel

	query := `
		SELECT id, name, namespace, live_override, live_source_ref, created_at, updated_at
		FROM channels
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&ch.ID, &ch.Name, &ch.Namespace, &ch.LiveOverride, &ch.LiveSourceRef,
		&ch.CreatedAt, &ch.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return &ch, nil
}

// ListChannels retrieves all channels
func (r *Repository) ListChannels(ctx context.Context) ([]*models.Channel, error) {
	query := `
		SELECT id, name, namespace, live_override, live_source_ref, created_at, updated_at
		FROM channels
		ORDER BY name ASC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.Channel
	for rows.Next() {
		var ch models.Channel
		err := rows.Scan(
			&ch.ID, &ch.Name, &ch.Namespace, &ch.LiveOverride, &ch.LiveSourceRef,
			&ch.CreatedAt, &ch.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, &ch)
	}

	return channels, nil
}

// Scheduled items

const itemColumns = `id, channel_id, start_time, duration_seconds, asset_ref, title, created_at`

func scanItem(row pgx.Row) (*models.ScheduledItem, error) {
	var item models.ScheduledItem
	err := row.Scan(
		&item.ID, &item.ChannelID, &item.StartTime, &item.DurationSeconds,
		&item.AssetRef, &item.Title, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListStartedOnOrBefore returns up to limit items that started at or
// before now, most recent first. Equal start times are broken by id so
// repeated scans see the same order.
func (r *Repository) ListStartedOnOrBefore(ctx context.Context, channelID string, now time.Time, limit int) ([]models.ScheduledItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM schedule_items
		WHERE channel_id = $1 AND start_time <= $2
		ORDER BY start_time DESC, id DESC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, channelID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list started items: %w", err)
	}
	defer rows.Close()

	var items []models.ScheduledItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}

	return items, nil
}

// ListStartingAfter returns the single earliest item starting strictly
// after now, or nil when the timeline has nothing upcoming.
func (r *Repository) ListStartingAfter(ctx context.Context, channelID string, now time.Time) (*models.ScheduledItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM schedule_items
		WHERE channel_id = $1 AND start_time > $2
		ORDER BY start_time ASC, id ASC
		LIMIT 1
	`

	item, err := scanItem(r.db.Pool.QueryRow(ctx, query, channelID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next item: %w", err)
	}

	return item, nil
}

// ListAll returns a channel's full timeline, earliest first.
func (r *Repository) ListAll(ctx context.Context, channelID string) ([]models.ScheduledItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM schedule_items
		WHERE channel_id = $1
		ORDER BY start_time ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []models.ScheduledItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}

	return items, nil
}

// InsertBatch writes all generated items in a single transaction, so a
// failure mid-batch leaves the timeline untouched.
func (r *Repository) InsertBatch(ctx context.Context, items []models.ScheduledItem) (err error) {
	if len(items) == 0 {
		return nil
	}

	started := time.Now()
	defer func() {
		r.log.LogDatabaseOperation("insert_batch", time.Since(started), err)
	}()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	query := `
		INSERT INTO schedule_items (id, channel_id, start_time, duration_seconds, asset_ref, title)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
		batch.Queue(query,
			items[i].ID, items[i].ChannelID, items[i].StartTime,
			items[i].DurationSeconds, items[i].AssetRef, items[i].Title,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range items {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert item batch: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}
