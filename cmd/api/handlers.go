package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/linearcast/playout/internal/cache"
	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/internal/playout"
	"github.com/linearcast/playout/pkg/models"
)

// ChannelSource reads channel configuration.
type ChannelSource interface {
	GetChannel(ctx context.Context, id string) (*models.Channel, error)
	ListChannels(ctx context.Context) ([]*models.Channel, error)
	Health(ctx context.Context) error
}

// TimelineReader lists a channel's schedule.
type TimelineReader interface {
	ListAll(ctx context.Context, channelID string) ([]models.ScheduledItem, error)
}

// ExtendPublisher hands extension jobs to the worker.
type ExtendPublisher interface {
	PublishExtend(ctx context.Context, req *models.ExtendRequest) error
}

// AssetStore is the asset-store surface the API depends on. Every
// standby URL the resolver hands out points into it, so its health is
// part of the service's health.
type AssetStore interface {
	Health(ctx context.Context) error
	EnsureStore(ctx context.Context, store string) error
	StandbyExists(ctx context.Context, namespace, standbyKey string) (bool, error)
}

// API bundles the HTTP handlers' dependencies.
type API struct {
	channels  ChannelSource
	timeline  TimelineReader
	publisher ExtendPublisher
	assets    AssetStore
	resolver  *playout.Resolver
	sessions  *playout.Manager
	cache     *cache.Cache
	cacheTTL  time.Duration
	log       *logging.Logger
}

// getChannel reads a channel, preferring the Redis cache when present.
func (api *API) getChannel(ctx context.Context, id string) (*models.Channel, error) {
	if api.cache != nil {
		if ch, err := api.cache.GetChannel(ctx, id); err == nil && ch != nil {
			return ch, nil
		}
	}

	ch, err := api.channels.GetChannel(ctx, id)
	if err != nil {
		return nil, err
	}

	if api.cache != nil {
		if err := api.cache.SetChannel(ctx, ch, api.cacheTTL); err != nil {
			api.log.WithChannelID(id).WithError(err).Warn("Failed to cache channel")
		}
	}

	return ch, nil
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.channels.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	if api.cache != nil {
		if err := api.cache.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	if err := api.assets.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// List channels endpoint
func (api *API) listChannels(c *gin.Context) {
	channels, err := api.channels.ListChannels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// Get schedule endpoint. Plain listing: unplayable items included.
func (api *API) getSchedule(c *gin.Context) {
	channelID := c.Param("id")

	if _, err := api.getChannel(c.Request.Context(), channelID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}

	items, err := api.timeline.ListAll(c.Request.Context(), channelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// One-shot playout evaluation endpoint. No session, no timer.
func (api *API) getPlayout(c *gin.Context) {
	channelID := c.Param("id")

	ch, err := api.getChannel(c.Request.Context(), channelID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"state": models.StateNoChannel,
			"error": "Channel not found",
		})
		return
	}

	decision, err := api.resolver.Evaluate(c.Request.Context(), *ch, time.Now())
	if err != nil {
		c.JSON(http.StatusBadGateway, decision)
		return
	}

	c.JSON(http.StatusOK, decision)
}

// Create session endpoint
func (api *API) createSession(c *gin.Context) {
	channelID := c.Param("id")

	ch, err := api.getChannel(c.Request.Context(), channelID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}

	s := api.sessions.Open(*ch)

	c.JSON(http.StatusCreated, gin.H{
		"session_id": s.ID,
		"channel_id": ch.ID,
		"decision":   s.Decision(),
	})
}

// Get session endpoint
func (api *API) getSession(c *gin.Context) {
	s, err := api.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": s.ID,
		"channel_id": s.Channel.ID,
		"decision":   s.Decision(),
	})
}

// Session event endpoint: playback errors and natural asset ends
// reported by the player, plus explicit reloads after an error state.
func (api *API) postSessionEvent(c *gin.Context) {
	s, err := api.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Event string `json:"event" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var decision playout.Decision
	switch req.Event {
	case "playback_error":
		decision = s.PlaybackFailure()
	case "ended":
		decision = s.AssetEnded()
	case "reload":
		decision = s.Refresh()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown event %q", req.Event)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": s.ID,
		"decision":   decision,
	})
}

// Delete session endpoint
func (api *API) deleteSession(c *gin.Context) {
	if !api.sessions.Close(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
}

// Extend channel endpoint: validates and enqueues; the worker executes.
func (api *API) extendChannel(c *gin.Context) {
	channelID := c.Param("id")

	if _, err := api.getChannel(c.Request.Context(), channelID); err != nil {
		if errors.Is(err, models.ErrChannelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var body struct {
		Mode   string `json:"mode" binding:"required"`
		Blocks int    `json:"blocks"`
		Days   int    `json:"days"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := &models.ExtendRequest{
		JobID:       uuid.New().String(),
		ChannelID:   channelID,
		Mode:        models.ExtendMode(body.Mode),
		Blocks:      body.Blocks,
		Days:        body.Days,
		RequestedAt: time.Now().UTC(),
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := api.publisher.PublishExtend(c.Request.Context(), req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to queue extension: %v", err)})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":     req.JobID,
		"channel_id": channelID,
	})
}
