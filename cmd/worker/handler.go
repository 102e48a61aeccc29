package main

import (
	"context"
	"errors"
	"time"

	"github.com/linearcast/playout/internal/lease"
	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/pkg/models"
)

type leaseManager interface {
	Acquire(ctx context.Context, channelID string) (string, error)
	Release(ctx context.Context, channelID string, token string) error
}

type extendRunner interface {
	Extend(ctx context.Context, req models.ExtendRequest) (*models.ExtendResult, error)
}

type resultNotifier interface {
	ScheduleExtended(ctx context.Context, result *models.ExtendResult) error
	ExtensionFailed(ctx context.Context, req *models.ExtendRequest, cause error) error
}

// jobHandler processes queued extension jobs. Permanent failures are
// acked so a bad request does not requeue forever; a held lease or a
// transient error requeues.
type jobHandler struct {
	leases   leaseManager
	extender extendRunner
	notifier resultNotifier
	log      *logging.Logger

	// heldRetryDelay throttles requeues when another worker holds the
	// channel lease. Without it the broker redelivers immediately and
	// the job spins until the lease expires.
	heldRetryDelay time.Duration
}

func (h *jobHandler) Handle(ctx context.Context, req *models.ExtendRequest) error {
	jobLog := h.log.WithJobID(req.JobID).WithChannelID(req.ChannelID)
	jobLog.Info("Processing extension job")

	// A malformed request can never succeed; drop it instead of
	// letting it bounce between requeues.
	if err := req.Validate(); err != nil {
		jobLog.WithError(err).Warn("Dropping invalid extension job")
		return nil
	}

	token, err := h.leases.Acquire(ctx, req.ChannelID)
	if err != nil {
		if errors.Is(err, lease.ErrHeld) {
			jobLog.Warn("Channel lease held by another worker, requeueing")
			select {
			case <-ctx.Done():
			case <-time.After(h.heldRetryDelay):
			}
		} else {
			jobLog.WithError(err).Error("Failed to acquire lease")
		}
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.leases.Release(releaseCtx, req.ChannelID, token); err != nil {
			jobLog.WithError(err).Warn("Failed to release lease")
		}
	}()

	result, err := h.extender.Extend(ctx, *req)
	if err != nil {
		if isPermanent(err) {
			jobLog.WithError(err).Warn("Extension rejected, dropping job")
			if nerr := h.notifier.ExtensionFailed(ctx, req, err); nerr != nil {
				jobLog.WithError(nerr).Warn("Failed to deliver rejection notification")
			}
			return nil
		}
		jobLog.WithError(err).Error("Extension failed")
		return err
	}

	jobLog.Infof("Extended schedule by %d items to %s",
		result.InsertedCount, result.NewEnd.Format(time.RFC3339))

	if err := h.notifier.ScheduleExtended(ctx, result); err != nil {
		jobLog.WithError(err).Warn("Failed to deliver extension notification")
	}
	return nil
}

// isPermanent reports whether retrying the job can ever succeed.
func isPermanent(err error) bool {
	return errors.Is(err, models.ErrNoProgramsFound) ||
		errors.Is(err, models.ErrInvalidTemplate) ||
		errors.Is(err, models.ErrBatchSafetyCapExceeded) ||
		errors.Is(err, models.ErrChannelNotFound)
}
