package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linearcast/playout/internal/lease"
	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/pkg/models"
)

type fakeLeases struct {
	acquireErr error
	acquired   []string
	released   []string
}

func (f *fakeLeases) Acquire(_ context.Context, channelID string) (string, error) {
	if f.acquireErr != nil {
		return "", f.acquireErr
	}
	f.acquired = append(f.acquired, channelID)
	return "token-1", nil
}

func (f *fakeLeases) Release(_ context.Context, channelID, token string) error {
	f.released = append(f.released, channelID+"/"+token)
	return nil
}

type fakeExtender struct {
	result *models.ExtendResult
	err    error
	calls  int
}

func (f *fakeExtender) Extend(_ context.Context, _ models.ExtendRequest) (*models.ExtendResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeNotifier struct {
	extended []*models.ExtendResult
	failed   []*models.ExtendRequest
}

func (f *fakeNotifier) ScheduleExtended(_ context.Context, result *models.ExtendResult) error {
	f.extended = append(f.extended, result)
	return nil
}

func (f *fakeNotifier) ExtensionFailed(_ context.Context, req *models.ExtendRequest, _ error) error {
	f.failed = append(f.failed, req)
	return nil
}

func newTestHandler(leases *fakeLeases, ext *fakeExtender, not *fakeNotifier) *jobHandler {
	return &jobHandler{
		leases:         leases,
		extender:       ext,
		notifier:       not,
		log:            logging.NewNopLogger(),
		heldRetryDelay: 10 * time.Millisecond,
	}
}

func validRequest() *models.ExtendRequest {
	return &models.ExtendRequest{
		JobID:     "job-1",
		ChannelID: "ch-1",
		Mode:      models.ExtendModeBlocks,
		Blocks:    2,
	}
}

func TestHandleSuccess(t *testing.T) {
	leases := &fakeLeases{}
	ext := &fakeExtender{result: &models.ExtendResult{
		ChannelID:     "ch-1",
		InsertedCount: 6,
		NewEnd:        time.Now().Add(48 * time.Hour),
	}}
	not := &fakeNotifier{}
	h := newTestHandler(leases, ext, not)

	err := h.Handle(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"ch-1"}, leases.acquired)
	assert.Equal(t, []string{"ch-1/token-1"}, leases.released)
	require.Len(t, not.extended, 1)
	assert.Equal(t, 6, not.extended[0].InsertedCount)
}

func TestHandleInvalidRequestDropped(t *testing.T) {
	leases := &fakeLeases{}
	ext := &fakeExtender{}
	h := newTestHandler(leases, ext, &fakeNotifier{})

	err := h.Handle(context.Background(), &models.ExtendRequest{JobID: "job-1"})
	assert.NoError(t, err)
	assert.Empty(t, leases.acquired)
	assert.Zero(t, ext.calls)
}

func TestHandleHeldLeaseDelaysRequeue(t *testing.T) {
	leases := &fakeLeases{acquireErr: lease.ErrHeld}
	h := newTestHandler(leases, &fakeExtender{}, &fakeNotifier{})
	h.heldRetryDelay = 50 * time.Millisecond

	started := time.Now()
	err := h.Handle(context.Background(), validRequest())
	elapsed := time.Since(started)

	assert.ErrorIs(t, err, lease.ErrHeld)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond,
		"held lease should pause before the job is requeued")
	assert.Empty(t, leases.released)
}

func TestHandleHeldLeaseHonorsCancellation(t *testing.T) {
	leases := &fakeLeases{acquireErr: lease.ErrHeld}
	h := newTestHandler(leases, &fakeExtender{}, &fakeNotifier{})
	h.heldRetryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- h.Handle(ctx, validRequest()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, lease.ErrHeld)
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after context cancellation")
	}
}

func TestHandlePermanentErrorAcked(t *testing.T) {
	leases := &fakeLeases{}
	ext := &fakeExtender{err: models.ErrNoProgramsFound}
	not := &fakeNotifier{}
	h := newTestHandler(leases, ext, not)

	err := h.Handle(context.Background(), validRequest())
	assert.NoError(t, err)
	require.Len(t, not.failed, 1)
	assert.Equal(t, "job-1", not.failed[0].JobID)
	assert.Equal(t, []string{"ch-1/token-1"}, leases.released)
}

func TestHandleTransientErrorRequeued(t *testing.T) {
	leases := &fakeLeases{}
	transient := errors.New("connection reset")
	ext := &fakeExtender{err: transient}
	not := &fakeNotifier{}
	h := newTestHandler(leases, ext, not)

	err := h.Handle(context.Background(), validRequest())
	assert.ErrorIs(t, err, transient)
	assert.Empty(t, not.failed)
	assert.Empty(t, not.extended)
	assert.Equal(t, []string{"ch-1/token-1"}, leases.released)
}
