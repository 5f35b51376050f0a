package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/channel-account-api/internal/models"
	"github.com/noah-isme/channel-account-api/pkg/jobs"
)

// MediaStore persists uploaded images. Remove must treat unknown ids as success.
type MediaStore interface {
	Upload(ctx context.Context, file models.MediaFile) (models.ImageRef, error)
	Remove(ctx context.Context, publicID string) error
}

// AssetJanitor removes superseded or orphaned assets out of band.
type AssetJanitor interface {
	Discard(ctx context.Context, publicIDs ...string)
}

const jobTypeRemoveAsset = "media.remove"

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

// MediaJanitor removes assets on a background queue. Removals are attempted
// once; failures are logged and counted, never retried or surfaced.
type MediaJanitor struct {
	store   MediaStore
	queue   jobQueue
	metrics *MetricsService
	logger  *zap.Logger
	timeout time.Duration
}

// NewMediaJanitor constructs a janitor. A nil queue runs removals inline on
// the caller's goroutine.
func NewMediaJanitor(store MediaStore, queue jobQueue, metrics *MetricsService, logger *zap.Logger, timeout time.Duration) *MediaJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MediaJanitor{store: store, queue: queue, metrics: metrics, logger: logger, timeout: timeout}
}

// SetQueue attaches the worker queue once it has been built around Handle.
func (j *MediaJanitor) SetQueue(queue jobQueue) {
	j.queue = queue
}

// Discard schedules removal of every non-empty public id.
func (j *MediaJanitor) Discard(ctx context.Context, publicIDs ...string) {
	for _, id := range publicIDs {
		if id == "" {
			continue
		}
		if j.queue == nil {
			j.remove(context.WithoutCancel(ctx), id)
			continue
		}
		if err := j.queue.Enqueue(jobs.Job{ID: id, Type: jobTypeRemoveAsset, Payload: id}); err != nil {
			j.logger.Warn("janitor queue unavailable, removing inline", zap.String("public_id", id), zap.Error(err))
			j.remove(context.WithoutCancel(ctx), id)
		}
	}
}

// Handle is the queue handler for removal jobs.
func (j *MediaJanitor) Handle(ctx context.Context, job jobs.Job) error {
	id, _ := job.Payload.(string)
	if id == "" {
		id = job.ID
	}
	j.remove(ctx, id)
	return nil
}

func (j *MediaJanitor) remove(ctx context.Context, publicID string) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	err := j.store.Remove(ctx, publicID)
	j.metrics.ObserveMedia("remove", err, time.Since(start))
	j.metrics.RecordJanitorRemoval(err)
	if err != nil {
		j.logger.Warn("asset removal failed", zap.String("public_id", publicID), zap.Error(err))
	}
}
