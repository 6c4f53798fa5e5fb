package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stragan/stragan/internal/observability"
	"github.com/stragan/stragan/internal/shared"
)

// IdempotencyCleanupJob prunes processed POS tap keys past retention.
type IdempotencyCleanupJob struct {
	store     *shared.IdempotencyStore
	retention time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, retention time.Duration, metrics *observability.Metrics, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, retention: retention, metrics: metrics, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	removed, err := j.store.Cleanup(ctx, j.retention)
	if err != nil {
		j.logger.Error("idempotency cleanup", slog.Any("error", err))
		if j.metrics != nil {
			j.metrics.JobRun(TaskIdempotencyCleanup, false)
		}
		return err
	}
	if j.metrics != nil {
		j.metrics.JobRun(TaskIdempotencyCleanup, true)
	}
	j.logger.Info("idempotency cleanup complete", slog.Int64("removed", removed))
	return nil
}
