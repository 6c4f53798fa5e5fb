package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stragan/stragan/internal/expiry"
	"github.com/stragan/stragan/internal/observability"
)

// ExpiryScanJob classifies every active batch and publishes per-level counts
// so the morning shift sees what needs moving or binning.
type ExpiryScanJob struct {
	monitor *expiry.Monitor
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewExpiryScanJob constructs the job.
func NewExpiryScanJob(monitor *expiry.Monitor, metrics *observability.Metrics, logger *slog.Logger) *ExpiryScanJob {
	return &ExpiryScanJob{monitor: monitor, metrics: metrics, logger: logger}
}

// Handle processes TaskExpiryScan tasks.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	alerts, err := j.monitor.Alerts(ctx)
	if err != nil {
		j.logger.Error("expiry scan", slog.Any("error", err))
		if j.metrics != nil {
			j.metrics.JobRun(TaskExpiryScan, false)
		}
		return err
	}

	counts := map[expiry.AlertLevel]int{
		expiry.AlertExpired:  0,
		expiry.AlertCritical: 0,
		expiry.AlertWarning:  0,
		expiry.AlertNone:     0,
	}
	for _, alert := range alerts {
		counts[alert.Level]++
	}
	if j.metrics != nil {
		for level, count := range counts {
			j.metrics.SetExpiryAlerts(string(level), float64(count))
		}
		j.metrics.JobRun(TaskExpiryScan, true)
	}
	j.logger.Info("expiry scan complete",
		slog.Int("expired", counts[expiry.AlertExpired]),
		slog.Int("critical", counts[expiry.AlertCritical]),
		slog.Int("warning", counts[expiry.AlertWarning]))
	return nil
}
