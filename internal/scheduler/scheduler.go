package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crucial707/alloc8/internal/metrics"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/robfig/cron/v3"
)

// StatsSource is the read side the gauges are refreshed from.
type StatsSource interface {
	AssetCounts(ctx context.Context) (map[string]int, error)
	WarrantyExpiring(ctx context.Context, now time.Time, within time.Duration) (int, error)
}

// StatsJob refreshes the asset gauges exposed on /metrics.
type StatsJob struct {
	Source         StatsSource
	WarrantyWindow time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Refresh queries the current counts and publishes them. Errors are logged
// and leave the previous gauge values in place.
func (j *StatsJob) Refresh(ctx context.Context) {
	log := j.Logger
	if log == nil {
		log = slog.Default()
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}

	counts, err := j.Source.AssetCounts(ctx)
	if err != nil {
		log.Error("scheduler: asset counts", "err", err)
		return
	}
	statuses := make([]string, len(models.AllStatuses))
	for i, s := range models.AllStatuses {
		statuses[i] = string(s)
	}
	metrics.SetAssetCounts(statuses, counts)

	n, err := j.Source.WarrantyExpiring(ctx, now(), j.WarrantyWindow)
	if err != nil {
		log.Error("scheduler: warranty expiring", "err", err)
		return
	}
	metrics.SetWarrantyExpiringSoon(n)
	log.Debug("scheduler: stats refreshed", "warranty_expiring", n)
}

// Run refreshes once, then starts a cron that refreshes on schedule until ctx
// is cancelled. It does not block.
func Run(ctx context.Context, schedule string, job *StatsJob) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { job.Refresh(ctx) }); err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q: %w", schedule, err)
	}

	job.Refresh(ctx)
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
