package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crucial707/alloc8/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	counts    map[string]int
	countsErr error
	warranty  int
	gotWithin time.Duration
}

func (f *fakeSource) AssetCounts(context.Context) (map[string]int, error) {
	return f.counts, f.countsErr
}

func (f *fakeSource) WarrantyExpiring(_ context.Context, _ time.Time, within time.Duration) (int, error) {
	f.gotWithin = within
	return f.warranty, nil
}

func TestStatsJob_Refresh(t *testing.T) {
	src := &fakeSource{counts: map[string]int{"available": 3, "assigned": 2}, warranty: 4}
	job := &StatsJob{Source: src, WarrantyWindow: 30 * 24 * time.Hour}

	job.Refresh(context.Background())

	if got := testutil.ToFloat64(metrics.AssetsByStatus.WithLabelValues("available")); got != 3 {
		t.Errorf("available gauge: got %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.AssetsByStatus.WithLabelValues("maintenance")); got != 0 {
		t.Errorf("maintenance gauge: got %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.WarrantyExpiringSoon); got != 4 {
		t.Errorf("warranty gauge: got %v, want 4", got)
	}
	if src.gotWithin != 30*24*time.Hour {
		t.Errorf("window: got %v", src.gotWithin)
	}
}

func TestStatsJob_RefreshKeepsGaugesOnError(t *testing.T) {
	metrics.SetWarrantyExpiringSoon(7)
	src := &fakeSource{countsErr: errors.New("db down"), warranty: 1}

	(&StatsJob{Source: src}).Refresh(context.Background())

	if got := testutil.ToFloat64(metrics.WarrantyExpiringSoon); got != 7 {
		t.Errorf("warranty gauge changed on error: got %v", got)
	}
}

func TestRun_InvalidSchedule(t *testing.T) {
	err := Run(context.Background(), "every now and then", &StatsJob{Source: &fakeSource{}})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
