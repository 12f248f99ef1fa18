package lifecycle

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/crucial707/alloc8/internal/models"
)

const msPerDay = int64(24 * time.Hour / time.Millisecond)

// Interval is one period during which a user held an asset. To is nil while
// the asset is still held. Inferred marks intervals whose end was not
// recorded as a release and was taken from the next assignment instead.
type Interval struct {
	AssetID      int64      `json:"asset_id"`
	HolderID     int64      `json:"holder_id"`
	From         time.Time  `json:"from"`
	To           *time.Time `json:"to"`
	DurationDays *int       `json:"duration_days"`
	Inferred     bool       `json:"inferred,omitempty"`
}

// DurationDays is the number of started days between from and to.
func DurationDays(from, to time.Time) int {
	ms := to.Sub(from).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int((ms + msPerDay - 1) / msPerDay)
}

// releases reports whether a history action ends the current holder's interval.
func releases(a models.HistoryAction) bool {
	switch a {
	case models.ActionUnassigned, models.ActionMaintenanceStarted, models.ActionDeactivated:
		return true
	}
	return false
}

// Reconstruct replays history into holding intervals. Entries need not be
// pre-filtered: anything other than assignments and releases carrying a
// holder is ignored. A release with no open interval is a gap in the log and
// is skipped; a second assignment while one is open closes the first at the
// second's timestamp and marks it Inferred.
func Reconstruct(entries []models.HistoryEntry) []Interval {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b models.HistoryEntry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	open := make(map[int64]*Interval)
	var out []Interval

	closeAt := func(iv *Interval, at time.Time, inferred bool) {
		to := at
		days := DurationDays(iv.From, to)
		iv.To = &to
		iv.DurationDays = &days
		iv.Inferred = inferred
		out = append(out, *iv)
		delete(open, iv.AssetID)
	}

	for _, h := range sorted {
		if h.AssignedTo == nil {
			continue
		}
		switch {
		case h.Action == models.ActionAssigned:
			if iv, ok := open[h.AssetID]; ok {
				closeAt(iv, h.CreatedAt, true)
			}
			open[h.AssetID] = &Interval{
				AssetID:  h.AssetID,
				HolderID: *h.AssignedTo,
				From:     h.CreatedAt,
			}
		case releases(h.Action):
			if iv, ok := open[h.AssetID]; ok {
				closeAt(iv, h.CreatedAt, iv.HolderID != *h.AssignedTo)
			}
		}
	}

	for _, iv := range open {
		out = append(out, *iv)
	}
	slices.SortFunc(out, func(a, b Interval) int {
		if c := a.From.Compare(b.From); c != 0 {
			return c
		}
		return cmp.Compare(a.AssetID, b.AssetID)
	})
	return out
}

// AssignmentTimeline reconstructs who held which asset when, for one asset or
// one user. Exactly one of f.AssetID and f.UserID must be set.
func (e *Engine) AssignmentTimeline(ctx context.Context, f HistoryFilter) ([]Interval, error) {
	if (f.AssetID == 0) == (f.UserID == 0) {
		return nil, ValidationError("filter", "exactly one of asset_id and user_id is required")
	}
	entries, err := e.history.AssignmentHistory(ctx, f)
	if err != nil {
		return nil, classify("load history", err)
	}

	intervals := Reconstruct(entries)
	if f.UserID == 0 {
		return intervals, nil
	}
	mine := intervals[:0]
	for _, iv := range intervals {
		if iv.HolderID == f.UserID {
			mine = append(mine, iv)
		}
	}
	return mine, nil
}
