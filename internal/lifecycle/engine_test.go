package lifecycle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/lifecycle/lifecycletest"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	engine *lifecycle.Engine
	store  *lifecycletest.Store
	clock  *clock
	admin  lifecycle.Actor
	u1     models.User
	u2     models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := lifecycletest.New()
	store.AddCategory("Laptop")
	store.AddCategory("Monitor")
	admin := store.AddUser(models.User{Username: "root", Role: models.RoleAdmin})
	u1 := store.AddUser(models.User{Username: "ana", Name: "Ana", Department: "Finance"})
	u2 := store.AddUser(models.User{Username: "ben", Name: "Ben", Department: "IT"})

	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	e := lifecycle.New(store.Deps(),
		lifecycle.WithClock(c.now),
		lifecycle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return &fixture{
		engine: e,
		store:  store,
		clock:  c,
		admin:  lifecycle.Actor{UserID: admin.ID, Role: models.RoleAdmin},
		u1:     u1,
		u2:     u2,
	}
}

func (f *fixture) actor(u models.User) lifecycle.Actor {
	return lifecycle.Actor{UserID: u.ID, Role: u.Role}
}

func (f *fixture) create(t *testing.T, name, category string) models.Asset {
	t.Helper()
	a, err := f.engine.CreateAsset(context.Background(), lifecycle.NewAsset{
		Name:     name,
		Category: category,
		Cost:     decimal.NewFromInt(1200),
	}, f.admin)
	require.NoError(t, err)
	return a
}

func (f *fixture) assigned(t *testing.T, holder models.User) models.Asset {
	t.Helper()
	a := f.create(t, "Laptop-1", "Laptop")
	a, err := f.engine.AssignAsset(context.Background(), a.ID, holder.ID, f.admin)
	require.NoError(t, err)
	return a
}

func auditActions(s *lifecycletest.Store) []string {
	var out []string
	for _, e := range s.AuditEntries() {
		out = append(out, e.Action)
	}
	return out
}

func TestLaptopLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	asset := f.create(t, "Laptop-1", "Laptop")
	assert.Equal(t, "ORG-AST-0001", asset.SerialNumber)
	assert.Equal(t, models.StatusAvailable, asset.Status)

	asset, err := f.engine.AssignAsset(ctx, asset.ID, f.u1.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, asset.Status)
	assert.True(t, asset.HeldBy(f.u1.ID))

	var assignments []models.HistoryEntry
	for _, h := range f.store.History(asset.ID) {
		if h.Action == models.ActionAssigned {
			assignments = append(assignments, h)
		}
	}
	require.Len(t, assignments, 1)
	assert.Equal(t, f.u1.ID, *assignments[0].AssignedTo)

	f.clock.advance(time.Hour)
	started, err := f.engine.StartMaintenance(ctx, asset.ID, lifecycle.MaintenanceStart{Reason: "screen"}, f.admin)
	require.NoError(t, err)
	assert.True(t, started.IsActive)

	stored := f.store.Asset(asset.ID)
	assert.Equal(t, models.StatusMaintenance, stored.Status)
	assert.Nil(t, stored.AssignedTo)
	active := 0
	for _, m := range stored.Maintenance {
		if m.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)

	f.clock.advance(50 * time.Hour)
	done, err := f.engine.CompleteMaintenance(ctx, asset.ID, lifecycle.MaintenanceCompletion{Cost: decimal.NewFromInt(50)}, f.admin)
	require.NoError(t, err)
	require.NotNil(t, done.EndDate)
	assert.False(t, done.IsActive)
	assert.Equal(t, 3, lifecycle.DurationDays(done.StartDate, *done.EndDate))

	stored = f.store.Asset(asset.ID)
	assert.Equal(t, models.StatusAvailable, stored.Status)
	assert.Equal(t, 1, stored.MaintenanceCount)
	assert.True(t, stored.TotalMaintenanceCost.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "ORG-AST-0001", stored.SerialNumber)

	assert.Equal(t, []string{"ASSET_CREATED", "ASSET_ASSIGNED", "MAINTENANCE_STARTED", "MAINTENANCE_COMPLETED"}, auditActions(f.store))
	completed := f.store.AuditEntries()[3]
	assert.JSONEq(t, `{"asset_name":"Laptop-1","cost":"50","vendor":"","duration_days":3}`, string(completed.Details))
}

func TestCreateAsset_SerialsAreSequential(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "Laptop-1", "Laptop")
	b := f.create(t, "Monitor-1", "monitor")
	assert.Equal(t, "ORG-AST-0001", a.SerialNumber)
	assert.Equal(t, "ORG-AST-0002", b.SerialNumber)
}

func TestCreateAsset_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   lifecycle.NewAsset
	}{
		{"missing name", lifecycle.NewAsset{Category: "Laptop"}},
		{"missing category", lifecycle.NewAsset{Name: "x"}},
		{"unregistered category", lifecycle.NewAsset{Name: "x", Category: "Boat"}},
		{"negative cost", lifecycle.NewAsset{Name: "x", Category: "Laptop", Cost: decimal.NewFromInt(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateAsset(context.Background(), tt.in, f.admin)
			assert.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))
		})
	}
}

func TestAssignAsset_AlreadyAssigned(t *testing.T) {
	f := newFixture(t)
	a := f.assigned(t, f.u1)
	before := len(f.store.History(a.ID))

	_, err := f.engine.AssignAsset(context.Background(), a.ID, f.u2.ID, f.admin)
	require.ErrorIs(t, err, lifecycle.ErrAlreadyAssigned)
	assert.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))

	assert.True(t, f.store.Asset(a.ID).HeldBy(f.u1.ID))
	assert.Len(t, f.store.History(a.ID), before)
}

func TestAssignAsset_DeletedUser(t *testing.T) {
	f := newFixture(t)
	gone := f.store.AddUser(models.User{Username: "gone", IsDeleted: true})
	a := f.create(t, "Laptop-1", "Laptop")

	_, err := f.engine.AssignAsset(context.Background(), a.ID, gone.ID, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrUserNotFound)

	_, err = f.engine.AssignAsset(context.Background(), 999, f.u1.ID, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrAssetNotFound)
}

func TestUnassignAsset(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		f := newFixture(t)
		a := f.create(t, "Laptop-1", "Laptop")
		_, err := f.engine.UnassignAsset(context.Background(), a.ID, f.admin)
		assert.ErrorIs(t, err, lifecycle.ErrNotAssigned)
		assert.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))
	})

	t.Run("assigned", func(t *testing.T) {
		f := newFixture(t)
		a := f.assigned(t, f.u1)
		a, err := f.engine.UnassignAsset(context.Background(), a.ID, f.admin)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAvailable, a.Status)
		assert.Nil(t, a.AssignedTo)

		hist := f.store.History(a.ID)
		last := hist[len(hist)-1]
		assert.Equal(t, models.ActionUnassigned, last.Action)
		assert.Equal(t, f.u1.ID, *last.AssignedTo)
	})

	t.Run("return requested", func(t *testing.T) {
		f := newFixture(t)
		a := f.assigned(t, f.u1)
		_, err := f.engine.RequestReturn(context.Background(), a.ID, f.actor(f.u1), "leaving")
		require.NoError(t, err)

		a, err = f.engine.UnassignAsset(context.Background(), a.ID, f.admin)
		require.NoError(t, err)
		assert.Nil(t, a.AssignedTo)

		returns := f.store.Returns(a.ID)
		require.Len(t, returns, 1)
		assert.True(t, returns[0].IsCompleted)
	})
}

func TestEmployeeOperations_RequireHolder(t *testing.T) {
	f := newFixture(t)
	a := f.assigned(t, f.u1)

	_, err := f.engine.ReportIssue(context.Background(), a.ID, f.actor(f.u2), "damage", "cracked")
	assert.ErrorIs(t, err, lifecycle.ErrNotHolder)
	assert.Equal(t, lifecycle.KindNotAuthorized, lifecycle.KindOf(err))

	_, err = f.engine.RequestReturn(context.Background(), a.ID, f.actor(f.u2), "")
	assert.ErrorIs(t, err, lifecycle.ErrNotHolder)

	assert.Equal(t, models.StatusAssigned, f.store.Asset(a.ID).Status)
}

func TestRequestReturn_Duplicate(t *testing.T) {
	f := newFixture(t)
	a := f.assigned(t, f.u1)

	ret, err := f.engine.RequestReturn(context.Background(), a.ID, f.actor(f.u1), "done with it")
	require.NoError(t, err)
	assert.NotZero(t, ret.ID)
	stored := f.store.Asset(a.ID)
	assert.Equal(t, models.StatusReturnRequested, stored.Status)
	assert.True(t, stored.HeldBy(f.u1.ID))

	_, err = f.engine.RequestReturn(context.Background(), a.ID, f.actor(f.u1), "again")
	assert.ErrorIs(t, err, lifecycle.ErrDuplicateReturn)
	assert.Len(t, f.store.Returns(a.ID), 1)
}

func TestAuditFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "Laptop-1", "Laptop")
	f.store.AuditErr = errors.New("audit down")

	a, err := f.engine.AssignAsset(context.Background(), a.ID, f.u1.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, f.store.Asset(a.ID).Status)
	assert.Equal(t, []string{"ASSET_CREATED"}, auditActions(f.store))
}

func TestEveryOperationWritesOneHistoryEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "Laptop-1", "Laptop")
	holder := f.actor(f.u1)

	steps := []struct {
		action models.HistoryAction
		run    func() error
	}{
		{models.ActionAssigned, func() error {
			_, err := f.engine.AssignAsset(ctx, a.ID, f.u1.ID, f.admin)
			return err
		}},
		{models.ActionReturnRequested, func() error {
			_, err := f.engine.RequestReturn(ctx, a.ID, holder, "")
			return err
		}},
		{models.ActionIssueReported, func() error {
			_, err := f.engine.ReportIssue(ctx, a.ID, holder, "battery", "drains fast")
			return err
		}},
		{models.ActionMaintenanceStarted, func() error {
			_, err := f.engine.StartMaintenance(ctx, a.ID, lifecycle.MaintenanceStart{Reason: "battery"}, f.admin)
			return err
		}},
		{models.ActionMaintenanceCompleted, func() error {
			_, err := f.engine.CompleteMaintenance(ctx, a.ID, lifecycle.MaintenanceCompletion{}, f.admin)
			return err
		}},
		{models.ActionAssigned, func() error {
			_, err := f.engine.AssignAsset(ctx, a.ID, f.u2.ID, f.admin)
			return err
		}},
		{models.ActionUnassigned, func() error {
			_, err := f.engine.UnassignAsset(ctx, a.ID, f.admin)
			return err
		}},
		{models.ActionDeactivated, func() error { return f.engine.DeactivateAsset(ctx, a.ID, f.admin) }},
		{models.ActionRestored, func() error {
			_, err := f.engine.RestoreAsset(ctx, a.ID, f.admin)
			return err
		}},
	}

	for _, step := range steps {
		before := f.store.History(a.ID)
		f.clock.advance(time.Hour)
		require.NoError(t, step.run(), string(step.action))

		after := f.store.History(a.ID)
		require.Len(t, after, len(before)+1, string(step.action))
		last := after[len(after)-1]
		assert.Equal(t, step.action, last.Action)
		assert.Equal(t, a.ID, last.AssetID)
		assert.NotEqual(t, [16]byte{}, [16]byte(last.OperationID))
	}
	assert.Equal(t, "ORG-AST-0001", f.store.Asset(a.ID).SerialNumber)
}

func TestConcurrentChangeFailsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "Laptop-1", "Laptop")
	before := len(f.store.History(a.ID))

	// Another writer assigns the asset between the engine's read and write.
	f.store.BeforeApply = func(s *lifecycletest.Store) {
		s.BeforeApply = nil
		other := s.Asset(a.ID)
		other.Status = models.StatusAssigned
		holder := f.u2.ID
		other.AssignedTo = &holder
		s.PutAsset(other)
	}

	_, err := f.engine.AssignAsset(context.Background(), a.ID, f.u1.ID, f.admin)
	require.ErrorIs(t, err, lifecycle.ErrAlreadyAssigned)
	assert.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))
	assert.True(t, f.store.Asset(a.ID).HeldBy(f.u2.ID))
	assert.Len(t, f.store.History(a.ID), before)
}

func TestConcurrentDeactivationIsReportedAsInactive(t *testing.T) {
	f := newFixture(t)
	a := f.assigned(t, f.u1)

	f.store.BeforeApply = func(s *lifecycletest.Store) {
		s.BeforeApply = nil
		other := s.Asset(a.ID)
		other.Status = models.StatusInactive
		other.IsDeleted = true
		other.AssignedTo = nil
		s.PutAsset(other)
	}

	_, err := f.engine.UnassignAsset(context.Background(), a.ID, f.admin)
	require.ErrorIs(t, err, lifecycle.ErrAssetInactive)
}

func TestConcurrentChangeStillAllowedKeepsConditionFailed(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "Laptop-1", "Laptop")

	// The write fails once more but the reloaded asset still accepts assign.
	f.store.BeforeApply = func(s *lifecycletest.Store) {
		s.BeforeApply = nil
		s.ApplyErr = lifecycle.ErrConditionFailed
	}

	_, err := f.engine.AssignAsset(context.Background(), a.ID, f.u1.ID, f.admin)
	require.ErrorIs(t, err, lifecycle.ErrConditionFailed)
}

func TestStorageFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "Laptop-1", "Laptop")
	history := len(f.store.History(a.ID))
	audit := len(f.store.AuditEntries())

	f.store.ApplyErr = errors.New("inserting history: connection reset")

	_, err := f.engine.AssignAsset(ctx, a.ID, f.u1.ID, f.admin)
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindStorage, lifecycle.KindOf(err))

	stored := f.store.Asset(a.ID)
	assert.Equal(t, models.StatusAvailable, stored.Status)
	assert.Nil(t, stored.AssignedTo)
	assert.Len(t, f.store.History(a.ID), history)
	assert.Len(t, f.store.AuditEntries(), audit)
}

func TestMaintenance_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "Laptop-1", "Laptop")

	_, err := f.engine.CompleteMaintenance(ctx, a.ID, lifecycle.MaintenanceCompletion{}, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrNoActiveMaintenance)

	_, err = f.engine.StartMaintenance(ctx, a.ID, lifecycle.MaintenanceStart{}, f.admin)
	assert.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))

	_, err = f.engine.StartMaintenance(ctx, a.ID, lifecycle.MaintenanceStart{Reason: "fan"}, f.admin)
	require.NoError(t, err)

	_, err = f.engine.StartMaintenance(ctx, a.ID, lifecycle.MaintenanceStart{Reason: "fan"}, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrActiveMaintenance)

	_, err = f.engine.AssignAsset(ctx, a.ID, f.u1.ID, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestDeactivateAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.assigned(t, f.u1)

	_, err := f.engine.RestoreAsset(ctx, a.ID, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrNotDeleted)

	require.NoError(t, f.engine.DeactivateAsset(ctx, a.ID, f.admin))
	stored := f.store.Asset(a.ID)
	assert.Equal(t, models.StatusInactive, stored.Status)
	assert.True(t, stored.IsDeleted)
	assert.Nil(t, stored.AssignedTo)

	_, err = f.engine.AssignAsset(ctx, a.ID, f.u2.ID, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrAssetInactive)
	err = f.engine.DeactivateAsset(ctx, a.ID, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrAssetInactive)

	restored, err := f.engine.RestoreAsset(ctx, a.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, restored.Status)
	assert.False(t, restored.IsDeleted)
}

func TestRestore_KeepsActiveMaintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "Laptop-1", "Laptop")

	_, err := f.engine.StartMaintenance(ctx, a.ID, lifecycle.MaintenanceStart{Reason: "fan"}, f.admin)
	require.NoError(t, err)
	require.NoError(t, f.engine.DeactivateAsset(ctx, a.ID, f.admin))

	restored, err := f.engine.RestoreAsset(ctx, a.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusMaintenance, restored.Status)
}

func TestIssueWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.assigned(t, f.u1)

	_, err := f.engine.ReportIssue(ctx, a.ID, f.actor(f.u1), "teleport", "gone")
	assert.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))

	issue, err := f.engine.ReportIssue(ctx, a.ID, f.actor(f.u1), "Battery", "drains in an hour")
	require.NoError(t, err)
	assert.Equal(t, models.IssueOpen, issue.Status)
	assert.Equal(t, "battery", issue.IssueType)

	stored := f.store.Asset(a.ID)
	assert.Equal(t, models.StatusIssueReported, stored.Status)
	assert.True(t, stored.HeldBy(f.u1.ID))
	require.NotNil(t, stored.Issue)
	assert.Equal(t, "drains in an hour", stored.Issue.Description)

	_, err = f.engine.ResolveIssue(ctx, issue.ID, decimal.Zero, "", f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrIssueState)

	f.clock.advance(time.Hour)
	issue, err = f.engine.StartIssueMaintenance(ctx, issue.ID, "BatteryCo", "replace cell", f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.IssueInMaintenance, issue.Status)
	stored = f.store.Asset(a.ID)
	assert.Equal(t, models.StatusMaintenance, stored.Status)
	assert.Nil(t, stored.AssignedTo)
	rec, ok := stored.ActiveMaintenance()
	require.True(t, ok)
	assert.Equal(t, "battery", rec.Reason)
	assert.Equal(t, "BatteryCo", rec.Vendor)

	f.clock.advance(24 * time.Hour)
	issue, err = f.engine.ResolveIssue(ctx, issue.ID, decimal.NewFromInt(20), "cell replaced", f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.IssueResolved, issue.Status)
	assert.True(t, issue.Cost.Equal(decimal.NewFromInt(20)))

	stored = f.store.Asset(a.ID)
	assert.Equal(t, models.StatusAvailable, stored.Status)
	assert.True(t, stored.TotalMaintenanceCost.Equal(decimal.NewFromInt(20)))

	_, err = f.engine.StartIssueMaintenance(ctx, issue.ID, "", "", f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrIssueState)
}

func TestRequestWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	employee := f.actor(f.u1)

	_, err := f.engine.CreateRequest(ctx, employee, "Boat", "fishing")
	assert.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))

	req, err := f.engine.CreateRequest(ctx, employee, "laptop", "new hire")
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)

	monitor := f.create(t, "Monitor-1", "Monitor")
	_, err = f.engine.ApproveRequest(ctx, req.ID, monitor.ID, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrCategoryMismatch)
	assert.Equal(t, models.StatusAvailable, f.store.Asset(monitor.ID).Status)

	laptop := f.create(t, "Laptop-1", "Laptop")
	req, err = f.engine.ApproveRequest(ctx, req.ID, laptop.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, req.Status)
	require.NotNil(t, req.AssignedAsset)
	assert.Equal(t, laptop.ID, *req.AssignedAsset)
	assert.True(t, f.store.Asset(laptop.ID).HeldBy(f.u1.ID))

	_, err = f.engine.ApproveRequest(ctx, req.ID, monitor.ID, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrRequestProcessed)

	other, err := f.engine.CreateRequest(ctx, f.actor(f.u2), "Monitor", "")
	require.NoError(t, err)
	rejected, err := f.engine.RejectRequest(ctx, other.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)
	_, err = f.engine.RejectRequest(ctx, other.ID, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrRequestProcessed)

	_, err = f.engine.RejectRequest(ctx, 999, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrRequestNotFound)
}

func TestAssetView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.assigned(t, f.u1)

	got, ops, err := f.engine.Asset(ctx, a.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, a.SerialNumber, got.SerialNumber)
	assert.Contains(t, ops, lifecycle.OpUnassign)

	_, ops, err = f.engine.Asset(ctx, a.ID, f.actor(f.u1))
	require.NoError(t, err)
	assert.Equal(t, []lifecycle.Op{lifecycle.OpReportIssue, lifecycle.OpRequestReturn}, ops)

	_, _, err = f.engine.Asset(ctx, a.ID, f.actor(f.u2))
	assert.ErrorIs(t, err, lifecycle.ErrNotHolder)

	_, _, err = f.engine.Asset(ctx, 404, f.admin)
	assert.ErrorIs(t, err, lifecycle.ErrAssetNotFound)
}

func TestUnassignWhileIssueReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.assigned(t, f.u1)
	holder := f.actor(f.u1)

	_, err := f.engine.ReportIssue(ctx, a.ID, holder, "damage", "cracked hinge")
	require.NoError(t, err)
	_, err = f.engine.ReportIssue(ctx, a.ID, holder, "battery", "also drains fast")
	require.NoError(t, err)
	stored := f.store.Asset(a.ID)
	assert.Equal(t, models.StatusIssueReported, stored.Status)
	assert.True(t, stored.HeldBy(f.u1.ID))

	released, err := f.engine.UnassignAsset(ctx, a.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, released.Status)
	assert.Nil(t, released.AssignedTo)

	last := f.store.History(a.ID)
	assert.Equal(t, models.ActionUnassigned, last[len(last)-1].Action)
}

func TestReturnRequestedWithOpenIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.assigned(t, f.u1)
	holder := f.actor(f.u1)

	_, err := f.engine.ReportIssue(ctx, a.ID, holder, "performance", "slow boot")
	require.NoError(t, err)

	_, err = f.engine.RequestReturn(ctx, a.ID, f.actor(f.u2), "not mine")
	require.ErrorIs(t, err, lifecycle.ErrNotHolder)

	ret, err := f.engine.RequestReturn(ctx, a.ID, holder, "leaving")
	require.NoError(t, err)
	assert.NotZero(t, ret.ID)
	assert.Equal(t, models.StatusReturnRequested, f.store.Asset(a.ID).Status)

	_, err = f.engine.RequestReturn(ctx, a.ID, holder, "again")
	assert.ErrorIs(t, err, lifecycle.ErrDuplicateReturn)

	_, err = f.engine.UnassignAsset(ctx, a.ID, f.admin)
	require.NoError(t, err)
	for _, r := range f.store.Returns(a.ID) {
		assert.True(t, r.IsCompleted)
	}
}
