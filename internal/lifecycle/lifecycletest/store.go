// Package lifecycletest provides an in-memory implementation of the lifecycle
// store interfaces with the same conditional-write semantics as the Postgres
// repositories.
package lifecycletest

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
)

// Store holds assets, history, workflow records, users, categories and audit
// entries in memory. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	assets     map[int64]models.Asset
	history    []models.HistoryEntry
	issues     map[int64]models.AssetIssue
	returns    map[int64]models.AssetReturn
	requests   map[int64]models.Request
	users      map[int64]models.User
	categories []string
	audit      []models.AuditEntry

	nextID    int64
	serial    int64
	maintID   int64
	historyID int64

	// AuditErr, when set, is returned from every Record call.
	AuditErr error
	// BeforeApply runs inside Apply before the condition is checked, for
	// simulating concurrent writers.
	BeforeApply func(s *Store)
	// ApplyErr, when set, fails every Apply before anything is written, as a
	// rolled-back transaction would.
	ApplyErr error
}

func New() *Store {
	return &Store{
		assets:   map[int64]models.Asset{},
		issues:   map[int64]models.AssetIssue{},
		returns:  map[int64]models.AssetReturn{},
		requests: map[int64]models.Request{},
		users:    map[int64]models.User{},
	}
}

// Deps wires s into every engine dependency.
func (s *Store) Deps() lifecycle.Deps {
	return lifecycle.Deps{
		Assets:     s,
		History:    s,
		Issues:     s,
		Requests:   s,
		Categories: s,
		Users:      s,
		Audit:      s,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddUser registers a user and returns it with its id set.
func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	}
	if u.Role == "" {
		u.Role = models.RoleEmployee
	}
	s.users[u.ID] = u
	return u
}

// AddCategory registers a live category.
func (s *Store) AddCategory(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, name)
}

// PutAsset overwrites an asset directly, bypassing the lifecycle.
func (s *Store) PutAsset(a models.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.ID] = cloneAsset(a)
}

// Asset returns the stored asset, for assertions.
func (s *Store) Asset(id int64) models.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAsset(s.assets[id])
}

// History returns every history entry for assetID, oldest first.
func (s *Store) History(assetID int64) []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HistoryEntry
	for _, h := range s.history {
		if h.AssetID == assetID {
			out = append(out, h)
		}
	}
	return out
}

// AuditEntries returns the recorded audit entries.
func (s *Store) AuditEntries() []models.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.audit)
}

// Returns returns every return request for assetID.
func (s *Store) Returns(assetID int64) []models.AssetReturn {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AssetReturn
	for _, r := range s.returns {
		if r.AssetID == assetID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b models.AssetReturn) int { return int(a.ID - b.ID) })
	return out
}

func cloneAsset(a models.Asset) models.Asset {
	a.Maintenance = slices.Clone(a.Maintenance)
	a.ImageRefs = slices.Clone(a.ImageRefs)
	if a.AssignedTo != nil {
		v := *a.AssignedTo
		a.AssignedTo = &v
	}
	if a.Issue != nil {
		v := *a.Issue
		a.Issue = &v
	}
	return a
}

// ==========================
// lifecycle.AssetStore
// ==========================

func (s *Store) GetAsset(_ context.Context, id int64) (models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return models.Asset{}, lifecycle.ErrAssetNotFound
	}
	return cloneAsset(a), nil
}

func (s *Store) NextSerial(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serial++
	return s.serial, nil
}

func (s *Store) InsertAsset(_ context.Context, a models.Asset, h models.HistoryEntry) (models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assets {
		if existing.SerialNumber == a.SerialNumber {
			return models.Asset{}, errors.New("duplicate serial number " + a.SerialNumber)
		}
	}
	a.ID = s.id()
	if a.ImageRefs == nil {
		a.ImageRefs = []string{}
	}
	s.assets[a.ID] = cloneAsset(a)
	h.AssetID = a.ID
	s.appendHistory(h)
	return cloneAsset(a), nil
}

func (s *Store) appendHistory(h models.HistoryEntry) {
	s.historyID++
	h.ID = s.historyID
	s.history = append(s.history, h)
}

// Apply mirrors the Postgres conditional write: every part of the mutation
// is validated before anything is stored, so a failure leaves no trace.
func (s *Store) Apply(_ context.Context, m lifecycle.Mutation) (lifecycle.Result, error) {
	if s.BeforeApply != nil {
		s.BeforeApply(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ApplyErr != nil {
		return lifecycle.Result{}, s.ApplyErr
	}

	a, ok := s.assets[m.AssetID]
	if !ok || !slices.Contains(m.From, a.Status) || a.IsDeleted != m.Deleted {
		return lifecycle.Result{}, lifecycle.ErrConditionFailed
	}
	if m.Holder != nil && !a.HeldBy(*m.Holder) {
		return lifecycle.Result{}, lifecycle.ErrConditionFailed
	}

	a = cloneAsset(a)
	res := lifecycle.Result{}

	activeIdx := slices.IndexFunc(a.Maintenance, func(r models.MaintenanceRecord) bool { return r.IsActive })
	if m.OpenMaintenance != nil && activeIdx >= 0 {
		return lifecycle.Result{}, lifecycle.ErrActiveMaintenance
	}
	if m.CloseMaintenance != nil && activeIdx < 0 {
		return lifecycle.Result{}, lifecycle.ErrNoActiveMaintenance
	}
	var issue models.AssetIssue
	if u := m.IssueUpdate; u != nil {
		issue, ok = s.issues[u.IssueID]
		if !ok || issue.Status != u.From {
			return lifecycle.Result{}, lifecycle.ErrIssueState
		}
	}
	var req models.Request
	if u := m.RequestUpdate; u != nil {
		req, ok = s.requests[u.RequestID]
		if !ok || req.Status != u.From {
			return lifecycle.Result{}, lifecycle.ErrRequestProcessed
		}
	}

	// Everything validated; write.
	a.Status = m.To
	a.UpdatedAt = m.History.CreatedAt
	if m.SetHolder {
		a.AssignedTo = nil
		if m.NewHolder != nil {
			v := *m.NewHolder
			a.AssignedTo = &v
		}
	}
	if m.SetDeleted {
		a.IsDeleted = m.NewDeleted
	}
	if m.IssueReport != nil {
		v := *m.IssueReport
		a.Issue = &v
	}

	if m.OpenMaintenance != nil {
		s.maintID++
		rec := *m.OpenMaintenance
		rec.ID = s.maintID
		rec.AssetID = a.ID
		rec.IsActive = true
		a.Maintenance = append(a.Maintenance, rec)
		res.Maintenance = &rec
	}
	if c := m.CloseMaintenance; c != nil {
		rec := a.Maintenance[activeIdx]
		end := c.EndDate
		rec.IsActive = false
		rec.EndDate = &end
		rec.Cost = c.Cost
		if c.Vendor != "" {
			rec.Vendor = c.Vendor
		}
		if c.Notes != "" {
			rec.Notes = c.Notes
		}
		a.Maintenance[activeIdx] = rec
		a.MaintenanceCount++
		a.TotalMaintenanceCost = a.TotalMaintenanceCost.Add(c.Cost)
		res.Maintenance = &rec
	}

	if m.NewIssue != nil {
		i := *m.NewIssue
		i.ID = s.id()
		i.AssetID = a.ID
		s.issues[i.ID] = i
		res.IssueID = i.ID
	}
	if u := m.IssueUpdate; u != nil {
		issue.Status = u.To
		if u.AdminNotes != "" {
			issue.AdminNotes = u.AdminNotes
		}
		if u.Vendor != "" {
			issue.Vendor = u.Vendor
		}
		if u.Cost != nil {
			issue.Cost = *u.Cost
		}
		if u.StartDate != nil {
			issue.StartDate = u.StartDate
		}
		if u.EndDate != nil {
			issue.EndDate = u.EndDate
		}
		s.issues[issue.ID] = issue
	}

	if m.NewReturn != nil {
		r := *m.NewReturn
		r.ID = s.id()
		r.AssetID = a.ID
		s.returns[r.ID] = r
		res.ReturnID = r.ID
	}
	if m.CompleteReturns {
		for id, r := range s.returns {
			if r.AssetID == a.ID && !r.IsCompleted {
				r.IsCompleted = true
				s.returns[id] = r
			}
		}
	}

	if u := m.RequestUpdate; u != nil {
		req.Status = u.To
		if u.AssetID != nil {
			v := *u.AssetID
			req.AssignedAsset = &v
		}
		s.requests[req.ID] = req
	}

	s.assets[a.ID] = a
	h := m.History
	h.AssetID = a.ID
	s.appendHistory(h)

	res.Asset = cloneAsset(a)
	return res, nil
}

// ==========================
// lifecycle.HistoryReader
// ==========================

// AssignmentHistory returns events for the asset, or for every asset the user
// was ever assigned, oldest first.
func (s *Store) AssignmentHistory(_ context.Context, f lifecycle.HistoryFilter) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assets := map[int64]bool{}
	if f.AssetID != 0 {
		assets[f.AssetID] = true
	} else {
		for _, h := range s.history {
			if h.Action == models.ActionAssigned && h.AssignedTo != nil && *h.AssignedTo == f.UserID {
				assets[h.AssetID] = true
			}
		}
	}

	var out []models.HistoryEntry
	for _, h := range s.history {
		if assets[h.AssetID] && h.AssignedTo != nil {
			out = append(out, h)
		}
	}
	return out, nil
}

// ==========================
// lifecycle.IssueReader
// ==========================

func (s *Store) GetIssue(_ context.Context, id int64) (models.AssetIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.issues[id]
	if !ok {
		return models.AssetIssue{}, lifecycle.ErrIssueNotFound
	}
	return i, nil
}

// ==========================
// lifecycle.RequestStore
// ==========================

func (s *Store) GetRequest(_ context.Context, id int64) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return models.Request{}, lifecycle.ErrRequestNotFound
	}
	return r, nil
}

func (s *Store) InsertRequest(_ context.Context, r models.Request) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	s.requests[r.ID] = r
	return r, nil
}

func (s *Store) UpdateRequestStatus(_ context.Context, u lifecycle.RequestUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[u.RequestID]
	if !ok || r.Status != u.From {
		return lifecycle.ErrRequestProcessed
	}
	r.Status = u.To
	if u.AssetID != nil {
		v := *u.AssetID
		r.AssignedAsset = &v
	}
	s.requests[r.ID] = r
	return nil
}

// ==========================
// lifecycle.CategoryRegistry / UserLookup / AuditSink
// ==========================

func (s *Store) CategoryExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.ContainsFunc(s.categories, func(c string) bool {
		return strings.EqualFold(c, strings.TrimSpace(name))
	}), nil
}

func (s *Store) GetUser(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, lifecycle.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) Record(_ context.Context, e models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AuditErr != nil {
		return s.AuditErr
	}
	e.ID = int64(len(s.audit) + 1)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.audit = append(s.audit, e)
	return nil
}
