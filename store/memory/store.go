package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/dlq"
	"github.com/stitchhq/stitch/event"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/resume"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ application.Store = (*Store)(nil)
	_ resume.Source     = (*Store)(nil)
	_ resume.Store      = (*Store)(nil)
	_ queue.Store       = (*Store)(nil)
	_ dlq.Store         = (*Store)(nil)
	_ event.Store       = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	apps     map[string]*application.Application
	resumes  map[string]*resume.Resume
	tailored map[string]*resume.TailoredResume
	items    map[string]*queue.Item
	dlqs     map[string]*dlq.Entry
	events   map[string]*event.Event
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		apps:     make(map[string]*application.Application),
		resumes:  make(map[string]*resume.Resume),
		tailored: make(map[string]*resume.TailoredResume),
		items:    make(map[string]*queue.Item),
		dlqs:     make(map[string]*dlq.Entry),
		events:   make(map[string]*event.Event),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Application Store
// ──────────────────────────────────────────────────

// CreateApplication persists a new application.
func (m *Store) CreateApplication(_ context.Context, app *application.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := app.ID.String()
	if _, exists := m.apps[key]; exists {
		return stitch.ErrItemAlreadyExists
	}
	cp := *app
	m.apps[key] = &cp
	return nil
}

// GetApplication retrieves an application by ID.
func (m *Store) GetApplication(_ context.Context, appID id.ApplicationID) (*application.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	app, ok := m.apps[appID.String()]
	if !ok {
		return nil, stitch.ErrApplicationNotFound
	}
	cp := *app
	return &cp, nil
}

// UpdateApplication persists changes to an existing application.
func (m *Store) UpdateApplication(_ context.Context, app *application.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := app.ID.String()
	stored, ok := m.apps[key]
	if !ok {
		return stitch.ErrApplicationNotFound
	}
	cp := *app
	// Status changes go through CASApplicationStatus only.
	cp.Status = stored.Status
	cp.UpdatedAt = time.Now().UTC()
	m.apps[key] = &cp
	return nil
}

// CASApplicationStatus replaces the stored row with app only if the
// stored status still equals expect.
func (m *Store) CASApplicationStatus(_ context.Context, app *application.Application, expect application.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := app.ID.String()
	stored, ok := m.apps[key]
	if !ok {
		return stitch.ErrApplicationNotFound
	}
	if stored.Status != expect {
		return stitch.ErrStatusConflict
	}
	cp := *app
	cp.UpdatedAt = time.Now().UTC()
	m.apps[key] = &cp
	return nil
}

// ListApplications returns applications matching the given options,
// newest first.
func (m *Store) ListApplications(_ context.Context, opts application.ListOpts) ([]*application.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*application.Application, 0, len(m.apps))
	for _, app := range m.apps {
		if !opts.UserID.IsNil() && app.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && app.Status != opts.Status {
			continue
		}
		cp := *app
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Resume Source / Store
// ──────────────────────────────────────────────────

// PutResume persists a source resume, replacing any existing row.
func (m *Store) PutResume(_ context.Context, r *resume.Resume) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	m.resumes[r.ID.String()] = &cp
	return nil
}

// GetResume retrieves a source resume by ID.
func (m *Store) GetResume(_ context.Context, resumeID id.ResumeID) (*resume.Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.resumes[resumeID.String()]
	if !ok {
		return nil, stitch.ErrResumeNotFound
	}
	cp := *r
	return &cp, nil
}

// UpsertTailoredResume writes the row with tr.ID, replacing any
// existing row with the same ID.
func (m *Store) UpsertTailoredResume(_ context.Context, tr *resume.TailoredResume) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *tr
	cp.UpdatedAt = time.Now().UTC()
	m.tailored[tr.ID.String()] = &cp
	return nil
}

// GetTailoredResume retrieves a tailored resume by ID.
func (m *Store) GetTailoredResume(_ context.Context, trID id.TailoredID) (*resume.TailoredResume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tr, ok := m.tailored[trID.String()]
	if !ok {
		return nil, stitch.ErrTailoredResumeNotFound
	}
	cp := *tr
	return &cp, nil
}

// LatestTailoredResumeForJob returns the most recently created row for
// the given application.
func (m *Store) LatestTailoredResumeForJob(_ context.Context, jobID id.ApplicationID) (*resume.TailoredResume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *resume.TailoredResume
	for _, tr := range m.tailored {
		if tr.JobID != jobID {
			continue
		}
		if latest == nil || tr.CreatedAt.After(latest.CreatedAt) {
			latest = tr
		}
	}
	if latest == nil {
		return nil, stitch.ErrTailoredResumeNotFound
	}
	cp := *latest
	return &cp, nil
}

// PatchTailoredResume applies owner edits to an existing row.
func (m *Store) PatchTailoredResume(_ context.Context, trID id.TailoredID, patch resume.ContentPatch) (*resume.TailoredResume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.tailored[trID.String()]
	if !ok {
		return nil, stitch.ErrTailoredResumeNotFound
	}
	patch.Apply(tr)
	cp := *tr
	return &cp, nil
}

// ──────────────────────────────────────────────────
// Queue Store
// ──────────────────────────────────────────────────

// PutItem persists a new queue item.
func (m *Store) PutItem(_ context.Context, item *queue.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := item.ID.String()
	if _, exists := m.items[key]; exists {
		return stitch.ErrItemAlreadyExists
	}
	cp := *item
	m.items[key] = &cp
	return nil
}

// LeaseItem atomically claims one due item of the given kinds.
func (m *Store) LeaseItem(_ context.Context, kinds []queue.Kind, leaseFor time.Duration, workerID id.WorkerID) (*queue.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kindSet := make(map[queue.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		kindSet[k] = struct{}{}
	}

	now := time.Now().UTC()

	// Oldest scheduled first for deterministic delivery order.
	candidates := make([]*queue.Item, 0, len(m.items))
	for _, item := range m.items {
		if !item.Due(now) {
			continue
		}
		if len(kindSet) > 0 {
			if _, ok := kindSet[item.Kind]; !ok {
				continue
			}
		}
		candidates = append(candidates, item)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, k int) bool {
		return candidates[i].ScheduledAt.Before(candidates[k].ScheduledAt)
	})

	item := candidates[0]
	expiry := now.Add(leaseFor)
	item.LeaseExpiresAt = &expiry
	item.WorkerID = workerID
	item.Attempt++
	item.UpdatedAt = now

	cp := *item
	return &cp, nil
}

// GetItem retrieves an item by ID.
func (m *Store) GetItem(_ context.Context, itemID id.QueueItemID) (*queue.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[itemID.String()]
	if !ok {
		return nil, stitch.ErrQueueItemNotFound
	}
	cp := *item
	return &cp, nil
}

// UpdateItem persists changes to an existing item.
func (m *Store) UpdateItem(_ context.Context, item *queue.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := item.ID.String()
	if _, ok := m.items[key]; !ok {
		return stitch.ErrQueueItemNotFound
	}
	cp := *item
	cp.UpdatedAt = time.Now().UTC()
	m.items[key] = &cp
	return nil
}

// DeleteItem removes an item by ID.
func (m *Store) DeleteItem(_ context.Context, itemID id.QueueItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := itemID.String()
	if _, ok := m.items[key]; !ok {
		return stitch.ErrQueueItemNotFound
	}
	delete(m.items, key)
	return nil
}

// ActiveItemForJob returns the non-terminal item for the given
// application.
func (m *Store) ActiveItemForJob(_ context.Context, jobID id.ApplicationID) (*queue.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, item := range m.items {
		if item.JobID == jobID && !item.Terminal {
			cp := *item
			return &cp, nil
		}
	}
	return nil, stitch.ErrQueueItemNotFound
}

// ReclaimExpiredLeases clears leases that have expired.
func (m *Store) ReclaimExpiredLeases(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var n int
	for _, item := range m.items {
		if item.LeaseExpiresAt == nil || item.LeaseExpiresAt.After(now) {
			continue
		}
		item.LeaseExpiresAt = nil
		item.WorkerID = id.Nil
		item.UpdatedAt = now
		n++
	}
	return n, nil
}

// CountItems returns the number of non-terminal items.
func (m *Store) CountItems(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, item := range m.items {
		if !item.Terminal {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

// PushDLQ adds an entry to the dead letter set.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.dlqs[entry.ID.String()] = &cp
	return nil
}

// ListDLQ returns entries matching the given options, newest first.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(m.dlqs))
	for _, entry := range m.dlqs {
		if !opts.JobID.IsNil() && entry.JobID != opts.JobID {
			continue
		}
		cp := *entry
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].FailedAt.After(result[k].FailedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// GetDLQ retrieves an entry by ID.
func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.dlqs[entryID.String()]
	if !ok {
		return nil, stitch.ErrDLQNotFound
	}
	cp := *entry
	return &cp, nil
}

// ReplayDLQ marks an entry as replayed.
func (m *Store) ReplayDLQ(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.dlqs[entryID.String()]
	if !ok {
		return stitch.ErrDLQNotFound
	}
	now := time.Now().UTC()
	entry.ReplayedAt = &now
	return nil
}

// PurgeDLQ removes entries that failed before the given time.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, entry := range m.dlqs {
		if entry.FailedAt.Before(before) {
			delete(m.dlqs, key)
			n++
		}
	}
	return n, nil
}

// CountDLQ returns the total number of entries.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.dlqs)), nil
}

// ──────────────────────────────────────────────────
// Event Store
// ──────────────────────────────────────────────────

// RecordEvent persists an audit event.
func (m *Store) RecordEvent(_ context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *evt
	m.events[evt.ID.String()] = &cp
	return nil
}

// ListEventsForJob returns all events for the application, oldest first.
func (m *Store) ListEventsForJob(_ context.Context, jobID id.ApplicationID) ([]*event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*event.Event, 0, 8)
	for _, evt := range m.events {
		if evt.JobID == jobID {
			cp := *evt
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].At.Before(result[k].At)
	})
	return result, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
