package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/application"
	"github.com/stitchhq/stitch/dlq"
	"github.com/stitchhq/stitch/event"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
	"github.com/stitchhq/stitch/resume"
)

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ application.Store = (*Store)(nil)
	_ resume.Source     = (*Store)(nil)
	_ resume.Store      = (*Store)(nil)
	_ queue.Store       = (*Store)(nil)
	_ dlq.Store         = (*Store)(nil)
	_ event.Store       = (*Store)(nil)
)

// Store is a GORM implementation of store.Store backed by a SQLite
// database file. Store owns the connection and closes it on Close().
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (or creates) the SQLite database at path. The connection
// pool is capped at one; SQLite allows a single writer and a larger
// pool only adds lock contention.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("stitch/sqlite: open %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("stitch/sqlite: open %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)
	return New(db, opts...), nil
}

// New wraps an already opened *gorm.DB.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *gorm.DB for advanced usage.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the schema for all models.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&applicationModel{},
		&resumeModel{},
		&tailoredResumeModel{},
		&queueItemModel{},
		&dlqEntryModel{},
		&eventModel{},
	)
	if err != nil {
		return fmt.Errorf("stitch/sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("stitch/sqlite: ping: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("stitch/sqlite: close: %w", err)
	}
	return sqlDB.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ───────────────────────── applications ─────────────────────────

// CreateApplication persists a new application.
func (s *Store) CreateApplication(ctx context.Context, app *application.Application) error {
	err := s.db.WithContext(ctx).Create(toApplicationModel(app)).Error
	if err != nil {
		if isDuplicateKey(err) {
			return stitch.ErrItemAlreadyExists
		}
		return fmt.Errorf("stitch/sqlite: create application: %w", err)
	}
	return nil
}

// GetApplication retrieves an application by ID.
func (s *Store) GetApplication(ctx context.Context, appID id.ApplicationID) (*application.Application, error) {
	m := new(applicationModel)
	err := s.db.WithContext(ctx).First(m, "id = ?", appID.String()).Error
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("stitch/sqlite: get application: %w", err)
	}
	return fromApplicationModel(m)
}

// UpdateApplication persists changes to an existing application. The
// stored status and created_at are left untouched; status changes go
// through CASApplicationStatus.
func (s *Store) UpdateApplication(ctx context.Context, app *application.Application) error {
	m := toApplicationModel(app)
	res := s.db.WithContext(ctx).
		Model(&applicationModel{}).
		Where("id = ?", m.ID).
		Select("*").
		Omit("id", "status", "created_at").
		Updates(m)
	if res.Error != nil {
		return fmt.Errorf("stitch/sqlite: update application: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return stitch.ErrApplicationNotFound
	}
	return nil
}

// CASApplicationStatus atomically replaces the stored row with app if
// and only if the stored status still equals expect. The guarded
// UPDATE's RowsAffected distinguishes a lost race from a missing row.
func (s *Store) CASApplicationStatus(ctx context.Context, app *application.Application, expect application.Status) error {
	m := toApplicationModel(app)
	res := s.db.WithContext(ctx).
		Model(&applicationModel{}).
		Where("id = ? AND status = ?", m.ID, string(expect)).
		Select("*").
		Omit("id", "created_at").
		Updates(m)
	if res.Error != nil {
		return fmt.Errorf("stitch/sqlite: cas application status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&applicationModel{}).
			Where("id = ?", m.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("stitch/sqlite: cas application status: %w", err)
		}
		if count == 0 {
			return stitch.ErrApplicationNotFound
		}
		return stitch.ErrStatusConflict
	}
	return nil
}

// ListApplications returns applications matching opts, newest first.
func (s *Store) ListApplications(ctx context.Context, opts application.ListOpts) ([]*application.Application, error) {
	q := s.db.WithContext(ctx).Model(&applicationModel{})
	if !opts.UserID.IsNil() {
		q = q.Where("user_id = ?", opts.UserID.String())
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	q = q.Order("created_at DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	var models []*applicationModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("stitch/sqlite: list applications: %w", err)
	}
	apps := make([]*application.Application, 0, len(models))
	for _, m := range models {
		app, err := fromApplicationModel(m)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// ───────────────────────── resumes ─────────────────────────

// PutResume persists a source resume, replacing any existing row.
func (s *Store) PutResume(ctx context.Context, r *resume.Resume) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "full_name", "headline", "skills", "experience", "text", "updated_at",
			}),
		}).
		Create(toResumeModel(r)).Error
	if err != nil {
		return fmt.Errorf("stitch/sqlite: put resume: %w", err)
	}
	return nil
}

// GetResume retrieves a source resume by ID.
func (s *Store) GetResume(ctx context.Context, resumeID id.ResumeID) (*resume.Resume, error) {
	m := new(resumeModel)
	err := s.db.WithContext(ctx).First(m, "id = ?", resumeID.String()).Error
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrResumeNotFound
		}
		return nil, fmt.Errorf("stitch/sqlite: get resume: %w", err)
	}
	return fromResumeModel(m)
}

// UpsertTailoredResume writes the row with tr.ID, replacing any
// existing row with the same ID. Duplicate deliveries land on the same
// row because the ID is allocated at enqueue time.
func (s *Store) UpsertTailoredResume(ctx context.Context, tr *resume.TailoredResume) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"summary", "experience", "skills", "matched_keywords",
				"missing_keywords", "match_score", "updated_at",
			}),
		}).
		Create(toTailoredResumeModel(tr)).Error
	if err != nil {
		return fmt.Errorf("stitch/sqlite: upsert tailored resume: %w", err)
	}
	return nil
}

// GetTailoredResume retrieves a tailored resume by ID.
func (s *Store) GetTailoredResume(ctx context.Context, trID id.TailoredID) (*resume.TailoredResume, error) {
	m := new(tailoredResumeModel)
	err := s.db.WithContext(ctx).First(m, "id = ?", trID.String()).Error
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrTailoredResumeNotFound
		}
		return nil, fmt.Errorf("stitch/sqlite: get tailored resume: %w", err)
	}
	return fromTailoredResumeModel(m)
}

// LatestTailoredResumeForJob returns the most recently created row for
// the given application.
func (s *Store) LatestTailoredResumeForJob(ctx context.Context, jobID id.ApplicationID) (*resume.TailoredResume, error) {
	m := new(tailoredResumeModel)
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID.String()).
		Order("created_at DESC").
		First(m).Error
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrTailoredResumeNotFound
		}
		return nil, fmt.Errorf("stitch/sqlite: latest tailored resume: %w", err)
	}
	return fromTailoredResumeModel(m)
}

// PatchTailoredResume applies owner edits to an existing row.
func (s *Store) PatchTailoredResume(ctx context.Context, trID id.TailoredID, patch resume.ContentPatch) (*resume.TailoredResume, error) {
	tr, err := s.GetTailoredResume(ctx, trID)
	if err != nil {
		return nil, err
	}
	patch.Apply(tr)
	if err := s.UpsertTailoredResume(ctx, tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// ───────────────────────── queue items ─────────────────────────

// PutItem persists a new queue item.
func (s *Store) PutItem(ctx context.Context, item *queue.Item) error {
	err := s.db.WithContext(ctx).Create(toQueueItemModel(item)).Error
	if err != nil {
		if isDuplicateKey(err) {
			return stitch.ErrItemAlreadyExists
		}
		return fmt.Errorf("stitch/sqlite: put item: %w", err)
	}
	return nil
}

// LeaseItem claims one due item of the given kinds. The candidate is
// selected first, then claimed with a guarded UPDATE on its attempt
// counter; a lost race against another leaser reads as an empty poll.
func (s *Store) LeaseItem(ctx context.Context, kinds []queue.Kind, leaseFor time.Duration, workerID id.WorkerID) (*queue.Item, error) {
	now := time.Now().UTC()
	var leased *queue.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&queueItemModel{}).
			Where("terminal = ?", false).
			Where("scheduled_at <= ?", now).
			Where("lease_expires_at IS NULL OR lease_expires_at <= ?", now)
		if len(kinds) > 0 {
			names := make([]string, len(kinds))
			for i, k := range kinds {
				names[i] = string(k)
			}
			q = q.Where("kind IN ?", names)
		}
		m := new(queueItemModel)
		if err := q.Order("scheduled_at ASC").First(m).Error; err != nil {
			if isNoRows(err) {
				return nil
			}
			return err
		}

		expiry := now.Add(leaseFor)
		res := tx.Model(&queueItemModel{}).
			Where("id = ? AND attempt = ?", m.ID, m.Attempt).
			Updates(map[string]any{
				"attempt":          m.Attempt + 1,
				"lease_expires_at": expiry,
				"worker_id":        workerID.String(),
				"updated_at":       now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		m.Attempt++
		m.LeaseExpiresAt = &expiry
		m.WorkerID = workerID.String()
		m.UpdatedAt = now
		item, err := fromQueueItemModel(m)
		if err != nil {
			return err
		}
		leased = item
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stitch/sqlite: lease item: %w", err)
	}
	return leased, nil
}

// GetItem retrieves a queue item by ID.
func (s *Store) GetItem(ctx context.Context, itemID id.QueueItemID) (*queue.Item, error) {
	m := new(queueItemModel)
	err := s.db.WithContext(ctx).First(m, "id = ?", itemID.String()).Error
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrQueueItemNotFound
		}
		return nil, fmt.Errorf("stitch/sqlite: get item: %w", err)
	}
	return fromQueueItemModel(m)
}

// UpdateItem persists changes to an existing queue item.
func (s *Store) UpdateItem(ctx context.Context, item *queue.Item) error {
	m := toQueueItemModel(item)
	res := s.db.WithContext(ctx).
		Model(&queueItemModel{}).
		Where("id = ?", m.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(m)
	if res.Error != nil {
		return fmt.Errorf("stitch/sqlite: update item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return stitch.ErrQueueItemNotFound
	}
	return nil
}

// DeleteItem removes a queue item by ID.
func (s *Store) DeleteItem(ctx context.Context, itemID id.QueueItemID) error {
	res := s.db.WithContext(ctx).Delete(&queueItemModel{}, "id = ?", itemID.String())
	if res.Error != nil {
		return fmt.Errorf("stitch/sqlite: delete item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return stitch.ErrQueueItemNotFound
	}
	return nil
}

// ActiveItemForJob returns the non-terminal item for the application.
func (s *Store) ActiveItemForJob(ctx context.Context, jobID id.ApplicationID) (*queue.Item, error) {
	m := new(queueItemModel)
	err := s.db.WithContext(ctx).
		Where("job_id = ? AND terminal = ?", jobID.String(), false).
		First(m).Error
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrQueueItemNotFound
		}
		return nil, fmt.Errorf("stitch/sqlite: active item for job: %w", err)
	}
	return fromQueueItemModel(m)
}

// ReclaimExpiredLeases clears leases that expired before now.
func (s *Store) ReclaimExpiredLeases(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&queueItemModel{}).
		Where("terminal = ?", false).
		Where("lease_expires_at IS NOT NULL AND lease_expires_at <= ?", now).
		Updates(map[string]any{
			"lease_expires_at": nil,
			"worker_id":        "",
			"updated_at":       now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("stitch/sqlite: reclaim expired leases: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// CountItems returns the number of non-terminal items.
func (s *Store) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&queueItemModel{}).
		Where("terminal = ?", false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("stitch/sqlite: count items: %w", err)
	}
	return count, nil
}

// ───────────────────────── dead letters ─────────────────────────

// PushDLQ adds a failed item entry to the dead letter set.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	err := s.db.WithContext(ctx).Create(toDLQModel(entry)).Error
	if err != nil {
		if isDuplicateKey(err) {
			return stitch.ErrItemAlreadyExists
		}
		return fmt.Errorf("stitch/sqlite: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries matching opts, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	q := s.db.WithContext(ctx).Model(&dlqEntryModel{})
	if !opts.JobID.IsNil() {
		q = q.Where("job_id = ?", opts.JobID.String())
	}
	q = q.Order("failed_at DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	var models []*dlqEntryModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("stitch/sqlite: list dlq: %w", err)
	}
	entries := make([]*dlq.Entry, 0, len(models))
	for _, m := range models {
		entry, err := fromDLQModel(m)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetDLQ retrieves a dead letter entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m := new(dlqEntryModel)
	err := s.db.WithContext(ctx).First(m, "id = ?", entryID.String()).Error
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrDLQNotFound
		}
		return nil, fmt.Errorf("stitch/sqlite: get dlq: %w", err)
	}
	return fromDLQModel(m)
}

// ReplayDLQ marks an entry as replayed.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	res := s.db.WithContext(ctx).
		Model(&dlqEntryModel{}).
		Where("id = ?", entryID.String()).
		Update("replayed_at", time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("stitch/sqlite: replay dlq: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return stitch.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("failed_at < ?", before).
		Delete(&dlqEntryModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("stitch/sqlite: purge dlq: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountDLQ returns the total number of dead letter entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&dlqEntryModel{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("stitch/sqlite: count dlq: %w", err)
	}
	return count, nil
}

// ───────────────────────── events ─────────────────────────

// RecordEvent persists an event.
func (s *Store) RecordEvent(ctx context.Context, evt *event.Event) error {
	err := s.db.WithContext(ctx).Create(toEventModel(evt)).Error
	if err != nil {
		return fmt.Errorf("stitch/sqlite: record event: %w", err)
	}
	return nil
}

// ListEventsForJob returns all events for the application, oldest first.
func (s *Store) ListEventsForJob(ctx context.Context, jobID id.ApplicationID) ([]*event.Event, error) {
	var models []*eventModel
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID.String()).
		Order("at ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("stitch/sqlite: list events: %w", err)
	}
	events := make([]*event.Event, 0, len(models))
	for _, m := range models {
		evt, err := fromEventModel(m)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, nil
}
