package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/stitchhq/stitch"
	"github.com/stitchhq/stitch/id"
	"github.com/stitchhq/stitch/queue"
)

// PutItem persists a new queue item.
func (s *Store) PutItem(ctx context.Context, item *queue.Item) error {
	m := toQueueItemModel(item)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return stitch.ErrItemAlreadyExists
		}
		return fmt.Errorf("stitch/bun: put item: %w", err)
	}
	return nil
}

// LeaseItem atomically claims one due item of the given kinds. Uses
// FOR UPDATE SKIP LOCKED so concurrent workers never grab the same row.
func (s *Store) LeaseItem(ctx context.Context, kinds []queue.Kind, leaseFor time.Duration, workerID id.WorkerID) (*queue.Item, error) {
	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}

	var models []queueItemModel
	_, err := s.db.NewRaw(`
		WITH leased AS (
			UPDATE stitch_queue_items
			SET lease_expires_at = NOW() + ?0::interval,
			    worker_id = ?1,
			    attempt = attempt + 1,
			    updated_at = NOW()
			WHERE id = (
				SELECT id FROM stitch_queue_items
				WHERE terminal = FALSE
				  AND (cardinality(?2::text[]) = 0 OR kind = ANY(?2))
				  AND scheduled_at <= NOW()
				  AND (lease_expires_at IS NULL OR lease_expires_at <= NOW())
				ORDER BY scheduled_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			RETURNING *
		)
		SELECT * FROM leased`,
		leaseFor.String(), workerID.String(), pgdialect.Array(kindStrs),
	).Exec(ctx, &models)
	if err != nil {
		return nil, fmt.Errorf("stitch/bun: lease item: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return fromQueueItemModel(&models[0])
}

// GetItem retrieves an item by ID.
func (s *Store) GetItem(ctx context.Context, itemID id.QueueItemID) (*queue.Item, error) {
	m := new(queueItemModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", itemID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrQueueItemNotFound
		}
		return nil, fmt.Errorf("stitch/bun: get item: %w", err)
	}
	return fromQueueItemModel(m)
}

// UpdateItem persists changes to an existing item.
func (s *Store) UpdateItem(ctx context.Context, item *queue.Item) error {
	m := toQueueItemModel(item)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("stitch/bun: update item: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return stitch.ErrQueueItemNotFound
	}
	return nil
}

// DeleteItem removes an item by ID.
func (s *Store) DeleteItem(ctx context.Context, itemID id.QueueItemID) error {
	res, err := s.db.NewDelete().
		TableExpr("stitch_queue_items").
		Where("id = ?", itemID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stitch/bun: delete item: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return stitch.ErrQueueItemNotFound
	}
	return nil
}

// ActiveItemForJob returns the non-terminal item for the given
// application.
func (s *Store) ActiveItemForJob(ctx context.Context, jobID id.ApplicationID) (*queue.Item, error) {
	m := new(queueItemModel)
	err := s.db.NewSelect().Model(m).
		Where("job_id = ?", jobID.String()).
		Where("terminal = FALSE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stitch.ErrQueueItemNotFound
		}
		return nil, fmt.Errorf("stitch/bun: active item for job: %w", err)
	}
	return fromQueueItemModel(m)
}

// ReclaimExpiredLeases clears leases that have expired.
func (s *Store) ReclaimExpiredLeases(ctx context.Context) (int, error) {
	res, err := s.db.NewUpdate().
		TableExpr("stitch_queue_items").
		Set("lease_expires_at = NULL").
		Set("worker_id = ''").
		Set("updated_at = NOW()").
		Where("lease_expires_at IS NOT NULL").
		Where("lease_expires_at <= NOW()").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("stitch/bun: reclaim leases: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return int(rows), nil
}

// CountItems returns the number of non-terminal items.
func (s *Store) CountItems(ctx context.Context) (int64, error) {
	count, err := s.db.NewSelect().
		TableExpr("stitch_queue_items").
		Where("terminal = FALSE").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("stitch/bun: count items: %w", err)
	}
	return int64(count), nil
}
