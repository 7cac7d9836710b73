package queue

import (
	"context"
	"time"

	"github.com/stitchhq/stitch/id"
)

// Store defines the persistence contract for queue items.
type Store interface {
	// PutItem persists a new item. Returns stitch.ErrItemAlreadyExists
	// if an item with the same ID already exists.
	PutItem(ctx context.Context, item *Item) error

	// LeaseItem atomically claims one due item of the given kinds,
	// stamps its lease and worker, increments the attempt counter, and
	// returns it. Returns (nil, nil) when nothing is due. Items whose
	// lease has expired are leasable again.
	LeaseItem(ctx context.Context, kinds []Kind, leaseFor time.Duration, workerID id.WorkerID) (*Item, error)

	// GetItem retrieves an item by ID.
	GetItem(ctx context.Context, itemID id.QueueItemID) (*Item, error)

	// UpdateItem persists changes to an existing item.
	UpdateItem(ctx context.Context, item *Item) error

	// DeleteItem removes an item by ID.
	DeleteItem(ctx context.Context, itemID id.QueueItemID) error

	// ActiveItemForJob returns the non-terminal item for the given
	// application, or stitch.ErrQueueItemNotFound when none exists.
	// This backs the idempotent-submission check at the enqueue
	// boundary.
	ActiveItemForJob(ctx context.Context, jobID id.ApplicationID) (*Item, error)

	// ReclaimExpiredLeases clears leases that expired before now so the
	// items show up as immediately visible. Leasing already treats
	// expired leases as free; this keeps stored rows honest and returns
	// how many were reclaimed for observability.
	ReclaimExpiredLeases(ctx context.Context) (int, error)

	// CountItems returns the number of non-terminal items.
	CountItems(ctx context.Context) (int64, error)
}
