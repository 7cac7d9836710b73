package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/stitchhq/stitch/queue"
)

// Logging returns middleware that logs item start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, item *queue.Item, next Handler) error {
		logger.Info("item processing started",
			slog.String("item_id", item.ID.String()),
			slog.String("job_id", item.JobID.String()),
			slog.String("kind", string(item.Kind)),
			slog.Int("attempt", item.Attempt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("item processing failed",
				slog.String("item_id", item.ID.String()),
				slog.String("job_id", item.JobID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("item processing completed",
				slog.String("item_id", item.ID.String()),
				slog.String("job_id", item.JobID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
