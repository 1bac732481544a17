package scheduler

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"caddie_backend/internal/notification/outbox"
	"caddie_backend/platform/config"
	"caddie_backend/platform/logger"
)

const (
	dispatchInterval    = 2 * time.Second
	dispatchBatch       = 50
	dispatchConcurrency = 8
)

// OutboxDispatcher periodically claims pending outbox rows and hands them
// to asynq, scheduled for their run-at time. A row that fails to enqueue
// goes back to pending and is picked up on a later tick.
type OutboxDispatcher struct {
	client *asynq.Client
	queue  string
	repo   *outbox.Repository
	log    *logger.Logger
}

// NewOutboxDispatcher creates a dispatcher bound to the configured queue.
func NewOutboxDispatcher(cfg config.SchedulerConfig, pool *pgxpool.Pool, log *logger.Logger) (*OutboxDispatcher, error) {
	client, queue, err := newAsynqClient(cfg)
	if err != nil {
		return nil, err
	}

	return &OutboxDispatcher{
		client: client,
		queue:  queue,
		repo:   outbox.New(pool),
		log:    log,
	}, nil
}

func (d *OutboxDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

// Run loops until the context is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		records, err := d.repo.ClaimPending(ctx, dispatchBatch)
		if err != nil {
			d.log.Warn("outbox claim failed", "error", err)
			continue
		}

		// Enqueues are independent; a failed record goes back to pending
		// without holding up the rest of the batch.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(dispatchConcurrency)
		for _, rec := range records {
			g.Go(func() error {
				task, err := NewNotificationDueTask(NotificationDuePayload{OutboxID: rec.ID.String()})
				if err != nil {
					d.requeue(gctx, rec, err)
					return nil
				}

				_, err = d.client.EnqueueContext(gctx, task, asynq.ProcessAt(rec.RunAt), asynq.Queue(d.queue))
				if err != nil {
					d.requeue(gctx, rec, err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (d *OutboxDispatcher) requeue(ctx context.Context, rec outbox.Record, cause error) {
	msg := cause.Error()
	if err := d.repo.MarkPending(ctx, rec.ID, rec.RunAt, &msg); err != nil {
		d.log.Warn("outbox requeue failed", "outbox_id", rec.ID.String(), "error", err)
	}
}
