package worker

import (
	"context"
	"errors"
	"time"

	"github.com/Bushels/PipeVault-sub014/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	notifyMaxAttempts = 3
	notifyRetryDelay  = 2 * time.Second
)

// NotifyWorker forwards committed lot change events to the notification
// collaborator. Delivery is at-least-once: a transient failure retries inline,
// an exhausted job lands in the DLQ for the redrive cron.
type NotifyWorker struct {
	notifier infra.Notifier
}

func NewNotifyWorker(notifier infra.Notifier) *NotifyWorker {
	return &NotifyWorker{notifier: notifier}
}

func (w *NotifyWorker) Handle(ctx context.Context, rdb *redis.Client, queue string, job Job) {
	var lastErr error
	for attempt := 1; attempt <= notifyMaxAttempts; attempt++ {
		lastErr = w.notifier.Notify(ctx, job.Payload)
		if lastErr == nil {
			return
		}
		if errors.Is(lastErr, infra.ErrCircuitOpen) {
			// Receiver is down hard — stop hammering, DLQ immediately.
			break
		}
		log.Warn().Err(lastErr).Int("attempt", attempt).Msg("notify: delivery failed")
		select {
		case <-ctx.Done():
			return
		case <-time.After(notifyRetryDelay):
		}
	}
	SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, lastErr.Error(), job.Attempts+notifyMaxAttempts)
}
