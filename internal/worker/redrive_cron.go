package worker

// redrive_cron.go
// Background goroutine that periodically redrives dead-lettered notification
// jobs back onto the live queue. It only runs while the webhook circuit
// breaker is closed, so a downed receiver never causes a DLQ → queue → DLQ
// spin.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Bushels/PipeVault-sub014/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redriveTickInterval = 30 * time.Second
	redriveBatchSize    = 10
	redriveMaxAttempts  = 9 // total, across all redrives
)

// StartRedriveCron launches a background goroutine that ticks every 30s and
// replays up to redriveBatchSize DLQ entries when the breaker is closed.
// It respects the context for graceful shutdown.
func StartRedriveCron(ctx context.Context, rdb *redis.Client, cb *infra.CircuitBreaker) {
	go func() {
		ticker := time.NewTicker(redriveTickInterval)
		defer ticker.Stop()

		log.Info().Msg("redrive_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("redrive_cron: shutting down")
				return
			case <-ticker.C:
				redriveBatch(ctx, rdb, cb)
			}
		}
	}()
}

func redriveBatch(ctx context.Context, rdb *redis.Client, cb *infra.CircuitBreaker) {
	if cb != nil && cb.State() != infra.CBClosed {
		return
	}

	for i := 0; i < redriveBatchSize; i++ {
		entry, err := PopDLQ(ctx, rdb, QueueNotifications)
		if err != nil {
			log.Error().Err(err).Msg("redrive_cron: pop failed")
			return
		}
		if entry == nil {
			return // DLQ drained
		}

		if entry.Attempts >= redriveMaxAttempts {
			// Exhausted — park it on a separate key so it never cycles again.
			data, _ := json.Marshal(entry)
			if err := rdb.LPush(ctx, DLQPrefix+"parked:"+entry.OriginalQueue, data).Err(); err != nil {
				log.Error().Err(err).Msg("redrive_cron: park failed")
			}
			continue
		}

		job := Job{Type: entry.JobType, Payload: entry.Payload, Attempts: entry.Attempts}
		encoded, err := json.Marshal(job)
		if err != nil {
			log.Error().Err(err).Msg("redrive_cron: marshal failed")
			continue
		}
		if err := rdb.LPush(ctx, entry.OriginalQueue, encoded).Err(); err != nil {
			log.Error().Err(err).Msg("redrive_cron: requeue failed")
			return
		}
		log.Info().Str("job_type", entry.JobType).Int("attempts", entry.Attempts).
			Msg("redrive_cron: job requeued")
	}
}
