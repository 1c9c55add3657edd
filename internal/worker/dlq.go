package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DeadLetter is a job that ran out of attempts, kept with the last failure.
type DeadLetter struct {
	Queue    string    `json:"queue"`
	Job      Job       `json:"job"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	ParkedAt time.Time `json:"parked_at"`
}

func deadLetterKey(queue string) string { return "dlq:" + queue }

// DeadLetters parks failed jobs in one Redis list per source queue and can
// push them back for another round once the cause is fixed.
type DeadLetters struct {
	rdb redis.Cmdable
}

func NewDeadLetters(rdb redis.Cmdable) *DeadLetters {
	return &DeadLetters{rdb: rdb}
}

// Park records the failed job. Errors are logged; the job is lost only if
// Redis itself is unavailable.
func (d *DeadLetters) Park(ctx context.Context, queue string, job Job, cause string, attempts int) {
	data, err := json.Marshal(DeadLetter{
		Queue:    queue,
		Job:      job,
		Error:    cause,
		Attempts: attempts,
		ParkedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dead letter: marshal failed")
		return
	}
	// Parking happens on shutdown too, when ctx is already done.
	if err := d.rdb.LPush(context.WithoutCancel(ctx), deadLetterKey(queue), data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Str("job_type", job.Type).Msg("dead letter: push failed")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Int("attempts", attempts).
		Str("cause", cause).
		Msg("job parked in dead letter queue")
}

// Depth is the number of parked jobs for queue.
func (d *DeadLetters) Depth(ctx context.Context, queue string) (int64, error) {
	return d.rdb.LLen(ctx, deadLetterKey(queue)).Result()
}

// Redrive moves up to limit parked jobs, oldest first, back onto their
// queue. It returns how many were moved.
func (d *DeadLetters) Redrive(ctx context.Context, queue string, limit int) (int, error) {
	moved := 0
	for moved < limit {
		raw, err := d.rdb.RPop(ctx, deadLetterKey(queue)).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, err
		}
		var dl DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			// Unreadable entries go back where they were.
			_ = d.rdb.RPush(ctx, deadLetterKey(queue), raw).Err()
			return moved, err
		}
		encoded, err := json.Marshal(dl.Job)
		if err != nil {
			return moved, err
		}
		if err := d.rdb.LPush(ctx, queue, encoded).Err(); err != nil {
			_ = d.rdb.RPush(context.WithoutCancel(ctx), deadLetterKey(queue), raw).Err()
			return moved, err
		}
		moved++
	}
	if moved > 0 {
		log.Info().Str("queue", queue).Int("moved", moved).Msg("dead letters redriven")
	}
	return moved, nil
}
