package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueEmail = "jobs:email"

	JobTypeEmail = "email"

	// MaxJobAttempts is the number of tries before a job is dead-lettered.
	MaxJobAttempts = 3
)

// retryBaseDelay is the first backoff step; attempt n waits base * 2^(n-1).
var retryBaseDelay = time.Second

// pollErrorBackoff is how long a worker waits after Redis itself fails.
var pollErrorBackoff = 2 * time.Second

// ErrPermanent marks a job failure that retrying cannot fix (bad payload).
var ErrPermanent = errors.New("permanent job failure")

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Processor handles one job type. A nil error acknowledges the job.
type Processor interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb redis.Cmdable
}

func NewDispatcher(rdb redis.Cmdable) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobTypeEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb        redis.Cmdable
	processors map[string]Processor
	dead       *DeadLetters
	queues     []string
	wg         sync.WaitGroup
}

// NewPool maps job types to processors. Only queues with a processor are read.
func NewPool(rdb redis.Cmdable, processors map[string]Processor) *Pool {
	p := &Pool{rdb: rdb, processors: processors, dead: NewDeadLetters(rdb)}
	if _, ok := processors[JobTypeEmail]; ok {
		p.queues = append(p.queues, QueueEmail)
	}
	return p
}

// Start launches numWorkers goroutines. Each blocks on BRPOP, so idle
// workers cost nothing. Wait returns once ctx is cancelled and all drained.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	if len(p.queues) == 0 {
		return
	}
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, p.queues...).Result()
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue // timeout or shutting down
			}
			if err != nil {
				log.Warn().Err(err).Int("worker", id).Msg("queue poll failed")
				select {
				case <-ctx.Done():
				case <-time.After(pollErrorBackoff):
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.handle(ctx, result[0], result[1])
		}
	}
}

// handle runs one job with retries and dead-letters it when they run out.
func (p *Pool) handle(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		p.dead.Park(ctx, queue, Job{Type: "unknown", Payload: json.RawMessage(strconv.Quote(raw))}, err.Error(), 0)
		return
	}
	proc, ok := p.processors[job.Type]
	if !ok {
		p.dead.Park(ctx, queue, job, "no processor for job type", 0)
		return
	}

	attempts, err := withRetry(ctx, MaxJobAttempts, func(int) error {
		return proc.Process(ctx, job.Payload)
	})
	if err == nil {
		log.Debug().Str("type", job.Type).Int("attempts", attempts).Msg("job done")
		return
	}
	if ctx.Err() != nil {
		// Shutting down mid-retry: put it back for the next process.
		if perr := p.rdb.RPush(context.Background(), queue, raw).Err(); perr != nil {
			log.Error().Err(perr).Str("queue", queue).Msg("failed to requeue job on shutdown")
		}
		return
	}
	p.dead.Park(ctx, queue, job, err.Error(), attempts)
}

// withRetry calls fn up to maxAttempts times with exponential backoff and
// returns how many attempts ran. Permanent failures stop immediately.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) (int, error) {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := retryBaseDelay * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return i, ctx.Err()
			case <-time.After(wait):
			}
		}
		err := fn(i)
		if err == nil {
			return i + 1, nil
		}
		lastErr = err
		if errors.Is(err, ErrPermanent) {
			return i + 1, err
		}
	}
	return maxAttempts, lastErr
}
