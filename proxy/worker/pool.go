// Package worker provides an asynchronous worker pool that persists relayed
// chat turns to the record store and announces them on the event stream.
//
// The pool decouples storage and publishing from the relay's HTTP hot path so
// a slow database or broker never delays a streaming reply.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/eduspark/portal/pkg/chat"
	"github.com/eduspark/portal/pkg/eventstream"
	"github.com/eduspark/portal/pkg/sse"
	"github.com/eduspark/portal/pkg/storage"
)

// CollectionTurns holds one record per relayed turn.
const CollectionTurns = "chat_turns"

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a completed relay turn waiting to be stored.
type Job struct {
	TurnID    string
	Model     string
	Messages  []chat.Message
	Reply     string
	Result    sse.Result
	StartedAt time.Time
	Duration  time.Duration
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the record store turns are written to.
	Driver storage.Driver

	// Publisher announces stored turns. Required.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
	now    func() time.Time
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}
	if c.Publisher == nil {
		return nil, fmt.Errorf("worker pool requires an event publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
		now:    time.Now,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "turn_id", job.TurnID, "model", job.Model)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", "turn_id", job.TurnID, "model", job.Model)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the relay HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob stores the turn, then publishes it. A failed publish is logged;
// the stored record is kept.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.storeTurn(ctx, job); err != nil {
		p.logger.Error("storing chat turn failed", "turn_id", job.TurnID, "error", err)
		return
	}

	p.logger.Info("chat turn stored",
		"turn_id", job.TurnID,
		"model", job.Model,
		"deltas", job.Result.Deltas,
	)

	event := eventstream.NewTurnCompletedEvent(job.TurnID, p.now())
	event.Model = job.Model
	event.Messages = len(job.Messages)
	event.Deltas = job.Result.Deltas
	event.ReplyLength = len(job.Reply)
	event.DurationMs = job.Duration.Milliseconds()
	event.Terminated = job.Result.Terminated
	event.Dropped = job.Result.Dropped

	if err := p.config.Publisher.PublishTurn(ctx, event); err != nil {
		p.logger.Warn("publishing turn event failed", "turn_id", job.TurnID, "error", err)
	}
}

func (p *Pool) storeTurn(ctx context.Context, job Job) error {
	messages := make([]map[string]string, 0, len(job.Messages))
	for _, m := range job.Messages {
		messages = append(messages, map[string]string{"role": string(m.Role), "content": m.Content})
	}

	_, err := p.config.Driver.Insert(ctx, CollectionTurns, storage.Record{
		storage.ColumnID: job.TurnID,
		"model":          job.Model,
		"messages":       messages,
		"reply":          job.Reply,
		"deltas":         job.Result.Deltas,
		"dropped":        job.Result.Dropped,
		"terminated":     job.Result.Terminated,
		"bytes":          job.Result.Bytes,
		"started_at":     job.StartedAt.UTC().Format(storage.TimeFormat),
		"duration_ms":    job.Duration.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("inserting %s: %w", CollectionTurns, err)
	}
	return nil
}
