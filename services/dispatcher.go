package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"praxis-billing/logger"

	"github.com/redis/go-redis/v9"
)

const (
	QueueInvoiceEmail = "jobs:invoice_email"
	DLQPrefix         = "dlq:"

	maxEmailAttempts = 3
)

// Job is the envelope stored in Redis lists.
type Job struct {
	Type     string          `json:"type"`
	Attempts int             `json:"attempts"`
	Payload  json.RawMessage `json:"payload"`
}

// EmailJob sends one invoice mail and tells AfterSend which invoice it was.
type EmailJob struct {
	Schema    string `json:"schema"`
	InvoiceID uint   `json:"invoice_id"`
	Mail      Mail   `json:"mail"`
}

// Dispatcher queues invoice mails in Redis; the worker pool pops them via BRPOP.
// Without Redis, jobs are sent inline.
type Dispatcher struct {
	rdb    *redis.Client
	sender Sender

	// AfterSend runs once a mail went out (e.g. to stamp invoices.sent_at).
	AfterSend func(ctx context.Context, job EmailJob) error

	wg sync.WaitGroup
}

func NewDispatcher(rdb *redis.Client, sender Sender) *Dispatcher {
	return &Dispatcher{rdb: rdb, sender: sender}
}

// NewRedis creates and pings a go-redis client.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Async reports whether jobs go through Redis.
func (d *Dispatcher) Async() bool { return d.rdb != nil }

// EnqueueEmail pushes an email job, or sends it right away when no queue is configured.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, job EmailJob) error {
	if d.rdb == nil {
		return d.deliver(ctx, job)
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.push(ctx, QueueInvoiceEmail, Job{Type: "invoice_email", Payload: payload})
}

func (d *Dispatcher) push(ctx context.Context, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

func (d *Dispatcher) deliver(ctx context.Context, job EmailJob) error {
	if err := d.sender.Send(ctx, job.Mail); err != nil {
		return err
	}
	if d.AfterSend != nil {
		return d.AfterSend(ctx, job)
	}
	return nil
}

// StartWorkerPool launches n goroutines consuming the email queue until ctx is done.
// Wait blocks until all of them returned.
func (d *Dispatcher) StartWorkerPool(ctx context.Context, n int) {
	if d.rdb == nil {
		return
	}
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		d.wg.Add(1)
		go d.runWorker(ctx, i)
	}
	logger.WithComponent("worker").Info().Int("workers", n).Msg("worker pool started")
}

func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) runWorker(ctx context.Context, id int) {
	defer d.wg.Done()
	log := logger.WithComponent("worker").With().Int("worker", id).Logger()

	for {
		if ctx.Err() != nil {
			log.Info().Msg("worker shutting down")
			return
		}
		// Blocks up to 5s, then loops to check ctx.
		result, err := d.rdb.BRPop(ctx, 5*time.Second, QueueInvoiceEmail).Result()
		if err != nil || len(result) < 2 {
			continue
		}
		if err := d.process(ctx, result[0], result[1]); err != nil {
			log.Error().Err(err).Str("queue", result[0]).Msg("job failed")
		}
	}
}

// process handles one raw queue entry; failed jobs are retried and then dead-lettered.
func (d *Dispatcher) process(ctx context.Context, queue, raw string) error {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	if job.Type != "invoice_email" {
		return fmt.Errorf("unknown job type %q", job.Type)
	}

	var ej EmailJob
	if err := json.Unmarshal(job.Payload, &ej); err != nil {
		return fmt.Errorf("decode email job: %w", err)
	}

	sendErr := d.deliver(ctx, ej)
	if sendErr == nil {
		logger.WithComponent("worker").Info().
			Str("schema", ej.Schema).
			Uint("invoice_id", ej.InvoiceID).
			Msg("invoice mail sent")
		return nil
	}

	job.Attempts++
	if d.rdb == nil {
		return sendErr
	}
	if job.Attempts < maxEmailAttempts {
		if err := d.push(ctx, queue, job); err != nil {
			return fmt.Errorf("requeue after %v: %w", sendErr, err)
		}
		return sendErr
	}
	if err := d.push(ctx, DLQPrefix+queue, job); err != nil {
		return fmt.Errorf("dead-letter after %v: %w", sendErr, err)
	}
	return fmt.Errorf("moved to dead letter queue after %d attempts: %w", job.Attempts, sendErr)
}
