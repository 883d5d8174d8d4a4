// Package persist moves storage writes off the relay's hot path. Messages
// destined for promoted conversations and end-of-chat moderation logs are
// enqueued as jobs and written by a background worker with bounded retry.
// Delivery to the peer never waits on storage.
package persist

import (
	"context"
	"log"
	"time"

	"github.com/strangerhub/realtime/internal/metrics"
	"github.com/strangerhub/realtime/internal/modlog"
)

const (
	// defaultQueueSize bounds the job backlog. Enqueue drops (with a log
	// line) rather than blocking when the backlog is full.
	defaultQueueSize = 1024

	// maxAttempts is how many times a failing job is retried before it is
	// dropped.
	maxAttempts = 3

	// retryBackoff is the base delay between attempts; attempt N waits
	// N * retryBackoff.
	retryBackoff = 250 * time.Millisecond

	// jobTimeout bounds a single storage write.
	jobTimeout = 5 * time.Second
)

// MessageAppender is the slice of the conversation store the worker uses.
type MessageAppender interface {
	AppendMessage(ctx context.Context, convID, senderID, text string) error
}

// LogCreator is the slice of the moderation log store the worker uses.
type LogCreator interface {
	Create(ctx context.Context, entry *modlog.Log) error
}

// job is a single queued storage write.
type job struct {
	// kind discriminates the union below.
	kind string // "message" | "modlog"

	convID   string
	senderID string
	text     string

	logEntry *modlog.Log
}

// Worker consumes queued persistence jobs and writes them to storage.
type Worker struct {
	conversations MessageAppender
	logs          LogCreator
	jobs          chan job
	done          chan struct{}
}

// NewWorker creates a Worker over the given stores with the default queue
// size.
func NewWorker(conversations MessageAppender, logs LogCreator) *Worker {
	return &Worker{
		conversations: conversations,
		logs:          logs,
		jobs:          make(chan job, defaultQueueSize),
		done:          make(chan struct{}),
	}
}

// Start launches the worker goroutine. It exits when ctx is cancelled,
// after draining whatever is already queued.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				w.drain()
				return
			case j := <-w.jobs:
				metrics.PersistQueueDepth.Set(float64(len(w.jobs)))
				w.process(j)
			}
		}
	}()
	log.Println("[persist] worker started")
}

// Wait blocks until the worker goroutine has exited.
func (w *Worker) Wait() {
	<-w.done
}

// EnqueueMessage queues a persistent message append. Returns false if the
// backlog is full and the job was dropped.
func (w *Worker) EnqueueMessage(convID, senderID, text string) bool {
	return w.enqueue(job{kind: "message", convID: convID, senderID: senderID, text: text})
}

// EnqueueLog queues a moderation log write. Returns false if the backlog is
// full and the job was dropped.
func (w *Worker) EnqueueLog(entry *modlog.Log) bool {
	return w.enqueue(job{kind: "modlog", logEntry: entry})
}

func (w *Worker) enqueue(j job) bool {
	select {
	case w.jobs <- j:
		metrics.PersistQueueDepth.Set(float64(len(w.jobs)))
		return true
	default:
		log.Printf("[persist] queue full, dropping %s job", j.kind)
		return false
	}
}

// process runs one job with bounded retry. Failures after the final attempt
// are logged and swallowed — persistence problems must not ripple back into
// session handling.
func (w *Worker) process(j job) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(attempt-1) * retryBackoff)
		}

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		lastErr = w.run(ctx, j)
		cancel()

		if lastErr == nil {
			return
		}
	}
	log.Printf("[persist] dropping %s job after %d attempts: %v", j.kind, maxAttempts, lastErr)
}

func (w *Worker) run(ctx context.Context, j job) error {
	switch j.kind {
	case "message":
		return w.conversations.AppendMessage(ctx, j.convID, j.senderID, j.text)
	case "modlog":
		return w.logs.Create(ctx, j.logEntry)
	default:
		log.Printf("[persist] unknown job kind %q", j.kind)
		return nil
	}
}

// drain processes everything still queued at shutdown, one attempt each.
func (w *Worker) drain() {
	for {
		select {
		case j := <-w.jobs:
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			if err := w.run(ctx, j); err != nil {
				log.Printf("[persist] drain: dropping %s job: %v", j.kind, err)
			}
			cancel()
		default:
			log.Println("[persist] worker stopped")
			return
		}
	}
}
