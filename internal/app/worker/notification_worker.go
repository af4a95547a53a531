package worker

import (
	"context"
	"log"
	"time"

	"reservation_app/internal/app/notify"
)

const defaultBatchSize = 50

type NotificationWorker struct {
	queue       notify.Queue
	mailer      notify.Mailer
	gate        notify.Gate
	pollEvery   time.Duration
	maxAttempts int
	batchSize   int
	now         func() time.Time
}

// NewNotificationWorker builds a worker draining queue into mailer. gate may
// be nil, in which case every due notification is sent.
func NewNotificationWorker(queue notify.Queue, mailer notify.Mailer, gate notify.Gate, pollEvery time.Duration, maxAttempts int) *NotificationWorker {
	if pollEvery <= 0 {
		pollEvery = time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &NotificationWorker{
		queue:       queue,
		mailer:      mailer,
		gate:        gate,
		pollEvery:   pollEvery,
		maxAttempts: maxAttempts,
		batchSize:   defaultBatchSize,
		now:         time.Now,
	}
}

// Start polls the queue until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) {
	log.Printf("Notification worker started, polling every %s", w.pollEvery)
	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Notification worker stopping...")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce delivers every due notification and returns how many were sent.
func (w *NotificationWorker) RunOnce(ctx context.Context) int {
	delivered := 0
	for {
		batch, err := w.queue.PopDue(ctx, w.now(), w.batchSize)
		if err != nil {
			log.Printf("ERROR: Failed to pop due notifications: %v", err)
			return delivered
		}
		for _, n := range batch {
			if w.deliver(ctx, n) {
				delivered++
			}
		}
		if len(batch) < w.batchSize {
			return delivered
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, n notify.Notification) bool {
	if w.gate != nil {
		ok, err := w.gate.Deliverable(ctx, n)
		if err != nil {
			w.retry(ctx, n, err)
			return false
		}
		if !ok {
			log.Printf("INFO: Dropping stale %s notification %s to %s", n.Kind, n.ID, n.To)
			return false
		}
	}

	err := w.mailer.Send(ctx, n)
	if err == nil {
		return true
	}
	w.retry(ctx, n, err)
	return false
}

// retry re-queues n with a linear backoff, or drops it once maxAttempts is
// reached.
func (w *NotificationWorker) retry(ctx context.Context, n notify.Notification, cause error) {
	n.Attempts++
	if n.Attempts >= w.maxAttempts {
		log.Printf("ERROR: Dropping notification %s to %s after %d attempts: %v", n.ID, n.To, n.Attempts, cause)
		return
	}
	n.DeliverAt = w.now().Add(time.Duration(n.Attempts) * w.pollEvery)
	if err := w.queue.Notify(ctx, n); err != nil {
		log.Printf("ERROR: Failed to re-queue notification %s: %v", n.ID, err)
		return
	}
	log.Printf("WARN: Notification %s to %s failed (attempt %d), re-queued: %v", n.ID, n.To, n.Attempts, cause)
}
