// Package notify carries best-effort email notifications from the booking
// flow to a mailer. Notifications are queued, optionally deferred, and
// delivered by a background worker.
package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindNotice Kind = "notice"
	// KindReminder refers to an upcoming appointment; SlotID and UserID
	// identify the booking it belongs to.
	KindReminder Kind = "reminder"
)

type Notification struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind,omitempty"`
	To        string    `json:"to"`
	Username  string    `json:"username"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SlotID    int64     `json:"slot_id,omitempty"`
	UserID    int64     `json:"user_id,omitempty"`
	DeliverAt time.Time `json:"deliver_at"`
	Attempts  int       `json:"attempts"`
}

// Notifier accepts a notification for delivery. A zero DeliverAt means as
// soon as possible.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Queue is a Notifier whose entries can be drained once due.
type Queue interface {
	Notifier
	PopDue(ctx context.Context, now time.Time, limit int) ([]Notification, error)
}

// Gate decides, at delivery time, whether a due notification still applies.
// Rejected notifications are dropped unsent.
type Gate interface {
	Deliverable(ctx context.Context, n Notification) (bool, error)
}

type Mailer interface {
	Send(ctx context.Context, n Notification) error
}

// LogMailer writes outgoing mail to the process log instead of an SMTP relay.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, n Notification) error {
	log.Printf("INFO: [MAIL] to=%s subject=%q id=%s", n.To, n.Subject, n.ID)
	return nil
}

// prepare fills the id and delivery time of a fresh notification.
func prepare(n Notification, now time.Time) Notification {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Kind == "" {
		n.Kind = KindNotice
	}
	if n.DeliverAt.IsZero() {
		n.DeliverAt = now
	}
	n.DeliverAt = n.DeliverAt.UTC()
	return n
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, prepare(n, time.Now()))
	return nil
}

func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// To returns the notifications addressed to email, in send order.
func (r *Recorder) To(email string) []Notification {
	var out []Notification
	for _, n := range r.Sent() {
		if n.To == email {
			out = append(out, n)
		}
	}
	return out
}
