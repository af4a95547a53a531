package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reservation_app/internal/app/notify"
	"reservation_app/internal/app/service"
	"reservation_app/internal/common/security"
	"reservation_app/internal/domain/model"
	"reservation_app/internal/domain/repository"
)

type stubMailer struct {
	mu       sync.Mutex
	failures int
	sent     []notify.Notification
}

func (m *stubMailer) Send(_ context.Context, n notify.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, n)
	return nil
}

func TestRunOnceDeliversDueNotifications(t *testing.T) {
	q := notify.NewMemoryQueue()
	mailer := &stubMailer{}
	w := NewNotificationWorker(q, mailer, nil, time.Second, 3)
	ctx := context.Background()

	_ = q.Notify(ctx, notify.Notification{To: "a@example.com", Subject: "now"})
	_ = q.Notify(ctx, notify.Notification{To: "b@example.com", Subject: "later", DeliverAt: time.Now().Add(time.Hour)})

	if got := w.RunOnce(ctx); got != 1 {
		t.Fatalf("delivered = %d, want 1", got)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].To != "a@example.com" {
		t.Fatalf("sent = %+v", mailer.sent)
	}
	if q.Len() != 1 {
		t.Fatalf("pending = %d, want 1", q.Len())
	}
}

func TestRunOnceRetriesThenDrops(t *testing.T) {
	q := notify.NewMemoryQueue()
	mailer := &stubMailer{failures: 10}
	w := NewNotificationWorker(q, mailer, nil, time.Second, 2)
	clock := time.Now()
	w.now = func() time.Time { return clock }
	ctx := context.Background()

	_ = q.Notify(ctx, notify.Notification{To: "a@example.com", Subject: "flaky", DeliverAt: clock})

	w.RunOnce(ctx)
	if q.Len() != 1 {
		t.Fatalf("failed notification not re-queued, pending = %d", q.Len())
	}

	clock = clock.Add(time.Minute)
	w.RunOnce(ctx)
	if q.Len() != 0 {
		t.Fatalf("notification kept after max attempts, pending = %d", q.Len())
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("unexpected delivery: %+v", mailer.sent)
	}
}

func TestRunOnceRetrySucceeds(t *testing.T) {
	q := notify.NewMemoryQueue()
	mailer := &stubMailer{failures: 1}
	w := NewNotificationWorker(q, mailer, nil, time.Second, 3)
	clock := time.Now()
	w.now = func() time.Time { return clock }
	ctx := context.Background()

	_ = q.Notify(ctx, notify.Notification{To: "a@example.com", DeliverAt: clock})
	if got := w.RunOnce(ctx); got != 0 {
		t.Fatalf("first run delivered %d", got)
	}
	clock = clock.Add(time.Minute)
	if got := w.RunOnce(ctx); got != 1 {
		t.Fatalf("retry delivered %d, want 1", got)
	}
	if mailer.sent[0].Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", mailer.sent[0].Attempts)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	w := NewNotificationWorker(notify.NewMemoryQueue(), &stubMailer{}, nil, 10*time.Millisecond, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

type gateFunc func(context.Context, notify.Notification) (bool, error)

func (f gateFunc) Deliverable(ctx context.Context, n notify.Notification) (bool, error) {
	return f(ctx, n)
}

func (m *stubMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, n := range m.sent {
		out[i] = n.Subject
	}
	return out
}

func TestGateDropsStaleNotifications(t *testing.T) {
	q := notify.NewMemoryQueue()
	mailer := &stubMailer{}
	gate := gateFunc(func(_ context.Context, n notify.Notification) (bool, error) {
		return n.Subject != "stale", nil
	})
	w := NewNotificationWorker(q, mailer, gate, time.Second, 3)
	ctx := context.Background()

	_ = q.Notify(ctx, notify.Notification{To: "a@example.com", Subject: "stale"})
	_ = q.Notify(ctx, notify.Notification{To: "a@example.com", Subject: "fresh"})

	if got := w.RunOnce(ctx); got != 1 {
		t.Fatalf("delivered = %d, want 1", got)
	}
	if got := mailer.subjects(); len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("sent = %v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("stale notification re-queued, pending = %d", q.Len())
	}
}

func TestGateErrorIsRetried(t *testing.T) {
	q := notify.NewMemoryQueue()
	mailer := &stubMailer{}
	calls := 0
	gate := gateFunc(func(context.Context, notify.Notification) (bool, error) {
		calls++
		if calls == 1 {
			return false, errors.New("store unavailable")
		}
		return true, nil
	})
	w := NewNotificationWorker(q, mailer, gate, time.Second, 3)
	clock := time.Now()
	w.now = func() time.Time { return clock }
	ctx := context.Background()

	_ = q.Notify(ctx, notify.Notification{To: "a@example.com", DeliverAt: clock})
	if got := w.RunOnce(ctx); got != 0 || q.Len() != 1 {
		t.Fatalf("first run delivered %d, pending %d", got, q.Len())
	}
	clock = clock.Add(time.Minute)
	if got := w.RunOnce(ctx); got != 1 {
		t.Fatalf("retry delivered %d, want 1", got)
	}
}

func TestCancelledBookingSendsNoReminder(t *testing.T) {
	store := repository.NewMemoryStore()
	users := store.Users()
	ctx := context.Background()

	doctor := &model.User{Username: "doctor", Email: "doctor@example.com", PhoneNumber: "+15550001", Role: model.RoleDoctor, Active: true}
	patient := &model.User{Username: "patient", Email: "patient@example.com", PhoneNumber: "+15550002", Role: model.RoleUser, Active: true}
	for _, u := range []*model.User{doctor, patient} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("Create(%s): %v", u.Username, err)
		}
	}
	doctorClaims := &security.Claims{UserID: doctor.ID, Username: doctor.Username, Role: doctor.Role}
	patientClaims := &security.Claims{UserID: patient.ID, Username: patient.Username, Role: patient.Role}

	q := notify.NewMemoryQueue()
	slots := service.NewSlotService(store.Slots(), users, q, time.Hour)
	slot, err := slots.CreateSlot(ctx, doctorClaims, service.CreateSlotRequest{ReservationTime: time.Now().Add(48 * time.Hour)})
	if err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	if _, err := slots.BookSlot(ctx, patientClaims, slot.ID, service.BookSlotRequest{}); err != nil {
		t.Fatalf("BookSlot: %v", err)
	}
	if _, err := slots.CancelSlot(ctx, doctorClaims, slot.ID); err != nil {
		t.Fatalf("CancelSlot: %v", err)
	}

	mailer := &stubMailer{}
	w := NewNotificationWorker(q, mailer, slots, time.Second, 3)
	w.now = func() time.Time { return time.Now().Add(72 * time.Hour) }
	w.RunOnce(ctx)

	for _, subject := range mailer.subjects() {
		if subject == "Appointment reminder" {
			t.Fatalf("reminder delivered for cancelled booking: %v", mailer.subjects())
		}
	}
	if got := len(mailer.subjects()); got != 3 {
		t.Fatalf("sent = %v, want booking, confirmation and cancellation", mailer.subjects())
	}
	if q.Len() != 0 {
		t.Fatalf("pending = %d, want 0", q.Len())
	}
}
