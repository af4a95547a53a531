package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"reservation_app/internal/common"
	"reservation_app/internal/domain/model"
)

// MemoryStore is an in-memory adapter for the user and slot repositories.
// It is intended for tests and local development (STORE_DRIVER=memory) and
// enforces the same uniqueness, foreign key and transition rules as the
// Postgres schema.
type MemoryStore struct {
	mu sync.RWMutex

	users map[int64]model.User
	slots map[int64]model.Slot

	nextUserID int64
	nextSlotID int64
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]model.User),
		slots: make(map[int64]model.Slot),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

func (s *MemoryStore) Slots() SlotRepository { return memorySlots{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *model.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if field := s.conflictLocked(user.Username, user.Email, user.PhoneNumber, 0); field != "" {
		return fmt.Errorf("%s already taken: %w", field, common.ErrDuplicateIdentity)
	}
	s.nextUserID++
	now := s.now()
	user.ID = s.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (r memoryUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return u.Email == email })
}

func (r memoryUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return u.Username == username })
}

func (r memoryUsers) findBy(match func(*model.User) bool) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if match(&u) {
			return &u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memoryUsers) FindConflict(_ context.Context, username, email, phone string, excludeID int64) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.conflictLocked(username, email, phone, excludeID), nil
}

func (s *MemoryStore) conflictLocked(username, email, phone string, excludeID int64) string {
	for _, u := range s.users {
		if u.ID == excludeID {
			continue
		}
		if field := conflictField(username, email, phone, u.Username, u.Email, u.PhoneNumber); field != "" {
			return field
		}
	}
	return ""
}

func (r memoryUsers) Search(_ context.Context, term string) ([]model.User, error) {
	needle := strings.ToLower(term)
	return r.filter(func(u *model.User) bool {
		for _, field := range []string{u.Username, u.Email, u.FirstName, u.LastName} {
			if strings.Contains(strings.ToLower(field), needle) {
				return true
			}
		}
		return false
	}, byID), nil
}

func (r memoryUsers) List(_ context.Context) ([]model.User, error) {
	return r.filter(func(*model.User) bool { return true }, byID), nil
}

func (r memoryUsers) ListByRole(_ context.Context, role model.Role) ([]model.User, error) {
	return r.filter(func(u *model.User) bool { return u.Role == role && u.Active }, func(a, b *model.User) bool {
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	}), nil
}

func byID(a, b *model.User) bool { return a.ID < b.ID }

func (r memoryUsers) filter(match func(*model.User) bool, less func(a, b *model.User) bool) []model.User {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.User{}
	for _, u := range r.s.users {
		if match(&u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}

func (r memoryUsers) UpdateProfile(_ context.Context, id int64, upd model.ProfileUpdate) (*model.User, error) {
	return r.mutate(id, func(u *model.User) error {
		next := *u
		setIf(&next.FirstName, upd.FirstName)
		setIf(&next.LastName, upd.LastName)
		setIf(&next.Username, upd.Username)
		setIf(&next.PhoneNumber, upd.PhoneNumber)
		if upd.Email != nil && *upd.Email != next.Email {
			next.Email = *upd.Email
			next.EmailVerified = false
		}
		if field := r.s.conflictLocked(next.Username, next.Email, next.PhoneNumber, id); field != "" {
			return fmt.Errorf("%s already taken: %w", field, common.ErrDuplicateIdentity)
		}
		*u = next
		return nil
	})
}

func (r memoryUsers) SetRole(_ context.Context, id int64, role model.Role) (*model.User, error) {
	return r.mutate(id, func(u *model.User) error {
		u.Role = role
		return nil
	})
}

func (r memoryUsers) SetActive(_ context.Context, id int64, active bool) (*model.User, error) {
	return r.mutate(id, func(u *model.User) error {
		u.Active = active
		return nil
	})
}

func (r memoryUsers) SetPassword(_ context.Context, id int64, hashedPassword string) error {
	_, err := r.mutate(id, func(u *model.User) error {
		u.HashedPassword = hashedPassword
		return nil
	})
	return err
}

func (r memoryUsers) MarkEmailVerified(_ context.Context, id int64, email string) (*model.User, error) {
	return r.mutate(id, func(u *model.User) error {
		if u.Email != email {
			return common.ErrNotFound
		}
		u.EmailVerified = true
		return nil
	})
}

// mutate applies change to the stored user under the write lock. The stored
// record is left untouched when change fails.
func (r memoryUsers) mutate(id int64, change func(*model.User) error) (*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if err := change(&u); err != nil {
		return nil, err
	}
	u.UpdatedAt = s.now()
	s.users[id] = u
	return &u, nil
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (r memoryUsers) Delete(_ context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return common.ErrNotFound
	}
	for _, slot := range s.slots {
		if slot.DoctorID == id || (slot.UserID != nil && *slot.UserID == id) {
			return fmt.Errorf("user %d is referenced by slot %d: %w", id, slot.ID, common.ErrConflict)
		}
	}
	delete(s.users, id)
	return nil
}

type memorySlots struct{ s *MemoryStore }

func (r memorySlots) Create(_ context.Context, slot *model.Slot) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[slot.DoctorID]; !ok {
		return fmt.Errorf("doctor %d does not exist: %w", slot.DoctorID, common.ErrConflict)
	}
	s.nextSlotID++
	now := s.now()
	slot.ID = s.nextSlotID
	slot.Status = model.SlotAvailable
	slot.UserID = nil
	slot.ReservationTime = slot.ReservationTime.UTC()
	slot.CreatedAt = now
	slot.UpdatedAt = now
	s.slots[slot.ID] = *slot
	return nil
}

func (r memorySlots) FindByID(_ context.Context, id int64) (*model.Slot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	slot, ok := r.s.slots[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copySlot(slot), nil
}

func (r memorySlots) Book(_ context.Context, id, patientID int64, at time.Time) (*model.Slot, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if !slot.CanBook() {
		return nil, rejectedTransition(&slot, "book")
	}
	if _, ok := s.users[patientID]; !ok {
		return nil, fmt.Errorf("patient %d does not exist: %w", patientID, common.ErrConflict)
	}
	slot.Status = model.SlotBooked
	slot.UserID = &patientID
	slot.UpdatedAt = at
	s.slots[id] = slot
	return copySlot(slot), nil
}

func (r memorySlots) Cancel(_ context.Context, id int64, at time.Time) (*model.Slot, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if !slot.CanCancel() {
		return nil, rejectedTransition(&slot, "cancel")
	}
	slot.Status = model.SlotCancelled
	slot.UpdatedAt = at
	s.slots[id] = slot
	return copySlot(slot), nil
}

func (r memorySlots) ListByStatus(ctx context.Context, status model.SlotStatus) ([]model.Slot, error) {
	return r.List(ctx, model.SlotFilter{Status: status})
}

func (r memorySlots) ListByDoctor(ctx context.Context, doctorID int64) ([]model.Slot, error) {
	return r.List(ctx, model.SlotFilter{DoctorID: doctorID})
}

func (r memorySlots) ListByPatient(ctx context.Context, patientID int64) ([]model.Slot, error) {
	return r.List(ctx, model.SlotFilter{UserID: patientID})
}

func (r memorySlots) List(_ context.Context, filter model.SlotFilter) ([]model.Slot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []model.Slot{}
	for _, slot := range r.s.slots {
		if filter.Match(&slot) {
			out = append(out, *copySlot(slot))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReservationTime.Equal(out[j].ReservationTime) {
			return out[i].ReservationTime.Before(out[j].ReservationTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memorySlots) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.slots[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.slots, id)
	return nil
}

// copySlot detaches the user id pointer from the stored value.
func copySlot(slot model.Slot) *model.Slot {
	if slot.UserID != nil {
		uid := *slot.UserID
		slot.UserID = &uid
	}
	return &slot
}
