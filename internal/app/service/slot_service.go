package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"reservation_app/internal/app/notify"
	"reservation_app/internal/common"
	"reservation_app/internal/common/security"
	"reservation_app/internal/domain/model"
	"reservation_app/internal/domain/repository"
)

// SlotService orchestrates the slot lifecycle: every operation runs the
// authorization guard first, then a single registry call, and only then
// queues notifications.
type SlotService struct {
	slotRepo     repository.SlotRepository
	userRepo     repository.UserRepository
	notifier     notify.Notifier
	reminderLead time.Duration
	now          func() time.Time
}

func NewSlotService(
	slotRepo repository.SlotRepository,
	userRepo repository.UserRepository,
	notifier notify.Notifier,
	reminderLead time.Duration,
) *SlotService {
	return &SlotService{
		slotRepo:     slotRepo,
		userRepo:     userRepo,
		notifier:     notifier,
		reminderLead: reminderLead,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type CreateSlotRequest struct {
	ReservationTime time.Time `json:"reservation_time"`
	Description     string    `json:"description"`
	DoctorID        *int64    `json:"doctor_id,omitempty"` // admins only
}

type BookSlotRequest struct {
	PatientID *int64 `json:"patient_id,omitempty"` // admins only
}

func (s *SlotService) CreateSlot(ctx context.Context, claims *security.Claims, req CreateSlotRequest) (*model.Slot, error) {
	if err := security.Require(claims, model.RoleDoctor, model.RoleAdmin); err != nil {
		return nil, err
	}

	ownerID := claims.UserID
	if req.DoctorID != nil && *req.DoctorID != claims.UserID {
		if claims.Role != model.RoleAdmin {
			return nil, fmt.Errorf("only admins create slots for other doctors: %w", common.ErrForbidden)
		}
		ownerID = *req.DoctorID
	}

	owner, err := s.userRepo.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, validationError("doctor %d does not exist", ownerID)
		}
		return nil, err
	}
	if !owner.Active || !owner.Role.CanOwnSlots() {
		return nil, validationError("user %d cannot own slots", ownerID)
	}

	now := s.now()
	if req.ReservationTime.IsZero() || !req.ReservationTime.After(now) {
		return nil, validationError("reservation time must be in the future")
	}
	description := strings.TrimSpace(req.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return nil, validationError("description must be at most %d characters", maxDescriptionLen)
	}

	slot := &model.Slot{
		DoctorID:        ownerID,
		ReservationTime: req.ReservationTime.UTC(),
		Description:     description,
		Status:          model.SlotAvailable,
	}
	if err := s.slotRepo.Create(ctx, slot); err != nil {
		return nil, fmt.Errorf("failed to create slot: %w", err)
	}
	log.Printf("INFO: Slot %d created for doctor %d at %s", slot.ID, slot.DoctorID, slot.ReservationTime.Format(time.RFC3339))
	return slot, nil
}

// BookSlot moves an available slot to booked for the caller, or for
// req.PatientID when the caller is an admin. Concurrent attempts on the same
// slot yield exactly one success; the others get ErrSlotUnavailable.
func (s *SlotService) BookSlot(ctx context.Context, claims *security.Claims, slotID int64, req BookSlotRequest) (*model.Slot, error) {
	if err := security.Require(claims, model.RoleUser, model.RoleAdmin); err != nil {
		return nil, err
	}

	patientID := claims.UserID
	onBehalf := req.PatientID != nil && *req.PatientID != claims.UserID
	if onBehalf {
		if claims.Role != model.RoleAdmin {
			return nil, fmt.Errorf("only admins book for other users: %w", common.ErrForbidden)
		}
		patientID = *req.PatientID
	}

	patient, err := s.userRepo.FindByID(ctx, patientID)
	if err != nil {
		if onBehalf && errors.Is(err, common.ErrNotFound) {
			return nil, validationError("patient %d does not exist", patientID)
		}
		return nil, err
	}
	if onBehalf && (!patient.Active || patient.Role != model.RoleUser) {
		return nil, validationError("user %d cannot book slots", patientID)
	}
	if !patient.Active {
		return nil, fmt.Errorf("account %d is blocked: %w", patientID, common.ErrForbidden)
	}

	current, err := s.slotRepo.FindByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if current.CanBook() && !current.ReservationTime.After(now) {
		return nil, validationError("slot %d is in the past", slotID)
	}

	booked, err := s.slotRepo.Book(ctx, slotID, patientID, now)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Slot %d booked by user %d", booked.ID, patientID)

	s.notifyBooked(ctx, booked, patient)
	return booked, nil
}

// CancelSlot moves an available or booked slot to cancelled. Doctors may only
// cancel their own slots.
func (s *SlotService) CancelSlot(ctx context.Context, claims *security.Claims, slotID int64) (*model.Slot, error) {
	if err := security.Require(claims, model.RoleDoctor, model.RoleAdmin); err != nil {
		return nil, err
	}

	current, err := s.slotRepo.FindByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if claims.Role == model.RoleDoctor && current.DoctorID != claims.UserID {
		return nil, fmt.Errorf("slot %d belongs to another doctor: %w", slotID, common.ErrForbidden)
	}

	cancelled, err := s.slotRepo.Cancel(ctx, slotID, s.now())
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Slot %d cancelled by user %d", cancelled.ID, claims.UserID)

	if cancelled.UserID != nil {
		s.notifyCancelled(ctx, cancelled)
	}
	return cancelled, nil
}

// ListAvailable returns every bookable slot ordered by reservation time.
func (s *SlotService) ListAvailable(ctx context.Context) ([]model.Slot, error) {
	return s.slotRepo.ListByStatus(ctx, model.SlotAvailable)
}

// ListByDoctor is the public schedule of a doctor: available slots only.
func (s *SlotService) ListByDoctor(ctx context.Context, doctorID int64) ([]model.Slot, error) {
	return s.slotRepo.List(ctx, model.SlotFilter{Status: model.SlotAvailable, DoctorID: doctorID})
}

// GetSlot is a public read; the booking patient is not disclosed.
func (s *SlotService) GetSlot(ctx context.Context, slotID int64) (*model.Slot, error) {
	slot, err := s.slotRepo.FindByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	slot.UserID = nil
	return slot, nil
}

// ListMySlots returns the owned schedule for doctors and the booked slots
// for everyone else.
func (s *SlotService) ListMySlots(ctx context.Context, claims *security.Claims) ([]model.Slot, error) {
	if err := security.Require(claims, model.RoleUser, model.RoleDoctor, model.RoleAdmin); err != nil {
		return nil, err
	}
	if claims.Role == model.RoleDoctor {
		return s.slotRepo.ListByDoctor(ctx, claims.UserID)
	}
	return s.slotRepo.ListByPatient(ctx, claims.UserID)
}

func (s *SlotService) ListAllSlots(ctx context.Context, claims *security.Claims, filter model.SlotFilter) ([]model.Slot, error) {
	if err := security.Require(claims, model.RoleAdmin); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validationError("unknown slot status %q", filter.Status)
	}
	return s.slotRepo.List(ctx, filter)
}

func (s *SlotService) DeleteSlot(ctx context.Context, claims *security.Claims, slotID int64) error {
	if err := security.Require(claims, model.RoleAdmin); err != nil {
		return err
	}
	if err := s.slotRepo.Delete(ctx, slotID); err != nil {
		return err
	}
	log.Printf("INFO: Admin %d deleted slot %d", claims.UserID, slotID)
	return nil
}

// Deliverable implements notify.Gate. A reminder is only sent while its slot
// is still booked by the reminded patient; cancelled or deleted slots drop it.
func (s *SlotService) Deliverable(ctx context.Context, n notify.Notification) (bool, error) {
	if n.Kind != notify.KindReminder {
		return true, nil
	}
	slot, err := s.slotRepo.FindByID(ctx, n.SlotID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return slot.Status == model.SlotBooked && slot.UserID != nil && *slot.UserID == n.UserID, nil
}

func (s *SlotService) notifyBooked(ctx context.Context, slot *model.Slot, patient *model.User) {
	when := slot.ReservationTime.Format(time.RFC1123)

	doctor, err := s.userRepo.FindByID(ctx, slot.DoctorID)
	if err != nil {
		log.Printf("WARN: Could not load doctor %d for slot %d notification: %v", slot.DoctorID, slot.ID, err)
	} else {
		send(ctx, s.notifier, notify.Notification{
			To:       doctor.Email,
			Username: doctor.Username,
			Subject:  "New appointment booked",
			Body:     fmt.Sprintf("%s booked your slot on %s.", patient.FullName(), when),
		})
	}

	send(ctx, s.notifier, notify.Notification{
		To:       patient.Email,
		Username: patient.Username,
		Subject:  "Appointment confirmed",
		Body:     fmt.Sprintf("Your appointment on %s is confirmed.", when),
	})

	remindAt := slot.ReservationTime.Add(-s.reminderLead)
	if s.reminderLead > 0 && remindAt.After(s.now()) {
		send(ctx, s.notifier, notify.Notification{
			Kind:      notify.KindReminder,
			To:        patient.Email,
			Username:  patient.Username,
			SlotID:    slot.ID,
			UserID:    patient.ID,
			Subject:   "Appointment reminder",
			Body:      fmt.Sprintf("Reminder: your appointment starts on %s.", when),
			DeliverAt: remindAt,
		})
	}
}

func (s *SlotService) notifyCancelled(ctx context.Context, slot *model.Slot) {
	patient, err := s.userRepo.FindByID(ctx, *slot.UserID)
	if err != nil {
		log.Printf("WARN: Could not load patient %d for slot %d notification: %v", *slot.UserID, slot.ID, err)
		return
	}
	send(ctx, s.notifier, notify.Notification{
		To:       patient.Email,
		Username: patient.Username,
		Subject:  "Appointment cancelled",
		Body:     fmt.Sprintf("Your appointment on %s was cancelled.", slot.ReservationTime.Format(time.RFC1123)),
	})
}
