package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"reservation_app/internal/common"
	"reservation_app/internal/domain/model"
	"reservation_app/internal/domain/repository"

	"github.com/gosimple/slug"
)

// DoctorService serves the public doctor directory. Doctors are addressed by
// a handle such as "dr-jane-doe-7" whose numeric suffix is the identity id.
type DoctorService struct {
	userRepo    repository.UserRepository
	slotService *SlotService
}

func NewDoctorService(userRepo repository.UserRepository, slotService *SlotService) *DoctorService {
	return &DoctorService{userRepo: userRepo, slotService: slotService}
}

func DoctorSlug(u *model.User) string {
	return slug.Make(fmt.Sprintf("dr %s %s %d", u.FirstName, u.LastName, u.ID))
}

// ParseDoctorSlug extracts the identity id from a directory handle.
func ParseDoctorSlug(handle string) (int64, error) {
	i := strings.LastIndexByte(handle, '-')
	id, err := strconv.ParseInt(handle[i+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("doctor %q: %w", handle, common.ErrNotFound)
	}
	return id, nil
}

func (s *DoctorService) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	users, err := s.userRepo.ListByRole(ctx, model.RoleDoctor)
	if err != nil {
		return nil, err
	}
	doctors := make([]model.Doctor, 0, len(users))
	for i := range users {
		doctors = append(doctors, model.Doctor{
			ID:        users[i].ID,
			Slug:      DoctorSlug(&users[i]),
			FirstName: users[i].FirstName,
			LastName:  users[i].LastName,
		})
	}
	return doctors, nil
}

// ListDoctorSlots returns the bookable slots of the doctor behind handle.
// Only the id suffix is authoritative, so handles survive name changes.
func (s *DoctorService) ListDoctorSlots(ctx context.Context, handle string) ([]model.Slot, error) {
	id, err := ParseDoctorSlug(handle)
	if err != nil {
		return nil, err
	}
	doctor, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doctor.Active || !doctor.Role.CanOwnSlots() {
		return nil, fmt.Errorf("doctor %q: %w", handle, common.ErrNotFound)
	}
	return s.slotService.ListByDoctor(ctx, doctor.ID)
}
