package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"reservation_app/internal/common"
	"reservation_app/internal/common/security"
	"reservation_app/internal/domain/model"
	"reservation_app/internal/domain/repository"
)

type UserService struct {
	userRepo repository.UserRepository
	hasher   security.PasswordHasher
}

func NewUserService(userRepo repository.UserRepository, hasher security.PasswordHasher) *UserService {
	return &UserService{userRepo: userRepo, hasher: hasher}
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *UserService) GetMe(ctx context.Context, claims *security.Claims) (*model.User, error) {
	if err := security.Require(claims, model.RoleUser, model.RoleDoctor, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.FindByID(ctx, claims.UserID)
}

func (s *UserService) GetUser(ctx context.Context, claims *security.Claims, id int64) (*model.User, error) {
	if err := security.RequireSelfOr(claims, id, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.FindByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context, claims *security.Claims) ([]model.User, error) {
	if err := security.Require(claims, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.List(ctx)
}

// SearchUsers matches term case-insensitively against username, email and
// names. An empty result is reported as ErrNotFound.
func (s *UserService) SearchUsers(ctx context.Context, claims *security.Claims, term string) ([]model.User, error) {
	if err := security.Require(claims, model.RoleAdmin); err != nil {
		return nil, err
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, validationError("search term is required")
	}
	users, err := s.userRepo.Search(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("no users match %q: %w", term, common.ErrNotFound)
	}
	return users, nil
}

// UpdateProfile applies the present fields of upd to the target identity.
// Only profile columns are written. Changing the email clears the verified
// flag.
func (s *UserService) UpdateProfile(ctx context.Context, claims *security.Claims, targetID int64, upd model.ProfileUpdate) (*model.User, error) {
	if err := security.RequireSelfOr(claims, targetID, model.RoleAdmin); err != nil {
		return nil, err
	}
	if upd.Empty() {
		return nil, validationError("no profile fields to update")
	}

	clean, err := normalizeProfile(upd)
	if err != nil {
		return nil, err
	}

	field, err := s.userRepo.FindConflict(ctx, deref(clean.Username), deref(clean.Email), deref(clean.PhoneNumber), targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to check identity uniqueness: %w", err)
	}
	if field != "" {
		return nil, fmt.Errorf("%s already taken: %w", field, common.ErrDuplicateIdentity)
	}

	user, err := s.userRepo.UpdateProfile(ctx, targetID, clean)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

func normalizeProfile(upd model.ProfileUpdate) (model.ProfileUpdate, error) {
	var clean model.ProfileUpdate
	if upd.FirstName != nil {
		name := strings.TrimSpace(*upd.FirstName)
		if err := validateName("first name", name); err != nil {
			return clean, err
		}
		clean.FirstName = &name
	}
	if upd.LastName != nil {
		name := strings.TrimSpace(*upd.LastName)
		if err := validateName("last name", name); err != nil {
			return clean, err
		}
		clean.LastName = &name
	}
	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if err := validateUsername(username); err != nil {
			return clean, err
		}
		clean.Username = &username
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return clean, err
		}
		clean.Email = &email
	}
	if upd.PhoneNumber != nil {
		phone := strings.TrimSpace(*upd.PhoneNumber)
		if err := validatePhone(phone); err != nil {
			return clean, err
		}
		clean.PhoneNumber = &phone
	}
	return clean, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *UserService) ChangePassword(ctx context.Context, claims *security.Claims, req ChangePasswordRequest) error {
	if err := security.Require(claims, model.RoleUser, model.RoleDoctor, model.RoleAdmin); err != nil {
		return err
	}
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(req.CurrentPassword, user.HashedPassword) {
		return fmt.Errorf("current password does not match: %w", common.ErrInvalidCredentials)
	}
	if req.NewPassword == req.CurrentPassword {
		return common.ErrSameSecret
	}
	if err := ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	hashed, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.SetPassword(ctx, user.ID, hashed); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}
	log.Printf("INFO: User %d changed their password", user.ID)
	return nil
}

// UpdateRole assigns role to the target identity. Admins cannot demote
// themselves.
func (s *UserService) UpdateRole(ctx context.Context, claims *security.Claims, targetID int64, role model.Role) (*model.User, error) {
	if err := security.Require(claims, model.RoleAdmin); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, validationError("unknown role %q", role)
	}
	if targetID == claims.UserID && role != model.RoleAdmin {
		return nil, validationError("admins cannot demote themselves")
	}
	user, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	previous := user.Role
	user, err = s.userRepo.SetRole(ctx, targetID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	log.Printf("INFO: Admin %d changed role of user %d from %s to %s", claims.UserID, user.ID, previous, role)
	return user, nil
}

// SetActive blocks or unblocks an identity. Blocked identities cannot log
// in; tokens already issued stay valid until they expire.
func (s *UserService) SetActive(ctx context.Context, claims *security.Claims, targetID int64, active bool) (*model.User, error) {
	if err := security.Require(claims, model.RoleAdmin); err != nil {
		return nil, err
	}
	if targetID == claims.UserID && !active {
		return nil, validationError("admins cannot block themselves")
	}
	user, err := s.userRepo.SetActive(ctx, targetID, active)
	if err != nil {
		return nil, fmt.Errorf("failed to update active flag: %w", err)
	}
	log.Printf("INFO: Admin %d set active=%t for user %d", claims.UserID, active, user.ID)
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, claims *security.Claims, targetID int64) error {
	if err := security.Require(claims, model.RoleAdmin); err != nil {
		return err
	}
	if targetID == claims.UserID {
		return validationError("admins cannot delete themselves")
	}
	if err := s.userRepo.Delete(ctx, targetID); err != nil {
		return err
	}
	log.Printf("INFO: Admin %d deleted user %d", claims.UserID, targetID)
	return nil
}
