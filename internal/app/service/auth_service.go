package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"reservation_app/internal/app/notify"
	"reservation_app/internal/common"
	"reservation_app/internal/common/security"
	"reservation_app/internal/domain/model"
	"reservation_app/internal/domain/repository"
)

const verificationCodeDigits = 6

type AuthService struct {
	userRepo repository.UserRepository
	hasher   security.PasswordHasher
	tokens   *security.TokenService
	codes    repository.CodeStore
	notifier notify.Notifier
	codeTTL  time.Duration

	newCode func() (string, error)

	decoyOnce sync.Once
	decoy     string
}

func NewAuthService(
	userRepo repository.UserRepository,
	hasher security.PasswordHasher,
	tokens *security.TokenService,
	codes repository.CodeStore,
	notifier notify.Notifier,
	codeTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		codes:    codes,
		notifier: notifier,
		codeTTL:  codeTTL,
		newCode:  randomCode,
	}
}

type SignupRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

type LoginRequest struct {
	Login    string `json:"login"` // username or email
	Password string `json:"password"`
}

type AuthResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
}

func (s *AuthService) Register(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)

	if err := validateUsername(req.Username); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := validateName("first name", req.FirstName); err != nil {
		return nil, err
	}
	if err := validateName("last name", req.LastName); err != nil {
		return nil, err
	}
	if err := validatePhone(req.PhoneNumber); err != nil {
		return nil, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	field, err := s.userRepo.FindConflict(ctx, req.Username, email, req.PhoneNumber, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check identity uniqueness: %w", err)
	}
	if field != "" {
		return nil, fmt.Errorf("%s already taken: %w", field, common.ErrDuplicateIdentity)
	}

	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:       req.Username,
		Email:          email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		PhoneNumber:    req.PhoneNumber,
		HashedPassword: hashedPassword,
		Role:           model.RoleUser,
		Active:         true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	log.Printf("INFO: Registered user %d (%s)", user.ID, user.Username)

	return s.respond(user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	login := strings.TrimSpace(req.Login)
	if login == "" || req.Password == "" {
		return nil, fmt.Errorf("login and password are required: %w", common.ErrBadRequest)
	}

	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(login))
	if errors.Is(err, common.ErrNotFound) {
		user, err = s.userRepo.FindByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.Verify(req.Password, s.decoyHash())
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(req.Password, user.HashedPassword) {
		return nil, common.ErrInvalidCredentials
	}
	if !user.Active {
		log.Printf("WARN: Blocked user %d attempted to log in", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	return s.respond(user)
}

// decoyHash is compared against on unknown logins so they cost as much as a
// wrong password.
func (s *AuthService) decoyHash() string {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash("decoy-" + strconv.FormatInt(time.Now().UnixNano(), 36))
		if err != nil {
			log.Printf("WARN: Failed to prepare decoy password hash: %v", err)
			return
		}
		s.decoy = hash
	})
	return s.decoy
}

func (s *AuthService) respond(user *model.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{User: user, Token: token, TokenType: "Bearer"}, nil
}

// RequestEmailVerification mails a fresh single-use code to the caller's
// current address. A new request replaces any pending code.
func (s *AuthService) RequestEmailVerification(ctx context.Context, claims *security.Claims) error {
	if err := security.Require(claims, model.RoleUser, model.RoleDoctor, model.RoleAdmin); err != nil {
		return err
	}
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return validationError("email %s is already verified", user.Email)
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}
	if err := s.codes.Put(ctx, verificationKey(user), code, s.codeTTL); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	send(ctx, s.notifier, notify.Notification{
		To:       user.Email,
		Username: user.Username,
		Subject:  "Confirm your email address",
		Body: fmt.Sprintf("Hello %s,\n\nyour verification code is %s. It expires in %d minutes.",
			user.FirstName, code, int(s.codeTTL.Minutes())),
	})
	return nil
}

func (s *AuthService) ConfirmEmailVerification(ctx context.Context, claims *security.Claims, code string) (*model.User, error) {
	if err := security.Require(claims, model.RoleUser, model.RoleDoctor, model.RoleAdmin); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if len(code) != verificationCodeDigits {
		return nil, validationError("verification code must have %d digits", verificationCodeDigits)
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	ok, err := s.codes.Consume(ctx, verificationKey(user), code)
	if err != nil {
		return nil, fmt.Errorf("failed to check verification code: %w", err)
	}
	if !ok {
		return nil, validationError("verification code is invalid or expired")
	}

	verified, err := s.userRepo.MarkEmailVerified(ctx, user.ID, user.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, validationError("email changed while verifying, request a new code")
		}
		return nil, fmt.Errorf("failed to mark email verified: %w", err)
	}
	return verified, nil
}

// verificationKey binds a code to the address it was sent to, so changing the
// email invalidates pending codes.
func verificationKey(user *model.User) string {
	return strconv.FormatInt(user.ID, 10) + ":" + user.Email
}

func randomCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < verificationCodeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", verificationCodeDigits, n.Int64()), nil
}

// send hands n to the notifier. Delivery is best effort; failures are logged.
func send(ctx context.Context, notifier notify.Notifier, n notify.Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil {
		log.Printf("WARN: Failed to queue notification %q to %s: %v", n.Subject, n.To, err)
	}
}
