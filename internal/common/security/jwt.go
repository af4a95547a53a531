package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"reservation_app/internal/common"
	"reservation_app/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed lifetime of an access token. There is no refresh;
// an expired token forces a new login.
const TokenTTL = 20 * time.Minute

// Claims is the verified identity carried by an access token.
type Claims struct {
	UserID    int64
	Username  string
	Role      model.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenService struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
	now  func() time.Time
}

func NewTokenService(secret []byte) *TokenService {
	return &TokenService{
		auth: jwtauth.New("HS256", secret, nil),
		ttl:  TokenTTL,
		now:  time.Now,
	}
}

// WithClock returns a copy of s that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	c := *s
	c.now = now
	return &c
}

func (s *TokenService) Issue(user *model.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(user.ID, 10),
		"username": user.Username,
		"role":     string(user.Role),
		"iat":      now.Unix(),
		"exp":      now.Add(s.ttl).Unix(),
	}
	_, tokenString, err := s.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Validate verifies signature and expiry and decodes the identity claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("empty token: %w", common.ErrInvalidToken)
	}

	token, err := jwtauth.VerifyToken(s.auth, tokenString)
	if err != nil {
		if errors.Is(err, jwtauth.ErrExpired) {
			return nil, common.ErrExpiredToken
		}
		return nil, fmt.Errorf("%v: %w", err, common.ErrInvalidToken)
	}

	userID, err := strconv.ParseInt(token.Subject(), 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("sub claim is missing or malformed: %w", common.ErrInvalidToken)
	}
	username, ok := stringClaim(token.Get("username"))
	if !ok || username == "" {
		return nil, fmt.Errorf("username claim is missing: %w", common.ErrInvalidToken)
	}
	role, _ := stringClaim(token.Get("role"))
	if !model.Role(role).Valid() {
		return nil, fmt.Errorf("role claim is missing or unknown: %w", common.ErrInvalidToken)
	}

	exp := token.Expiration()
	if exp.IsZero() {
		return nil, fmt.Errorf("exp claim is missing: %w", common.ErrInvalidToken)
	}
	if s.now().After(exp) {
		return nil, common.ErrExpiredToken
	}

	return &Claims{
		UserID:    userID,
		Username:  username,
		Role:      model.Role(role),
		IssuedAt:  token.IssuedAt(),
		ExpiresAt: exp,
	}, nil
}

func stringClaim(v interface{}, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
