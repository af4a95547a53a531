package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"reservation_app/internal/common"
	"reservation_app/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

var testSecret = []byte("test-secret")

func testUser() *model.User {
	return &model.User{ID: 42, Username: "jdoe", Role: model.RoleDoctor}
}

func TestIssueValidateRoundTrip(t *testing.T) {
	svc := NewTokenService(testSecret)

	token, err := svc.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "jdoe" || claims.Role != model.RoleDoctor {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != TokenTTL {
		t.Fatalf("lifetime = %s, want %s", got, TokenTTL)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	issuedLongAgo := NewTokenService(testSecret).WithClock(func() time.Time {
		return time.Now().Add(-30 * time.Minute)
	})
	token, err := issuedLongAgo.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = NewTokenService(testSecret).Validate(token)
	if !errors.Is(err, common.ErrExpiredToken) {
		t.Fatalf("err = %v, want ErrExpiredToken", err)
	}
}

func TestValidateExpiresAfterTTL(t *testing.T) {
	svc := NewTokenService(testSecret)
	token, err := svc.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	later := svc.WithClock(func() time.Time { return time.Now().Add(TokenTTL + time.Minute) })
	if _, err := later.Validate(token); !errors.Is(err, common.ErrExpiredToken) {
		t.Fatalf("err = %v, want ErrExpiredToken", err)
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	token, err := NewTokenService([]byte("other-secret")).Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := NewTokenService(testSecret).Validate(token); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsMalformedTokens(t *testing.T) {
	svc := NewTokenService(testSecret)
	good, err := svc.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	for name, token := range map[string]string{
		"empty":    "",
		"garbage":  "not-a-jwt",
		"tampered": tampered,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Validate(token); !errors.Is(err, common.ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestValidateRequiresIdentityClaims(t *testing.T) {
	ja := jwtauth.New("HS256", testSecret, nil)
	exp := time.Now().Add(time.Minute).Unix()

	cases := map[string]map[string]interface{}{
		"missing sub":      {"username": "jdoe", "role": "user", "exp": exp},
		"non numeric sub":  {"sub": "abc", "username": "jdoe", "role": "user", "exp": exp},
		"missing username": {"sub": "1", "role": "user", "exp": exp},
		"missing role":     {"sub": "1", "username": "jdoe", "exp": exp},
		"unknown role":     {"sub": "1", "username": "jdoe", "role": "root", "exp": exp},
		"missing exp":      {"sub": "1", "username": "jdoe", "role": "user"},
	}
	svc := NewTokenService(testSecret)
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			_, token, err := ja.Encode(claims)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if _, err := svc.Validate(token); !errors.Is(err, common.ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}
