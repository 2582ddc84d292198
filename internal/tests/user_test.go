package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"carpool/internal/auth"
	"carpool/internal/domain"
	"carpool/internal/repository/memory"
	"carpool/internal/service"
)

func newUserService() *service.UserService {
	return service.NewUserService(memory.NewUserRepository(), MockHasher{}, &MockTokenIssuer{})
}

// ──────────────────────────────────────────────
// 1. REGISTRATION
// ──────────────────────────────────────────────

func TestRegister_HashesAndDefaultsType(t *testing.T) {
	t.Parallel()
	users := newUserService()

	user, err := users.Register(context.Background(), service.RegisterRequest{
		Name: "  Ana Reyes ", Email: "Ana@Example.com", Password: "secret1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.Email != "ana@example.com" {
		t.Errorf("expected lowercased email, got %s", user.Email)
	}
	if user.Name != "Ana Reyes" {
		t.Errorf("expected trimmed name, got %q", user.Name)
	}
	if user.UserType != domain.UserTypePassenger {
		t.Errorf("expected PASSENGER default, got %s", user.UserType)
	}
	if user.PasswordHash != "hashed:secret1" {
		t.Errorf("expected stored hash, got %s", user.PasswordHash)
	}
}

func TestRegister_Rejections(t *testing.T) {
	t.Parallel()
	users := newUserService()
	ctx := context.Background()

	if _, err := users.Register(ctx, service.RegisterRequest{
		Name: "Ben", Email: "ben@example.com", Password: "secret1", UserType: "driver",
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	testCases := []struct {
		name string
		req  service.RegisterRequest
		want error
	}{
		{"duplicate email any case", service.RegisterRequest{Name: "B", Email: "BEN@example.com", Password: "secret1"}, service.ErrEmailTaken},
		{"short password", service.RegisterRequest{Name: "C", Email: "c@example.com", Password: "12345"}, service.ErrValidation},
		{"bad email", service.RegisterRequest{Name: "D", Email: "not-an-email", Password: "secret1"}, service.ErrValidation},
		{"missing name", service.RegisterRequest{Email: "e@example.com", Password: "secret1"}, service.ErrValidation},
		{"unknown type", service.RegisterRequest{Name: "F", Email: "f@example.com", Password: "secret1", UserType: "ADMIN"}, service.ErrValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := users.Register(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

// ──────────────────────────────────────────────
// 2. LOGIN
// ──────────────────────────────────────────────

func TestLogin(t *testing.T) {
	t.Parallel()
	users := newUserService()
	ctx := context.Background()

	driver, err := users.Register(ctx, service.RegisterRequest{
		Name: "Carlo", Email: "carlo@example.com", Password: "secret1", UserType: domain.UserTypeDriver,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	resp, err := users.Login(ctx, service.LoginRequest{Email: "CARLO@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.User.ID != driver.ID || resp.Token != "token-"+driver.ID+"-DRIVER" {
		t.Errorf("unexpected login response: %+v", resp)
	}

	if _, err := users.Login(ctx, service.LoginRequest{Email: "carlo@example.com", Password: "secret1", ExpectedUserType: "driver"}); err != nil {
		t.Errorf("expected driver login to pass type check: %v", err)
	}

	testCases := []struct {
		name string
		req  service.LoginRequest
		want error
	}{
		{"wrong password", service.LoginRequest{Email: "carlo@example.com", Password: "nope"}, service.ErrInvalidCredentials},
		{"unknown email", service.LoginRequest{Email: "ghost@example.com", Password: "secret1"}, service.ErrInvalidCredentials},
		{"wrong account type", service.LoginRequest{Email: "carlo@example.com", Password: "secret1", ExpectedUserType: domain.UserTypePassenger}, service.ErrAuthorization},
		{"missing password", service.LoginRequest{Email: "carlo@example.com"}, service.ErrValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := users.Login(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLogin_IssuerFailure(t *testing.T) {
	t.Parallel()
	issueErr := errors.New("signing key unavailable")
	users := service.NewUserService(memory.NewUserRepository(), MockHasher{}, &MockTokenIssuer{IssueError: issueErr})
	ctx := context.Background()

	if _, err := users.Register(ctx, service.RegisterRequest{Name: "D", Email: "d@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := users.Login(ctx, service.LoginRequest{Email: "d@example.com", Password: "secret1"}); !errors.Is(err, issueErr) {
		t.Errorf("expected issuer error, got %v", err)
	}
}

func TestLogin_RealCredentials(t *testing.T) {
	t.Parallel()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	users := service.NewUserService(memory.NewUserRepository(), auth.NewBcryptHasher(bcrypt.MinCost), tokens)
	ctx := context.Background()

	user, err := users.Register(ctx, service.RegisterRequest{Name: "Eva", Email: "eva@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.PasswordHash == "secret1" {
		t.Fatal("password stored in clear")
	}

	resp, err := users.Login(ctx, service.LoginRequest{Email: "eva@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	identity, err := tokens.Parse(resp.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if identity.UserID != user.ID || identity.UserType != domain.UserTypePassenger {
		t.Errorf("unexpected identity: %+v", identity)
	}

	got, err := users.GetUser(ctx, user.ID)
	if err != nil || got.Email != "eva@example.com" {
		t.Errorf("GetUser: %v %+v", err, got)
	}
	_, err = users.GetUser(ctx, "missing")
	expectKind(t, err, service.ErrNotFound)
}
