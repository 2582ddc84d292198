package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// PasswordHasher hashes new passwords and verifies login attempts.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string, userType domain.UserType) (token string, expiresAt time.Time, err error)
}

// UserService handles registration, login and profile lookups.
type UserService struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer) *UserService {
	return &UserService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
	}
}

// RegisterRequest contains the parameters for creating an account.
type RegisterRequest struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	UserType domain.UserType
}

// LoginRequest contains the parameters for logging in. ExpectedUserType is optional.
type LoginRequest struct {
	Email            string `validate:"required"`
	Password         string `validate:"required"`
	ExpectedUserType domain.UserType
}

// LoginResponse contains the authenticated user and an access token.
type LoginResponse struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Register creates a user with a hashed password. Emails are unique ignoring case.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	userType, err := parseUserType(req.UserType)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		UserType:     userType,
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	log.Printf("[USER] registered user=%s type=%s", user.ID, user.UserType)
	return user, nil
}

// Login verifies credentials and issues an access token. Unknown emails and wrong
// passwords fail with the same error.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if req.ExpectedUserType != "" {
		expected := domain.UserType(strings.ToUpper(string(req.ExpectedUserType)))
		if user.UserType != expected {
			return nil, &AuthorizationError{
				Entity:  "user",
				ID:      user.ID,
				ActorID: user.ID,
				Message: fmt.Sprintf("this account is not registered as a %s", strings.ToLower(string(expected))),
			}
		}
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.UserType)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return user, nil
}

// parseUserType defaults an empty type to PASSENGER and accepts either case.
func parseUserType(t domain.UserType) (domain.UserType, error) {
	switch domain.UserType(strings.ToUpper(string(t))) {
	case "", domain.UserTypePassenger:
		return domain.UserTypePassenger, nil
	case domain.UserTypeDriver:
		return domain.UserTypeDriver, nil
	default:
		return "", &ValidationError{Field: "userType", Reason: "userType must be one of: DRIVER, PASSENGER"}
	}
}
