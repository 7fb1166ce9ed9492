package domain

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RegisterInput captures a sign-up request. Profile fields are merged into the default profile.
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	Profile   ProfilePatch
}

// AccountService registers users and checks credentials.
type AccountService struct {
	users      UserRepository
	profiles   ProfileRepository
	bcryptCost int
	now        func() time.Time
	logger     *slog.Logger
}

// AccountOption configures AccountService.
type AccountOption func(*AccountService)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) AccountOption {
	return func(s *AccountService) {
		s.bcryptCost = cost
	}
}

// WithAccountLogger overrides the service logger.
func WithAccountLogger(logger *slog.Logger) AccountOption {
	return func(s *AccountService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewAccountService constructs an AccountService.
func NewAccountService(users UserRepository, profiles ProfileRepository, opts ...AccountOption) *AccountService {
	s := &AccountService{
		users:      users,
		profiles:   profiles,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account and its initial profile. A taken username is an AuthenticationError.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (User, UserProfile, error) {
	input.Username = strings.TrimSpace(input.Username)
	profile := DefaultProfile().Merge(input.Profile)
	if err := validateRegistration(input, profile); err != nil {
		return User{}, UserProfile{}, err
	}

	existing, err := s.users.FindUserByUsername(ctx, input.Username)
	if err != nil {
		return User{}, UserProfile{}, err
	}
	if existing != nil {
		return User{}, UserProfile{}, &AuthenticationError{Reason: "username already exists"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return User{}, UserProfile{}, err
	}

	user, err := s.users.CreateUser(ctx, User{
		ID:           uuid.NewString(),
		Username:     input.Username,
		Email:        strings.TrimSpace(input.Email),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	})
	if errors.Is(err, ErrConflict) {
		return User{}, UserProfile{}, &AuthenticationError{Reason: "username already exists"}
	}
	if err != nil {
		return User{}, UserProfile{}, err
	}

	if err := s.profiles.PutProfile(ctx, user.ID, profile); err != nil {
		return User{}, UserProfile{}, err
	}
	s.logger.Info("registered user", "user_id", user.ID, "username", user.Username)
	return user, profile, nil
}

// Login verifies credentials. Unknown usernames and wrong passwords fail the same way.
func (s *AccountService) Login(ctx context.Context, username, password string) (User, error) {
	user, err := s.users.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return User{}, err
	}
	if user == nil {
		return User{}, &AuthenticationError{Reason: "invalid username or password"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, &AuthenticationError{Reason: "invalid username or password"}
	}
	return *user, nil
}

// GetUser fetches an account by id.
func (s *AccountService) GetUser(ctx context.Context, userID string) (User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if user == nil {
		return User{}, &NotFoundError{Resource: ResourceUser, ID: userID}
	}
	return *user, nil
}
