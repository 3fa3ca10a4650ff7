package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	domerrors "github.com/ewallet-backend/internal/errors"
	"github.com/ewallet-backend/internal/logging"
	"github.com/ewallet-backend/internal/models"
)

// UserRepository interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// UserService handles registration and account management for users
type UserService struct {
	userRepo    UserRepository
	accountRepo AccountRepository
	logger      *logging.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo UserRepository, accountRepo AccountRepository, logger *logging.Logger) *UserService {
	return &UserService{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// RegisterInput represents input for registering a user
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UpdateUserInput represents input for updating a user's profile
type UpdateUserInput struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// Register creates a user with a bcrypt-hashed password. Emails are
// stored lowercased and must be unique.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domerrors.NewInvalidInput("a valid email is required")
	}
	if len(input.Password) < 8 {
		return nil, domerrors.NewInvalidInput("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domerrors.NewInternal("failed to hash password", err)
	}

	user := &models.User{
		Email:     email,
		Password:  string(hash),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithField("userId", user.ID).Info("user registered")
	return user, nil
}

// Authenticate verifies an email/password pair. A wrong password and an
// unknown email both return the same unauthorized error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if domerrors.IsCode(err, domerrors.CodeUserNotFound) {
			return nil, domerrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, domerrors.NewUnauthorized("invalid credentials")
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// TotalBalance sums the balances of all of a user's accounts.
func (s *UserService) TotalBalance(ctx context.Context, userID string) (*models.User, []*models.Account, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	accounts, err := s.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, accounts, nil
}

// UpdateUser updates a user's profile fields
func (s *UserService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a user together with their accounts, portfolios and
// wealth history.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("userId", id).Info("user deleted")
	return nil
}

// ListUsers returns a page of registered users
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.userRepo.List(ctx, limit, offset)
}
