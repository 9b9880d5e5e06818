package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/bankcards/card-service/internal/models"
)

// UserAdminStore is the user persistence contract for administrative CRUD.
// *repository.UserRepository satisfies it.
type UserAdminStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
}

// UserService handles administrative user management
type UserService struct {
	users UserAdminStore
	log   *logrus.Logger
}

// NewUserService initializes a new user service
func NewUserService(users UserAdminStore, log *logrus.Logger) *UserService {
	return &UserService{users: users, log: log}
}

// GetAllUsers returns every user in the system
func (s *UserService) GetAllUsers(ctx context.Context) ([]models.UserView, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]models.UserView, 0, len(users))
	for i := range users {
		views = append(views, userView(&users[i]))
	}
	return views, nil
}

// GetUserByID returns a single user
func (s *UserService) GetUserByID(ctx context.Context, id int64) (*models.UserView, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := userView(user)
	return &view, nil
}

// CreateUser creates a new user with a hashed password
func (s *UserService) CreateUser(ctx context.Context, username, email, password string, role models.Role) (*models.UserView, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}
	if role != models.RoleAdmin && role != models.RoleUser {
		return nil, fmt.Errorf("unknown role: %s", role)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User created: %s (role %s)", user.Username, user.Role)
	view := userView(user)
	return &view, nil
}

// UpdateUser updates an existing user. An empty password keeps the current
// credential.
func (s *UserService) UpdateUser(ctx context.Context, id int64, username, email, password string, role models.Role) (*models.UserView, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if username != "" {
		user.Username = username
	}
	if email != "" {
		user.Email = email
	}
	if role != "" {
		if role != models.RoleAdmin && role != models.RoleUser {
			return nil, fmt.Errorf("unknown role: %s", role)
		}
		user.Role = role
	}
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hashed)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User %d updated", id)
	view := userView(user)
	return &view, nil
}

// DeleteUser removes a user; the store cascades deletion of owned cards
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Infof("User %d deleted", id)
	return nil
}

func userView(user *models.User) models.UserView {
	return models.UserView{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}
}
