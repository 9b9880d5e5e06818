package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/bankcards/card-service/internal/errs"
	"github.com/bankcards/card-service/internal/models"
)

// Claims is the JWT payload issued on login and consumed by the auth
// middleware. Subject carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthUserStore is the user lookup contract for authentication
type AuthUserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// AuthService authenticates users and issues JWT tokens
type AuthService struct {
	users     AuthUserStore
	jwtSecret string
	log       *logrus.Logger
}

// NewAuthService initializes a new auth service
func NewAuthService(users AuthUserStore, jwtSecret string, log *logrus.Logger) *AuthService {
	return &AuthService{users: users, jwtSecret: jwtSecret, log: log}
}

// Login authenticates a user by username and password and returns a signed
// JWT token. Unknown username and wrong password are indistinguishable.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", errs.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", errs.ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Username)
	return tokenString, nil
}
