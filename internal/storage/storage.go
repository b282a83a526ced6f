package storage

import (
	"auth_service/internal/models"
	"context"
	"errors"

	"github.com/gofrs/uuid"
)

const (
	usersTable = "users"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user with this email already exists")
)

// Storage persists users. Emails are expected to be normalized by the caller.
type Storage interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	Close()
}
