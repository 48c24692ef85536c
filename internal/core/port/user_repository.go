package port

import (
	"context"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
)

// UserRepository deals with user storage.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	SetActive(ctx context.Context, userID string, active bool) error
}
