package repository

import (
	"context"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

// UserRepository defines the interface for subscriber operations
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	// FindByIDs omits deleted users from the result.
	FindByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*entity.User, error)
	MarkVerified(ctx context.Context, id string, at time.Time) error
	MarkUnsubscribed(ctx context.Context, id string, at time.Time) error
	Erase(ctx context.Context, id string, at time.Time) error
}
