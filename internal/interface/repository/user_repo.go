package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormUserRepository implements the UserRepository interface
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM user repository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{
		db: db,
	}
}

var _ repository.UserRepository = (*GormUserRepository)(nil)

// Users GORM model for database mapping
type Users struct {
	ID                string         `gorm:"column:id;primaryKey"`
	Email             string         `gorm:"column:email;uniqueIndex"`
	EmailVerified     bool           `gorm:"column:email_verified"`
	VerificationToken *string        `gorm:"column:verification_token;uniqueIndex"`
	VerifiedAt        *time.Time     `gorm:"column:verified_at"`
	UnsubscribedAt    *time.Time     `gorm:"column:unsubscribed_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName overrides the default table name
func (Users) TableName() string {
	return "users"
}

func (u Users) toEntity() *entity.User {
	out := &entity.User{
		ID:             u.ID,
		Email:          u.Email,
		EmailVerified:  u.EmailVerified,
		VerifiedAt:     u.VerifiedAt,
		UnsubscribedAt: u.UnsubscribedAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if u.VerificationToken != nil {
		out.VerificationToken = *u.VerificationToken
	}
	if u.DeletedAt.Valid {
		at := u.DeletedAt.Time
		out.DeletedAt = &at
	}
	return out
}

// Create inserts a new user and returns entity.ErrDuplicateUser when the address is taken
func (r *GormUserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	model := Users{
		ID:            user.ID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		VerifiedAt:    user.VerifiedAt,
	}
	if user.VerificationToken != "" {
		token := user.VerificationToken
		model.VerificationToken = &token
	}

	result := r.db.WithContext(ctx).Create(&model)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return entity.ErrDuplicateUser
	}
	if result.Error != nil {
		return result.Error
	}

	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID finds a live user by id
func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByVerificationToken finds the live user holding token
func (r *GormUserRepository) FindByVerificationToken(ctx context.Context, token string) (*entity.User, error) {
	if token == "" {
		return nil, entity.ErrNotFound
	}
	return r.first(ctx, "verification_token = ?", token)
}

func (r *GormUserRepository) first(ctx context.Context, query string, arg interface{}) (*entity.User, error) {
	var user Users
	result := r.db.WithContext(ctx).Where(query, arg).First(&user)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, entity.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return user.toEntity(), nil
}

// FindByIDs loads live users keyed by id; soft-deleted users are left out
func (r *GormUserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	out := make(map[string]*entity.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []Users
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.toEntity()
	}
	return out, nil
}

// MarkVerified flags the user's address as confirmed
func (r *GormUserRepository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"email_verified": true,
		"verified_at":    gorm.Expr("COALESCE(verified_at, ?)", at),
	})
}

// MarkUnsubscribed records the first unsubscribe time
func (r *GormUserRepository) MarkUnsubscribed(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"unsubscribed_at": gorm.Expr("COALESCE(unsubscribed_at, ?)", at),
	})
}

func (r *GormUserRepository) update(ctx context.Context, id string, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&Users{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// Erase scrubs the address and token, then soft-deletes the row
func (r *GormUserRepository) Erase(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Users{}).Where("id = ?", id).Updates(map[string]interface{}{
			"email":              "erased-" + id + "@invalid.local",
			"email_verified":     false,
			"verification_token": nil,
			"unsubscribed_at":    gorm.Expr("COALESCE(unsubscribed_at, ?)", at),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return entity.ErrNotFound
		}
		return tx.Where("id = ?", id).Delete(&Users{}).Error
	})
}
