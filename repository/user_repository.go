package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/moodlog/models"
)

// ErrUsernameTaken is returned when registering an existing username.
var ErrUsernameTaken = errors.New("username already taken")

// UserRepository manages accounts and the subscription tier of each user.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u after checking the username is free.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", u.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUsernameTaken
	}
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

// CurrentTier returns the subscription tier of userID, free when unset.
func (r *UserRepository) CurrentTier(ctx context.Context, userID string) (models.Tier, error) {
	u, err := r.FindByID(ctx, userID)
	if err != nil {
		return models.TierFree, err
	}
	if !u.SubscriptionTier.Valid() {
		return models.TierFree, nil
	}
	return u.SubscriptionTier, nil
}

// SetTier changes the subscription tier of userID.
func (r *UserRepository) SetTier(ctx context.Context, userID string, tier models.Tier) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("subscription_tier", tier)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ProfileUpdate holds the profile fields to change; nil fields are left alone.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Timezone  *string
}

// UpdateProfile applies p to userID and returns the updated user.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, p ProfileUpdate) (*models.User, error) {
	updates := map[string]interface{}{}
	if p.FirstName != nil {
		updates["first_name"] = *p.FirstName
	}
	if p.LastName != nil {
		updates["last_name"] = *p.LastName
	}
	if p.Timezone != nil {
		updates["timezone"] = *p.Timezone
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return r.FindByID(ctx, userID)
}

func (r *UserRepository) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
