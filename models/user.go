package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tier is the subscription tier that selects the mood write path.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// User is an account of the mood tracker. Passwords are stored as bcrypt hashes only.
type User struct {
	ID               string         `gorm:"primaryKey;size:36" json:"id"`
	Username         string         `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email            string         `gorm:"size:255" json:"email"`
	FirstName        string         `gorm:"size:64" json:"first_name"`
	LastName         string         `gorm:"size:64" json:"last_name"`
	PasswordHash     string         `gorm:"size:255" json:"-"`
	SubscriptionTier Tier           `gorm:"size:16;default:free;not null" json:"subscription_tier"`
	Timezone         string         `gorm:"size:64" json:"timezone"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// DisplayName is the first name, or the username when none is set.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

// BeforeCreate assigns an id and makes sure timestamps are set.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.SubscriptionTier == "" {
		u.SubscriptionTier = TierFree
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
