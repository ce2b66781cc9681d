package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MinRating and MaxRating bound a mood rating.
const (
	MinRating = 1
	MaxRating = 5
)

// MoodEntry is the daily aggregate: one row per user per calendar day.
type MoodEntry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id,omitempty"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_mood_user_date,priority:1" json:"user_id,omitempty"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:idx_mood_user_date,priority:2" json:"date"`
	Rating    int       `gorm:"not null" json:"rating"`
	Details   string    `gorm:"type:text" json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// TableName keeps the backend table name.
func (MoodEntry) TableName() string { return "mood_entries" }

// BeforeCreate assigns an id when the caller did not.
func (m *MoodEntry) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// DetailedMoodEntry is one premium submission; several may exist per day.
type DetailedMoodEntry struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id,omitempty"`
	UserID         string    `gorm:"size:36;not null;index:idx_detailed_user_date_time,priority:1" json:"user_id,omitempty"`
	Date           string    `gorm:"size:10;not null;index:idx_detailed_user_date_time,priority:2" json:"date"`
	Time           string    `gorm:"column:time;size:12;not null;index:idx_detailed_user_date_time,priority:3" json:"time"`
	Rating         int       `gorm:"not null" json:"rating"`
	Note           string    `gorm:"type:text" json:"note,omitempty"`
	EmotionDetails string    `gorm:"type:text" json:"emotion_details,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// TableName keeps the backend table name.
func (DetailedMoodEntry) TableName() string { return "mood_entries_detailed" }

// BeforeCreate assigns an id when the caller did not.
func (d *DetailedMoodEntry) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
