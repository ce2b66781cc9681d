package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/moodlog/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

// MoodRepository reads and writes the mood_entries and mood_entries_detailed tables.
type MoodRepository struct {
	db *gorm.DB
}

// NewMoodRepository creates a repository over db.
func NewMoodRepository(db *gorm.DB) *MoodRepository {
	return &MoodRepository{db: db}
}

// EntryOn returns the aggregate row of userID for date, or nil when there is none.
func (r *MoodRepository) EntryOn(ctx context.Context, userID, date string) (*models.MoodEntry, error) {
	var entry models.MoodEntry
	err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// EntriesBetween returns aggregate rows with from <= date <= to, oldest first.
func (r *MoodRepository) EntriesBetween(ctx context.Context, userID, from, to string) ([]models.MoodEntry, error) {
	var entries []models.MoodEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, from, to).
		Order("date ASC").
		Find(&entries).Error
	return entries, err
}

// DetailedEntriesOn returns the detailed submissions of a day ordered by time.
func (r *MoodRepository) DetailedEntriesOn(ctx context.Context, userID, date string) ([]models.DetailedMoodEntry, error) {
	var entries []models.DetailedMoodEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Order("time ASC").
		Find(&entries).Error
	return entries, err
}

// LoggedDates returns every date with an aggregate row, most recent first.
func (r *MoodRepository) LoggedDates(ctx context.Context, userID string) ([]string, error) {
	var dates []string
	err := r.db.WithContext(ctx).Model(&models.MoodEntry{}).
		Where("user_id = ?", userID).
		Order("date DESC").
		Pluck("date", &dates).Error
	return dates, err
}

// MostRecent returns the latest aggregate row, or nil when the user has none.
func (r *MoodRepository) MostRecent(ctx context.Context, userID string) (*models.MoodEntry, error) {
	var entry models.MoodEntry
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("date DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpsertDaily writes rating and details as the aggregate of the day, replacing an existing row.
func (r *MoodRepository) UpsertDaily(ctx context.Context, userID, date string, rating int, details string) (*models.MoodEntry, error) {
	var out *models.MoodEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := models.MoodEntry{UserID: userID, Date: date, Rating: rating, Details: details}
		if err := upsertAggregate(tx, entry, true); err != nil {
			return err
		}
		var err error
		out, err = reload(tx, userID, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordDetailed inserts one detailed submission and, in the same transaction,
// recomputes the day's aggregate as the rounded mean of all its detailed ratings.
// Empty details keep whatever the aggregate already had.
func (r *MoodRepository) RecordDetailed(ctx context.Context, detailed models.DetailedMoodEntry) (*models.MoodEntry, error) {
	var out *models.MoodEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&detailed).Error; err != nil {
			return err
		}

		var ratings []int
		if err := tx.Model(&models.DetailedMoodEntry{}).
			Where("user_id = ? AND date = ?", detailed.UserID, detailed.Date).
			Pluck("rating", &ratings).Error; err != nil {
			return err
		}

		entry := models.MoodEntry{
			UserID:  detailed.UserID,
			Date:    detailed.Date,
			Rating:  RoundedMean(ratings),
			Details: detailed.Note,
		}
		if err := upsertAggregate(tx, entry, detailed.Note != ""); err != nil {
			return err
		}
		var err error
		out, err = reload(tx, detailed.UserID, detailed.Date)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RoundedMean is the arithmetic mean rounded half up. It returns 0 for no ratings.
func RoundedMean(ratings []int) int {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return int(math.Round(float64(sum) / float64(len(ratings))))
}

func upsertAggregate(tx *gorm.DB, entry models.MoodEntry, overwriteDetails bool) error {
	entry.UpdatedAt = time.Now()
	cols := []string{"rating", "updated_at"}
	if overwriteDetails {
		cols = append(cols, "details")
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(&entry).Error
}

func reload(tx *gorm.DB, userID, date string) (*models.MoodEntry, error) {
	var entry models.MoodEntry
	if err := tx.Where("user_id = ? AND date = ?", userID, date).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
