package services

import (
	"time"

	"github.com/cppla/moodlog/models"
)

// SampleDataset keeps the app populated for logged-out callers and when the backend is down.
type SampleDataset struct {
	Entries  []models.MoodEntry
	Detailed []models.DetailedMoodEntry
}

// DefaultSample is the fixed demo dataset. Its dates are in the past, so its streak is 0.
func DefaultSample() SampleDataset {
	return SampleDataset{
		Entries: []models.MoodEntry{
			{ID: "sample-5", Date: "2023-11-11", Rating: 3, Details: "Average day, nothing special happened."},
			{ID: "sample-4", Date: "2023-11-12", Rating: 2, Details: "Feeling down today. Rainy weather and canceled plans."},
			{ID: "sample-3", Date: "2023-11-13", Rating: 5, Details: "Amazing day! Got a promotion at work."},
			{ID: "sample-2", Date: "2023-11-14", Rating: 3, Details: "Feeling okay, but a bit tired from yesterday."},
			{ID: "sample-1", Date: "2023-11-15", Rating: 4, Details: "Had a productive day at work and enjoyed dinner with friends."},
		},
		Detailed: []models.DetailedMoodEntry{
			{ID: "sample-d1", Date: "2023-11-15", Time: "09:00:00", Rating: 3, Note: "Slow start."},
			{ID: "sample-d2", Date: "2023-11-15", Time: "14:00:00", Rating: 5, Note: "Great lunch with the team."},
		},
	}
}

// TodayEntry returns the latest sample entry.
func (s SampleDataset) TodayEntry() *models.MoodEntry {
	if len(s.Entries) == 0 {
		return nil
	}
	e := s.Entries[len(s.Entries)-1]
	return &e
}

// Recent returns up to days of the latest sample entries, oldest first.
func (s SampleDataset) Recent(days int) []models.MoodEntry {
	n := len(s.Entries)
	if days < n {
		n = days
	}
	if n <= 0 {
		return []models.MoodEntry{}
	}
	out := make([]models.MoodEntry, n)
	copy(out, s.Entries[len(s.Entries)-n:])
	return out
}

// TodayDetailed returns the sample detailed submissions ordered by time.
func (s SampleDataset) TodayDetailed() []models.DetailedMoodEntry {
	out := make([]models.DetailedMoodEntry, len(s.Detailed))
	copy(out, s.Detailed)
	return out
}

// Streak runs the streak calculator over the sample dates.
func (s SampleDataset) Streak(today time.Time) int {
	dates := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		dates = append(dates, e.Date)
	}
	return CalculateStreak(dates, today)
}
