package services

import (
	"testing"
	"time"

	"github.com/cppla/moodlog/utils"
)

func daysAgo(today time.Time, n ...int) []string {
	out := make([]string, 0, len(n))
	for _, d := range n {
		out = append(out, utils.AddDays(today, -d).Format(utils.DateLayout))
	}
	return out
}

func TestCalculateStreak(t *testing.T) {
	today := time.Date(2024, 1, 10, 18, 30, 0, 0, time.UTC)
	cases := []struct {
		name  string
		dates []string
		want  int
	}{
		{"empty", nil, 0},
		{"today and two before", daysAgo(today, 0, 1, 2), 3},
		{"today not logged yet", daysAgo(today, 1, 2), 2},
		{"yesterday missing", daysAgo(today, 2), 0},
		{"gap stops the walk", daysAgo(today, 0, 1, 3, 4), 2},
		{"unsorted with duplicates", []string{"2024-01-08", "2024-01-10", "2024-01-09", "2024-01-10"}, 3},
		{"garbage rows skipped", []string{"not-a-date", "2024-01-10"}, 1},
		{"only garbage", []string{"??"}, 0},
		{"future date lapses", []string{"2024-01-12", "2024-01-10"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalculateStreak(tc.dates, today); got != tc.want {
				t.Errorf("CalculateStreak(%v) = %d, want %d", tc.dates, got, tc.want)
			}
		})
	}
}

func TestCalculateStreakIsCapped(t *testing.T) {
	today := time.Date(2024, 12, 31, 8, 0, 0, 0, time.UTC)
	var dates []string
	for i := 0; i < 800; i++ {
		dates = append(dates, utils.AddDays(today, -i).Format(utils.DateLayout))
	}
	if got := CalculateStreak(dates, today); got != maxStreakWalk {
		t.Errorf("expected walk capped at %d, got %d", maxStreakWalk, got)
	}
}

func TestCalculateStreakAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	today := time.Date(2024, 3, 11, 12, 0, 0, 0, loc)
	dates := []string{"2024-03-11", "2024-03-10", "2024-03-09"}
	if got := CalculateStreak(dates, today); got != 3 {
		t.Errorf("expected 3 across the DST switch, got %d", got)
	}
}
