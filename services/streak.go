package services

import (
	"time"

	"github.com/cppla/moodlog/utils"
)

// maxStreakWalk bounds the walk over malformed or unbounded date sets.
const maxStreakWalk = 366

// CalculateStreak counts consecutive logged days ending at the most recent
// logged day, which must be today or yesterday in today's location. A day
// not logged yet today does not break the streak. Unparsable dates are skipped.
func CalculateStreak(dates []string, today time.Time) int {
	loc := today.Location()
	todayDay := utils.StartOfDay(today, loc)

	logged := make(map[string]struct{}, len(dates))
	var mostRecent time.Time
	for _, d := range dates {
		day, err := utils.ParseDay(d, loc)
		if err != nil {
			continue
		}
		logged[day.Format(utils.DateLayout)] = struct{}{}
		if day.After(mostRecent) {
			mostRecent = day
		}
	}
	if len(logged) == 0 {
		return 0
	}

	yesterday := utils.AddDays(todayDay, -1)
	if !mostRecent.Equal(todayDay) && !mostRecent.Equal(yesterday) {
		return 0
	}

	streak := 0
	cursor := mostRecent
	for i := 0; i < maxStreakWalk; i++ {
		if _, ok := logged[cursor.Format(utils.DateLayout)]; !ok {
			break
		}
		streak++
		cursor = utils.AddDays(cursor, -1)
	}
	return streak
}
