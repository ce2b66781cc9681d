package services

import (
	"context"

	"github.com/cppla/moodlog/cache"
)

// Invalidator drops the cached values a mood write makes stale.
type Invalidator struct {
	store *cache.Store
}

func NewInvalidator(store *cache.Store) *Invalidator {
	return &Invalidator{store: store}
}

// AfterMoodWrite clears today's mood, the 7 and 30 day windows (and any other
// window in use), today's detailed entries, the weekly average and the streak.
func (i *Invalidator) AfterMoodWrite(ctx context.Context, userID string) {
	i.store.Delete(ctx,
		cache.TodayMood(userID),
		cache.RecentEntries(userID, 7),
		cache.RecentEntries(userID, 30),
		cache.TodayDetailed(userID),
		cache.WeeklyAverage(userID),
		cache.Streak(userID),
	)
	i.store.DeleteKind(ctx, userID, cache.KindRecentEntries)
}
