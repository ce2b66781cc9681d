package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/moodlog/cache"
	"github.com/cppla/moodlog/models"
	"github.com/cppla/moodlog/utils"
)

// DefaultRecentDays is the window used when a caller asks for zero or fewer days.
const DefaultRecentDays = 7

// Deps wires a MoodService. Only Repo is required.
type Deps struct {
	Repo     MoodRepository
	Tiers    TierProvider
	Sessions SessionProvider
	Cache    *cache.Store
	Shadow   *cache.Shadow
	Scratch  *Scratch
	Sample   *SampleDataset
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

// MoodService is the mood-data gateway. Reads go shadow, cache, backend and
// end in the sample dataset, so they never fail. Writes invalidate every
// derived cache entry of the user.
type MoodService struct {
	repo        MoodRepository
	tiers       TierProvider
	sessions    SessionProvider
	cache       *cache.Store
	shadow      *cache.Shadow
	scratch     *Scratch
	sample      SampleDataset
	loc         *time.Location
	now         func() time.Time
	log         *zap.Logger
	invalidator *Invalidator
	locks       *utils.KeyedMutex
}

func NewMoodService(d Deps) *MoodService {
	s := &MoodService{
		repo:     d.Repo,
		tiers:    d.Tiers,
		sessions: d.Sessions,
		cache:    d.Cache,
		shadow:   d.Shadow,
		scratch:  d.Scratch,
		loc:      d.Location,
		now:      d.Now,
		log:      d.Logger,
		locks:    utils.NewKeyedMutex(),
	}
	if s.sessions == nil {
		s.sessions = ContextSessions{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.cache == nil {
		s.cache = cache.NewStore(cache.Options{Logger: s.log, Now: d.Now})
	}
	if s.shadow == nil {
		s.shadow = cache.NewShadow()
	}
	if s.scratch == nil {
		s.scratch = NewScratch(cache.NewMemoryStorage())
	}
	if d.Sample != nil {
		s.sample = *d.Sample
	} else {
		s.sample = DefaultSample()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.invalidator = NewInvalidator(s.cache)
	return s
}

// Cache exposes the store so owners can flush and close it.
func (s *MoodService) Cache() *cache.Store { return s.cache }

func (s *MoodService) session(ctx context.Context) (Session, *time.Location, bool) {
	sess, ok := s.sessions.Session(ctx)
	if !ok {
		return Session{}, s.loc, false
	}
	loc := sess.Location
	if loc == nil {
		loc = s.loc
	}
	return sess, loc, true
}

func (s *MoodService) tier(ctx context.Context, userID string) models.Tier {
	if s.tiers == nil {
		return models.TierFree
	}
	t, err := s.tiers.CurrentTier(ctx, userID)
	if err != nil {
		s.log.Warn("tier lookup failed, treating as free", zap.String("user_id", userID), zap.Error(err))
		return models.TierFree
	}
	return t
}

// SaveMoodEntry records today's rating for the session user. Premium users get
// a detailed row and a rounded-mean aggregate; free users overwrite the day.
func (s *MoodService) SaveMoodEntry(ctx context.Context, rating int, details string) (*models.MoodEntry, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, ErrInvalidRating
	}
	sess, loc, ok := s.session(ctx)
	if !ok {
		s.log.Info("mood entry not saved without a session")
		return nil, ErrNoSession
	}
	now := s.now().In(loc)
	today := now.Format(utils.DateLayout)
	details = utils.SanitizeText(details)
	tier := s.tier(ctx, sess.UserID)

	unlock := s.locks.Lock(sess.UserID + "|" + today)
	defer unlock()

	var (
		entry *models.MoodEntry
		err   error
	)
	if tier == models.TierPremium {
		entry, err = s.repo.RecordDetailed(ctx, models.DetailedMoodEntry{
			UserID:         sess.UserID,
			Date:           today,
			Time:           now.Format(utils.TimeLayout),
			Rating:         rating,
			Note:           details,
			EmotionDetails: details,
		})
	} else {
		entry, err = s.repo.UpsertDaily(ctx, sess.UserID, today, rating, details)
	}
	if err != nil {
		s.log.Error("save mood entry failed",
			zap.String("user_id", sess.UserID),
			zap.String("tier", string(tier)),
			zap.Error(err))
		if serr := s.scratch.Write(ctx, sess.UserID, ScratchEntry{Rating: rating, Details: details, Date: today}); serr != nil {
			s.log.Warn("scratch write failed", zap.String("user_id", sess.UserID), zap.Error(serr))
		}
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	s.shadow.RecordToday(sess.UserID, today, entry.Rating, entry.Details)
	s.invalidator.AfterMoodWrite(ctx, sess.UserID)
	if err := s.scratch.Clear(ctx, sess.UserID); err != nil {
		s.log.Debug("scratch clear failed", zap.String("user_id", sess.UserID), zap.Error(err))
	}
	return entry, nil
}

// GetTodayMoodEntry returns today's entry, or nil when the user has not logged today.
func (s *MoodService) GetTodayMoodEntry(ctx context.Context) *models.MoodEntry {
	sess, loc, ok := s.session(ctx)
	if !ok {
		return s.sample.TodayEntry()
	}
	today := utils.DayString(s.now(), loc)

	if sh, ok := s.shadow.ReadToday(sess.UserID, today); ok {
		return &models.MoodEntry{UserID: sess.UserID, Date: today, Rating: sh.Rating, Details: sh.Details}
	}

	key := cache.TodayMood(sess.UserID)
	var cached models.MoodEntry
	if s.cache.Get(ctx, key, &cached) && cached.Date == today {
		return &cached
	}

	entry, err := s.repo.EntryOn(ctx, sess.UserID, today)
	if err != nil {
		s.log.Warn("today mood from backend failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return s.sample.TodayEntry()
	}
	if entry != nil {
		s.cache.Set(ctx, key, entry)
	}
	return entry
}

// recent returns the window and whether it came from the backend.
func (s *MoodService) recent(ctx context.Context, sess Session, loc *time.Location, days int) ([]models.MoodEntry, bool) {
	key := cache.RecentEntries(sess.UserID, days)
	var cached []models.MoodEntry
	if s.cache.Get(ctx, key, &cached) {
		return cached, true
	}

	today := utils.StartOfDay(s.now(), loc)
	from := utils.AddDays(today, -days).Format(utils.DateLayout)
	entries, err := s.repo.EntriesBetween(ctx, sess.UserID, from, today.Format(utils.DateLayout))
	if err != nil {
		s.log.Warn("recent moods from backend failed",
			zap.String("user_id", sess.UserID), zap.Int("days", days), zap.Error(err))
		return s.sample.Recent(days), false
	}
	if len(entries) > 0 {
		s.cache.Set(ctx, key, entries)
	}
	if entries == nil {
		entries = []models.MoodEntry{}
	}
	return entries, true
}

// GetRecentMoodEntries returns entries from days ago through today, oldest first.
func (s *MoodService) GetRecentMoodEntries(ctx context.Context, days int) []models.MoodEntry {
	if days <= 0 {
		days = DefaultRecentDays
	}
	sess, loc, ok := s.session(ctx)
	if !ok {
		return s.sample.Recent(days)
	}
	entries, _ := s.recent(ctx, sess, loc, days)
	return entries
}

// GetTodayDetailedMoodEntries returns today's premium submissions ordered by time.
func (s *MoodService) GetTodayDetailedMoodEntries(ctx context.Context) []models.DetailedMoodEntry {
	sess, loc, ok := s.session(ctx)
	if !ok {
		return s.sample.TodayDetailed()
	}
	today := utils.DayString(s.now(), loc)

	key := cache.TodayDetailed(sess.UserID)
	var cached []models.DetailedMoodEntry
	if s.cache.Get(ctx, key, &cached) && len(cached) > 0 && cached[0].Date == today {
		return cached
	}

	entries, err := s.repo.DetailedEntriesOn(ctx, sess.UserID, today)
	if err != nil {
		s.log.Warn("detailed moods from backend failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return s.sample.TodayDetailed()
	}
	if len(entries) > 0 {
		s.cache.Set(ctx, key, entries)
	}
	if entries == nil {
		entries = []models.DetailedMoodEntry{}
	}
	return entries
}

// GetMoodStreak returns the number of consecutive logged days ending today or yesterday.
func (s *MoodService) GetMoodStreak(ctx context.Context) int {
	sess, loc, ok := s.session(ctx)
	if !ok {
		return s.sample.Streak(s.now().In(loc))
	}

	key := cache.Streak(sess.UserID)
	var cached int
	if s.cache.Get(ctx, key, &cached) {
		return cached
	}

	dates, err := s.repo.LoggedDates(ctx, sess.UserID)
	if err != nil {
		s.log.Warn("logged dates from backend failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return s.sample.Streak(s.now().In(loc))
	}
	streak := CalculateStreak(dates, s.now().In(loc))
	s.cache.Set(ctx, key, streak)
	return streak
}

// GetWeeklyAverageMood returns the mean rating of the last 7 days, nil without data.
func (s *MoodService) GetWeeklyAverageMood(ctx context.Context) *float64 {
	sess, loc, ok := s.session(ctx)
	if !ok {
		return meanRating(s.sample.Recent(DefaultRecentDays))
	}

	key := cache.WeeklyAverage(sess.UserID)
	var cached *float64
	if s.cache.Get(ctx, key, &cached) {
		return cached
	}

	entries, authoritative := s.recent(ctx, sess, loc, DefaultRecentDays)
	avg := meanRating(entries)
	if authoritative {
		s.cache.Set(ctx, key, avg)
	}
	return avg
}

// GetCurrentWeekMoodEntries returns entries from Sunday of this week through today.
func (s *MoodService) GetCurrentWeekMoodEntries(ctx context.Context) []models.MoodEntry {
	sess, loc, ok := s.session(ctx)
	if !ok {
		return s.sample.Recent(DefaultRecentDays)
	}
	now := s.now()
	from := utils.StartOfWeek(now, loc).Format(utils.DateLayout)
	entries, err := s.repo.EntriesBetween(ctx, sess.UserID, from, utils.DayString(now, loc))
	if err != nil {
		s.log.Warn("current week from backend failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return s.sample.Recent(DefaultRecentDays)
	}
	if entries == nil {
		entries = []models.MoodEntry{}
	}
	return entries
}

// GetAverageMood returns the mean rating over the last days, nil without data.
func (s *MoodService) GetAverageMood(ctx context.Context, days int) *float64 {
	return meanRating(s.GetRecentMoodEntries(ctx, days))
}

// GetMostRecentMoodEntry returns the latest logged entry of any day.
func (s *MoodService) GetMostRecentMoodEntry(ctx context.Context) *models.MoodEntry {
	sess, _, ok := s.session(ctx)
	if !ok {
		return s.sample.TodayEntry()
	}
	entry, err := s.repo.MostRecent(ctx, sess.UserID)
	if err != nil {
		s.log.Warn("latest mood from backend failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return s.sample.TodayEntry()
	}
	return entry
}

// PendingMoodEntry returns the last submission that failed to reach the backend.
func (s *MoodService) PendingMoodEntry(ctx context.Context) (ScratchEntry, bool) {
	sess, _, ok := s.session(ctx)
	if !ok {
		return ScratchEntry{}, false
	}
	e, found, err := s.scratch.Read(ctx, sess.UserID)
	if err != nil {
		s.log.Warn("scratch read failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return ScratchEntry{}, false
	}
	return e, found
}

func meanRating(entries []models.MoodEntry) *float64 {
	if len(entries) == 0 {
		return nil
	}
	sum := 0
	for _, e := range entries {
		sum += e.Rating
	}
	avg := float64(sum) / float64(len(entries))
	return &avg
}
