package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cppla/moodlog/cache"
	"github.com/cppla/moodlog/models"
	"github.com/cppla/moodlog/repository"
)

var errBackend = errors.New("backend unavailable")

// fakeRepo keeps rows in memory and counts calls so tests can see cache hits.
type fakeRepo struct {
	mu       sync.Mutex
	daily    map[string]models.MoodEntry // user|date
	detailed []models.DetailedMoodEntry
	fail     error
	calls    map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{daily: map[string]models.MoodEntry{}, calls: map[string]int{}}
}

func (f *fakeRepo) hit(op string) error {
	f.calls[op]++
	return f.fail
}

func (f *fakeRepo) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeRepo) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRepo) put(userID, date string, rating int, details string) {
	f.mu.Lock()
	f.daily[userID+"|"+date] = models.MoodEntry{ID: userID + date, UserID: userID, Date: date, Rating: rating, Details: details}
	f.mu.Unlock()
}

func (f *fakeRepo) EntryOn(_ context.Context, userID, date string) (*models.MoodEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("EntryOn"); err != nil {
		return nil, err
	}
	e, ok := f.daily[userID+"|"+date]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeRepo) EntriesBetween(_ context.Context, userID, from, to string) ([]models.MoodEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("EntriesBetween"); err != nil {
		return nil, err
	}
	var out []models.MoodEntry
	for _, e := range f.daily {
		if e.UserID == userID && e.Date >= from && e.Date <= to {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *fakeRepo) DetailedEntriesOn(_ context.Context, userID, date string) ([]models.DetailedMoodEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("DetailedEntriesOn"); err != nil {
		return nil, err
	}
	var out []models.DetailedMoodEntry
	for _, d := range f.detailed {
		if d.UserID == userID && d.Date == date {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (f *fakeRepo) LoggedDates(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("LoggedDates"); err != nil {
		return nil, err
	}
	var out []string
	for _, e := range f.daily {
		if e.UserID == userID {
			out = append(out, e.Date)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func (f *fakeRepo) MostRecent(_ context.Context, userID string) (*models.MoodEntry, error) {
	dates, err := f.LoggedDates(context.Background(), userID)
	if err != nil || len(dates) == 0 {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.daily[userID+"|"+dates[0]]
	return &e, nil
}

func (f *fakeRepo) UpsertDaily(_ context.Context, userID, date string, rating int, details string) (*models.MoodEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("UpsertDaily"); err != nil {
		return nil, err
	}
	e := models.MoodEntry{ID: userID + date, UserID: userID, Date: date, Rating: rating, Details: details}
	f.daily[userID+"|"+date] = e
	return &e, nil
}

func (f *fakeRepo) RecordDetailed(_ context.Context, d models.DetailedMoodEntry) (*models.MoodEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("RecordDetailed"); err != nil {
		return nil, err
	}
	f.detailed = append(f.detailed, d)
	var ratings []int
	for _, x := range f.detailed {
		if x.UserID == d.UserID && x.Date == d.Date {
			ratings = append(ratings, x.Rating)
		}
	}
	key := d.UserID + "|" + d.Date
	e := f.daily[key]
	e.ID, e.UserID, e.Date = d.UserID+d.Date, d.UserID, d.Date
	e.Rating = repository.RoundedMean(ratings)
	if d.Note != "" {
		e.Details = d.Note
	}
	f.daily[key] = e
	return &e, nil
}

type fakeTiers map[string]models.Tier

func (f fakeTiers) CurrentTier(_ context.Context, userID string) (models.Tier, error) {
	if t, ok := f[userID]; ok {
		return t, nil
	}
	return models.TierFree, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fixture struct {
	svc     *MoodService
	repo    *fakeRepo
	clock   *clock
	durable *cache.MemoryStorage
	tiers   fakeTiers
}

// Tuesday 2024-03-12, 18:30 UTC.
var now0 = time.Date(2024, 3, 12, 18, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newFakeRepo(),
		clock:   &clock{t: now0},
		durable: cache.NewMemoryStorage(),
		tiers:   fakeTiers{},
	}
	store := cache.NewStore(cache.Options{Durable: f.durable, Now: f.clock.Now})
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	f.svc = NewMoodService(Deps{
		Repo:  f.repo,
		Tiers: f.tiers,
		Cache: store,
		Now:   f.clock.Now,
	})
	return f
}

func userCtx(userID string) context.Context {
	return WithSession(context.Background(), Session{UserID: userID})
}

func TestSaveRequiresSessionAndValidRating(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.SaveMoodEntry(context.Background(), 3, "x"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	for _, r := range []int{0, 6, -1} {
		if _, err := f.svc.SaveMoodEntry(userCtx("u1"), r, ""); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d: expected ErrInvalidRating, got %v", r, err)
		}
	}
	if n := f.repo.count("UpsertDaily"); n != 0 {
		t.Fatalf("expected no writes, got %d", n)
	}
}

// A fresh user saves and reads back today, then the cache is used.
func TestSaveThenReadToday(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("u1")

	if got := f.svc.GetTodayMoodEntry(ctx); got != nil {
		t.Fatalf("expected nil before logging, got %+v", got)
	}
	saved, err := f.svc.SaveMoodEntry(ctx, 4, "good day")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Date != "2024-03-12" || saved.Rating != 4 {
		t.Fatalf("unexpected saved entry %+v", saved)
	}

	got := f.svc.GetTodayMoodEntry(ctx)
	if got == nil || got.Rating != 4 || got.Details != "good day" {
		t.Fatalf("expected shadow read of saved entry, got %+v", got)
	}
	if n := f.repo.count("EntryOn"); n != 1 {
		t.Fatalf("shadow should answer without backend, EntryOn calls = %d", n)
	}
	if streak := f.svc.GetMoodStreak(ctx); streak != 1 {
		t.Fatalf("expected streak 1, got %d", streak)
	}
}

func TestSaveSanitizesDetails(t *testing.T) {
	f := newFixture(t)
	saved, err := f.svc.SaveMoodEntry(userCtx("u1"), 3, "  <b>tea</b> & cake<script>x()</script> ")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Details != "tea & cake" {
		t.Fatalf("unexpected details %q", saved.Details)
	}
}

// After a successful write no derived value is served stale.
func TestSaveInvalidatesDerivedCaches(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("u1")
	f.repo.put("u1", "2024-03-11", 2, "")
	f.repo.put("u1", "2024-03-12", 1, "")

	if s := f.svc.GetMoodStreak(ctx); s != 2 {
		t.Fatalf("expected streak 2, got %d", s)
	}
	if avg := f.svc.GetWeeklyAverageMood(ctx); avg == nil || *avg != 1.5 {
		t.Fatalf("expected average 1.5, got %v", avg)
	}
	for _, days := range []int{14, 30} {
		if got := f.svc.GetRecentMoodEntries(ctx, days); len(got) != 2 {
			t.Fatalf("expected 2 entries in %d day window, got %d", days, len(got))
		}
	}
	if e := f.svc.GetTodayMoodEntry(ctx); e == nil || e.Rating != 1 {
		t.Fatalf("expected today rating 1, got %+v", e)
	}
	keys := []cache.Key{
		cache.TodayMood("u1"),
		cache.RecentEntries("u1", 7),
		cache.RecentEntries("u1", 14),
		cache.RecentEntries("u1", 30),
		cache.WeeklyAverage("u1"),
		cache.Streak("u1"),
	}
	var raw json.RawMessage
	for _, key := range keys {
		if !f.svc.Cache().Get(ctx, key, &raw) {
			t.Fatalf("%s should be cached before the write", key)
		}
	}

	if _, err := f.svc.SaveMoodEntry(ctx, 5, ""); err != nil {
		t.Fatalf("save: %v", err)
	}

	for _, key := range keys {
		if f.svc.Cache().Get(ctx, key, &raw) {
			t.Errorf("%s still cached after the write", key)
		}
	}
	betweenCalls := f.repo.count("EntriesBetween")
	if s := f.svc.GetMoodStreak(ctx); s != 2 || f.repo.count("LoggedDates") != 2 {
		t.Errorf("streak not recomputed: %d after %d calls", s, f.repo.count("LoggedDates"))
	}
	if avg := f.svc.GetWeeklyAverageMood(ctx); avg == nil || *avg != 3.5 {
		t.Errorf("weekly average served stale: %v", avg)
	}
	for _, days := range []int{7, 14, 30} {
		got := f.svc.GetRecentMoodEntries(ctx, days)
		if len(got) != 2 || got[1].Rating != 5 {
			t.Errorf("%d day window served stale: %+v", days, got)
		}
	}
	if n := f.repo.count("EntriesBetween") - betweenCalls; n != 3 {
		t.Errorf("expected 3 window refetches after the write, got %d", n)
	}
	if e := f.svc.GetTodayMoodEntry(ctx); e == nil || e.Rating != 5 {
		t.Errorf("today served stale: %+v", e)
	}
}

func TestReadsAreCachedWithinTTL(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("u1")
	f.repo.put("u1", "2024-03-10", 5, "")

	for i := 0; i < 3; i++ {
		f.svc.GetRecentMoodEntries(ctx, 7)
		f.svc.GetMoodStreak(ctx)
	}
	if n := f.repo.count("EntriesBetween"); n != 1 {
		t.Errorf("recent entries: expected 1 backend call, got %d", n)
	}
	if n := f.repo.count("LoggedDates"); n != 1 {
		t.Errorf("streak: expected 1 backend call, got %d", n)
	}

	f.clock.Set(now0.Add(2 * time.Hour))
	f.svc.GetRecentMoodEntries(ctx, 7)
	if n := f.repo.count("EntriesBetween"); n != 2 {
		t.Errorf("recent entries past TTL: expected refetch, got %d calls", n)
	}
}

func TestEmptyRecentIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("u1")
	for i := 0; i < 2; i++ {
		if got := f.svc.GetRecentMoodEntries(ctx, 7); got == nil || len(got) != 0 {
			t.Fatalf("expected empty non-nil slice, got %v", got)
		}
	}
	if n := f.repo.count("EntriesBetween"); n != 2 {
		t.Fatalf("expected empty results to bypass cache, got %d calls", n)
	}
}

func TestWeeklyAverageNullIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("u1")
	for i := 0; i < 2; i++ {
		if avg := f.svc.GetWeeklyAverageMood(ctx); avg != nil {
			t.Fatalf("expected nil average, got %v", *avg)
		}
	}
	if n := f.repo.count("EntriesBetween"); n != 1 {
		t.Fatalf("expected cached null average, got %d backend calls", n)
	}
}

// The shadow stops answering once the calendar day changes.
func TestShadowIgnoredAfterMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("u1")
	if _, err := f.svc.SaveMoodEntry(ctx, 5, "late"); err != nil {
		t.Fatalf("save: %v", err)
	}
	f.clock.Set(time.Date(2024, 3, 13, 0, 5, 0, 0, time.UTC))
	if got := f.svc.GetTodayMoodEntry(ctx); got != nil {
		t.Fatalf("expected no entry for the new day, got %+v", got)
	}
}

func TestTimezoneDecidesToday(t *testing.T) {
	f := newFixture(t)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ctx := WithSession(context.Background(), Session{UserID: "u1", Location: tokyo})
	saved, err := f.svc.SaveMoodEntry(ctx, 3, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Date != "2024-03-13" {
		t.Fatalf("expected Tokyo date 2024-03-13, got %s", saved.Date)
	}
}

// The premium aggregate is the rounded mean of the day's detailed ratings.
func TestPremiumAggregation(t *testing.T) {
	f := newFixture(t)
	f.tiers["p1"] = models.TierPremium
	ctx := userCtx("p1")

	if _, err := f.svc.SaveMoodEntry(ctx, 5, "lunch"); err != nil {
		t.Fatalf("save: %v", err)
	}
	f.clock.Set(now0.Add(time.Hour))
	saved, err := f.svc.SaveMoodEntry(ctx, 2, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Rating != 4 {
		t.Fatalf("expected rounded mean 4 of [5 2], got %d", saved.Rating)
	}
	if saved.Details != "lunch" {
		t.Fatalf("empty note should keep details, got %q", saved.Details)
	}

	detailed := f.svc.GetTodayDetailedMoodEntries(ctx)
	if len(detailed) != 2 || detailed[0].Time != "18:30:00" || detailed[1].Time != "19:30:00" {
		t.Fatalf("unexpected detailed entries %+v", detailed)
	}
	today := f.svc.GetTodayMoodEntry(ctx)
	if today == nil || today.Rating != 4 {
		t.Fatalf("expected today aggregate 4, got %+v", today)
	}
}

func TestPremiumConcurrentSavesSerialize(t *testing.T) {
	f := newFixture(t)
	f.tiers["p1"] = models.TierPremium
	ctx := userCtx("p1")

	var wg sync.WaitGroup
	for _, r := range []int{1, 2, 3, 4, 5} {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			if _, err := f.svc.SaveMoodEntry(ctx, r, ""); err != nil {
				t.Errorf("save %d: %v", r, err)
			}
		}(r)
	}
	wg.Wait()

	got := f.svc.GetTodayMoodEntry(ctx)
	if got == nil || got.Rating != 3 {
		t.Fatalf("expected aggregate 3 over all five ratings, got %+v", got)
	}
}

// Reads never fail and fall back to the sample dataset.
func TestReadsFallBackToSample(t *testing.T) {
	sample := DefaultSample()

	t.Run("no session", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		if got := f.svc.GetTodayMoodEntry(ctx); got == nil || got.ID != "sample-1" {
			t.Errorf("today: got %+v", got)
		}
		if got := f.svc.GetRecentMoodEntries(ctx, 7); len(got) != len(sample.Entries) {
			t.Errorf("recent: got %d entries", len(got))
		}
		if got := f.svc.GetRecentMoodEntries(ctx, 2); len(got) != 2 || got[1].Date != "2023-11-15" {
			t.Errorf("recent(2): got %+v", got)
		}
		if got := f.svc.GetMoodStreak(ctx); got != 0 {
			t.Errorf("streak: got %d", got)
		}
		if avg := f.svc.GetWeeklyAverageMood(ctx); avg == nil || *avg != 3.4 {
			t.Errorf("weekly average: got %v", avg)
		}
		if got := f.svc.GetTodayDetailedMoodEntries(ctx); len(got) != 2 {
			t.Errorf("detailed: got %d", len(got))
		}
		if _, ok := f.svc.PendingMoodEntry(ctx); ok {
			t.Errorf("pending without session should be empty")
		}
		if f.repo.count("EntryOn")+f.repo.count("EntriesBetween")+f.repo.count("LoggedDates") != 0 {
			t.Errorf("no backend call expected without a session")
		}
	})

	t.Run("backend down", func(t *testing.T) {
		f := newFixture(t)
		f.repo.setFail(errBackend)
		ctx := userCtx("u1")
		if got := f.svc.GetTodayMoodEntry(ctx); got == nil || got.ID != "sample-1" {
			t.Errorf("today: got %+v", got)
		}
		if got := f.svc.GetRecentMoodEntries(ctx, 30); len(got) != len(sample.Entries) {
			t.Errorf("recent: got %d entries", len(got))
		}
		if got := f.svc.GetCurrentWeekMoodEntries(ctx); len(got) != len(sample.Entries) {
			t.Errorf("week: got %d entries", len(got))
		}
		if got := f.svc.GetMostRecentMoodEntry(ctx); got == nil {
			t.Errorf("latest: expected sample entry")
		}
		if got := f.svc.GetMoodStreak(ctx); got != 0 {
			t.Errorf("streak: got %d", got)
		}
		f.svc.GetWeeklyAverageMood(ctx)

		// Sample fallbacks must not be cached as the user's data.
		f.repo.setFail(nil)
		f.repo.put("u1", "2024-03-12", 1, "")
		if avg := f.svc.GetWeeklyAverageMood(ctx); avg == nil || *avg != 1 {
			t.Errorf("weekly average cached from sample: %v", avg)
		}
		if got := f.svc.GetMoodStreak(ctx); got != 1 {
			t.Errorf("streak cached from sample: %d", got)
		}
	})
}

// A failed write keeps the input in scratch storage and reports failure.
func TestFailedWriteGoesToScratch(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("u1")
	f.repo.setFail(errBackend)

	_, err := f.svc.SaveMoodEntry(ctx, 2, "offline")
	if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, errBackend) {
		t.Fatalf("expected wrapped write failure, got %v", err)
	}
	pending, ok := f.svc.PendingMoodEntry(ctx)
	if !ok || pending.Rating != 2 || pending.Details != "offline" || pending.Date != "2024-03-12" {
		t.Fatalf("unexpected pending entry %+v ok=%v", pending, ok)
	}
	if got := f.svc.GetTodayMoodEntry(ctx); got != nil && got.Rating == 2 {
		t.Fatalf("failed write must not be shadowed as today's entry")
	}

	f.repo.setFail(nil)
	if _, err := f.svc.SaveMoodEntry(ctx, 3, ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := f.svc.PendingMoodEntry(ctx); ok {
		t.Fatalf("pending entry should be cleared after a successful save")
	}
}

// Cached values survive a restart through the durable tier.
func TestCacheSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("u1")
	f.repo.put("u1", "2024-03-12", 4, "")
	f.repo.put("u1", "2024-03-11", 4, "")

	if s := f.svc.GetMoodStreak(ctx); s != 2 {
		t.Fatalf("expected streak 2, got %d", s)
	}
	if err := f.svc.Cache().Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	store := cache.NewStore(cache.Options{Durable: f.durable, Now: f.clock.Now})
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	restarted := NewMoodService(Deps{Repo: f.repo, Cache: store, Now: f.clock.Now})

	f.clock.Set(now0.Add(30 * time.Minute))
	if s := restarted.GetMoodStreak(ctx); s != 2 {
		t.Fatalf("expected cached streak 2 after restart, got %d", s)
	}
	if n := f.repo.count("LoggedDates"); n != 1 {
		t.Fatalf("expected durable hit after restart, got %d backend calls", n)
	}
}

func TestCurrentWeekStartsSunday(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("u1")
	f.repo.put("u1", "2024-03-09", 1, "") // Saturday before
	f.repo.put("u1", "2024-03-10", 2, "") // Sunday
	f.repo.put("u1", "2024-03-12", 3, "")

	got := f.svc.GetCurrentWeekMoodEntries(ctx)
	if len(got) != 2 || got[0].Date != "2024-03-10" || got[1].Date != "2024-03-12" {
		t.Fatalf("unexpected week %+v", got)
	}
	if avg := f.svc.GetAverageMood(ctx, 30); avg == nil || *avg != 2 {
		t.Fatalf("expected 30 day average 2, got %v", avg)
	}
	if latest := f.svc.GetMostRecentMoodEntry(ctx); latest == nil || latest.Date != "2024-03-12" {
		t.Fatalf("unexpected latest %+v", latest)
	}
}
