package services

import (
	"context"
	"time"

	"github.com/cppla/moodlog/models"
)

// Session is the authenticated user a call runs for.
type Session struct {
	UserID string
	// Location is the user's timezone; nil means the service default.
	Location *time.Location
}

// SessionProvider resolves the session of the current call.
type SessionProvider interface {
	Session(ctx context.Context) (Session, bool)
}

// TierProvider reports the subscription tier of a user.
type TierProvider interface {
	CurrentTier(ctx context.Context, userID string) (models.Tier, error)
}

// MoodRepository is the remote table access the gateway needs.
type MoodRepository interface {
	EntryOn(ctx context.Context, userID, date string) (*models.MoodEntry, error)
	EntriesBetween(ctx context.Context, userID, from, to string) ([]models.MoodEntry, error)
	DetailedEntriesOn(ctx context.Context, userID, date string) ([]models.DetailedMoodEntry, error)
	LoggedDates(ctx context.Context, userID string) ([]string, error)
	MostRecent(ctx context.Context, userID string) (*models.MoodEntry, error)
	UpsertDaily(ctx context.Context, userID, date string, rating int, details string) (*models.MoodEntry, error)
	RecordDetailed(ctx context.Context, detailed models.DetailedMoodEntry) (*models.MoodEntry, error)
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom extracts the session stored by WithSession.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	if !ok || s.UserID == "" {
		return Session{}, false
	}
	return s, true
}

// ContextSessions reads sessions put on the context by the auth middleware.
type ContextSessions struct{}

func (ContextSessions) Session(ctx context.Context) (Session, bool) {
	return SessionFrom(ctx)
}
