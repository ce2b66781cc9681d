// Package cache holds the two-tier mood cache: an in-process map backed by a
// durable key-value tier (Redis or SQL), the per-kind staleness policy, and
// the optimistic same-day shadow of the last submitted rating.
//
// Durable values are JSON envelopes:
//
//	{"kind": "streak", "payload": 3, "written_at": "2024-01-10T09:00:00Z"}
//
// Freshness is always judged from written_at against the policy TTL of the
// kind; the durable tier's own expiry (when any) is only a garbage bound.
package cache

import (
	"strconv"
	"strings"
)

// Kind names an entity class of cached values. Each kind has its own TTL.
type Kind string

const (
	KindTodayMood     Kind = "today_mood"
	KindRecentEntries Kind = "recent_entries"
	KindTodayDetailed Kind = "today_detailed"
	KindStreak        Kind = "streak"
	KindWeeklyAverage Kind = "weekly_average"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindTodayMood, KindRecentEntries, KindTodayDetailed, KindStreak, KindWeeklyAverage}

// Key identifies one cached value of a user. Days is only meaningful for KindRecentEntries.
type Key struct {
	Kind   Kind
	UserID string
	Days   int
}

func TodayMood(userID string) Key     { return Key{Kind: KindTodayMood, UserID: userID} }
func TodayDetailed(userID string) Key { return Key{Kind: KindTodayDetailed, UserID: userID} }
func Streak(userID string) Key        { return Key{Kind: KindStreak, UserID: userID} }
func WeeklyAverage(userID string) Key { return Key{Kind: KindWeeklyAverage, UserID: userID} }

// RecentEntries keys the recent-entries window of the given length.
func RecentEntries(userID string, days int) Key {
	return Key{Kind: KindRecentEntries, UserID: userID, Days: days}
}

// String renders the durable key, e.g. cache:<user>:recent_entries:7.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.KindPrefix())
	if k.Kind == KindRecentEntries {
		b.WriteString(strconv.Itoa(k.Days))
	}
	return b.String()
}

// KindPrefix is the prefix shared by every key of this user and kind.
func (k Key) KindPrefix() string {
	prefix := UserPrefix(k.UserID) + string(k.Kind)
	if k.Kind == KindRecentEntries {
		prefix += ":"
	}
	return prefix
}

// UserPrefix is the prefix shared by all cache keys of a user.
func UserPrefix(userID string) string {
	return Namespace + userID + ":"
}

// Namespace prefixes every cache key so cache items can be told apart from other durable data.
const Namespace = "cache:"
