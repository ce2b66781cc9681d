package cache

import "time"

// Default TTLs per kind.
const (
	DefaultTodayMoodTTL     = time.Hour
	DefaultRecentEntriesTTL = 2 * time.Hour
	DefaultTodayDetailedTTL = time.Hour
	DefaultStreakTTL        = 4 * time.Hour
	DefaultWeeklyAverageTTL = 2 * time.Hour
)

// Policy maps a key's kind to its TTL and decides freshness.
type Policy struct {
	ttls map[Kind]time.Duration
}

// DefaultPolicy returns the policy with the default TTLs.
func DefaultPolicy() Policy {
	return Policy{ttls: map[Kind]time.Duration{
		KindTodayMood:     DefaultTodayMoodTTL,
		KindRecentEntries: DefaultRecentEntriesTTL,
		KindTodayDetailed: DefaultTodayDetailedTTL,
		KindStreak:        DefaultStreakTTL,
		KindWeeklyAverage: DefaultWeeklyAverageTTL,
	}}
}

// NewPolicy starts from the defaults and applies overrides; non-positive overrides are ignored.
func NewPolicy(overrides map[Kind]time.Duration) Policy {
	p := DefaultPolicy()
	for kind, ttl := range overrides {
		if ttl > 0 {
			p.ttls[kind] = ttl
		}
	}
	return p
}

// TTL returns the TTL of kind. Unknown kinds get the today-mood TTL.
func (p Policy) TTL(kind Kind) time.Duration {
	if ttl, ok := p.ttls[kind]; ok {
		return ttl
	}
	if p.ttls == nil {
		return DefaultPolicy().TTL(kind)
	}
	return p.ttls[KindTodayMood]
}

// IsFresh reports whether a value written at writtenAt is still valid at now.
func (p Policy) IsFresh(key Key, writtenAt, now time.Time) bool {
	return now.Sub(writtenAt) < p.TTL(key.Kind)
}

// MaxTTL is the longest TTL of any kind.
func (p Policy) MaxTTL() time.Duration {
	var longest time.Duration
	for _, kind := range Kinds {
		if ttl := p.TTL(kind); ttl > longest {
			longest = ttl
		}
	}
	return longest
}
