package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultShadowTTL keeps a shadow past any timezone's end of the same day.
const DefaultShadowTTL = 48 * time.Hour

// ShadowEntry is the last rating a user submitted, tagged with its calendar day.
type ShadowEntry struct {
	Rating  int    `json:"rating"`
	Details string `json:"details"`
	Date    string `json:"date"`
}

// Shadow gives read-after-write for today's own mood without a backend round trip.
// Entries stop being served once the day rolls over and are evicted after their TTL.
type Shadow struct {
	entries *gocache.Cache
}

// NewShadow creates an empty Shadow with DefaultShadowTTL.
func NewShadow() *Shadow {
	return NewShadowWithTTL(DefaultShadowTTL)
}

// NewShadowWithTTL creates an empty Shadow whose entries are evicted after ttl.
func NewShadowWithTTL(ttl time.Duration) *Shadow {
	janitor := time.Hour
	if ttl < janitor {
		janitor = ttl
	}
	return &Shadow{entries: gocache.New(ttl, janitor)}
}

// RecordToday remembers rating and details for userID on the day today.
func (s *Shadow) RecordToday(userID, today string, rating int, details string) {
	s.entries.Set(userID, ShadowEntry{Rating: rating, Details: details, Date: today}, gocache.DefaultExpiration)
}

// ReadToday returns the shadow of userID only when it was recorded on today.
func (s *Shadow) ReadToday(userID, today string) (ShadowEntry, bool) {
	v, ok := s.entries.Get(userID)
	if !ok {
		return ShadowEntry{}, false
	}
	e := v.(ShadowEntry)
	if e.Date != today {
		return ShadowEntry{}, false
	}
	return e, true
}
