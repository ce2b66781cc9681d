package services

import (
	"context"
	"encoding/json"

	"github.com/cppla/moodlog/cache"
)

// ScratchEntry is a submission whose backend write failed.
type ScratchEntry struct {
	Rating  int    `json:"rating"`
	Details string `json:"details"`
	Date    string `json:"date"`
}

// Scratch is local-only storage for failed submissions, kept apart from the TTL cache.
type Scratch struct {
	storage cache.Storage
}

func NewScratch(storage cache.Storage) *Scratch {
	return &Scratch{storage: storage}
}

func scratchKey(userID string) string {
	return "scratch:" + userID + ":last_mood"
}

// Write stores e as the pending submission of userID.
func (s *Scratch) Write(ctx context.Context, userID string, e ScratchEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.storage.SetItem(ctx, scratchKey(userID), string(b))
}

// Read returns the pending submission of userID, if any.
func (s *Scratch) Read(ctx context.Context, userID string) (ScratchEntry, bool, error) {
	raw, found, err := s.storage.GetItem(ctx, scratchKey(userID))
	if err != nil || !found {
		return ScratchEntry{}, false, err
	}
	var e ScratchEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return ScratchEntry{}, false, err
	}
	return e, true, nil
}

// Clear drops the pending submission of userID.
func (s *Scratch) Clear(ctx context.Context, userID string) error {
	return s.storage.RemoveItem(ctx, scratchKey(userID))
}
