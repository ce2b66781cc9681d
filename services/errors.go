package services

import "errors"

var (
	// ErrNoSession means the call has no authenticated user; nothing was written.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidRating means the rating is outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrWriteFailed means the backend write failed; the input was kept in scratch storage.
	ErrWriteFailed = errors.New("mood entry not persisted")
)
