package db

import "errors"

// Persistence contract errors. Callers match them with errors.Is.
var (
	// ErrSiteNotFound is returned when a site or its autopilot row does not exist.
	ErrSiteNotFound = errors.New("site not found")
	// ErrScheduledRunNotFound is returned when no row exists for a site and date.
	ErrScheduledRunNotFound = errors.New("scheduled run not found")
	// ErrScheduledRunNotPending guards deletion of in-flight or historical rows.
	ErrScheduledRunNotPending = errors.New("scheduled run is not pending")
	// ErrStatusConflict is returned when a conditional status transition loses the race.
	ErrStatusConflict = errors.New("scheduled run status changed concurrently")
	// ErrInvalidTransition is returned for transitions the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid scheduled run status transition")
	// ErrNoOpportunity is returned when a site has no unused keyword left.
	ErrNoOpportunity = errors.New("no unused keyword opportunity available")
	// ErrKeywordNotFound is returned for unknown keyword ids.
	ErrKeywordNotFound = errors.New("keyword not found")
	// ErrArticleNotFound is returned for unknown article ids.
	ErrArticleNotFound = errors.New("article not found")
)
