package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrNoSource is returned by Start when no data source is configured.
	ErrNoSource = errors.New("no data source configured")
	// ErrNotStarted is returned by operations that need a started service.
	ErrNotStarted = errors.New("service not started")
	// ErrFetch wraps a failed collection fetch.
	ErrFetch = errors.New("fetch failed")
	// ErrNoSnapshot is returned until a snapshot has loaded successfully.
	ErrNoSnapshot = errors.New("no snapshot loaded")
	// ErrBackpressure is returned when the refresh queue is full.
	ErrBackpressure = errors.New("refresh already pending")
	// ErrNoCurrentSprint is returned when no sprint contains now.
	ErrNoCurrentSprint = errors.New("no current sprint")
	// ErrSprintNotFound is returned for unknown sprint ids.
	ErrSprintNotFound = errors.New("sprint not found")
)
