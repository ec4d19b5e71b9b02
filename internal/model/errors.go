package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound   = errors.New("player not found")
	ErrPlayerExists     = errors.New("player already exists")
	ErrConcurrentUpdate = errors.New("player was modified concurrently")

	// Progression errors
	ErrAlreadyPlayed    = errors.New("already played on this date")
	ErrRollbackRequired = errors.New("rollback required")
	ErrRateLimited      = errors.New("too many push attempts")

	// Ledger errors
	ErrDeathNotFound = errors.New("death event not found")
)
