// Package service provides business logic implementations.
package service

import "errors"

// Validation and state errors surfaced to callers.
var (
	ErrInvalidVenue         = errors.New("venue place id is required")
	ErrInvalidMode          = errors.New("unknown battle mode")
	ErrInvalidUser          = errors.New("user id is required")
	ErrParticipantCount     = errors.New("battle requires between 2 and 10 participants")
	ErrDuplicateParticipant = errors.New("duplicate participant")
	ErrBattleNotActive      = errors.New("battle is not active")
	ErrNotParticipant       = errors.New("user is not a battle participant")
)
