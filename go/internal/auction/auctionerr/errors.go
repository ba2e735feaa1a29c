// Package auctionerr holds the error taxonomy shared by the auction engine.
// Callers match with errors.Is; every layer wraps with %w.
package auctionerr

import "errors"

var (
	// ErrStateConflict is returned when a round or tiebreaker is not in the status an operation expects.
	ErrStateConflict = errors.New("state conflict")
	// ErrRoundNotActive is returned for bids outside a round's open bidding window.
	ErrRoundNotActive     = errors.New("round not active")
	ErrInsufficientBudget = errors.New("insufficient budget")
	// ErrTeamNotEligible is returned when a team's squad is full or it is not part of a tiebreaker.
	ErrTeamNotEligible = errors.New("team not eligible")
	// ErrAlreadyAllocated is returned when a player already has an allocation in the season.
	ErrAlreadyAllocated = errors.New("player already allocated")
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	// ErrFinalizationFailure wraps unexpected errors during a finalization pass. The round stays FINALIZING.
	ErrFinalizationFailure = errors.New("finalization failure")
	// ErrTiebreakerPending is returned when resolving a tiebreaker that is neither complete nor past its deadline.
	ErrTiebreakerPending = errors.New("tiebreaker pending")

	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrPermissionDenied = errors.New("permission denied")
)
