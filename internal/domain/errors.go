package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Value errors
	ErrOutOfRange = errors.New("value out of normalized range [0, 1]")

	// Registry errors
	ErrProviderNotFound = errors.New("provider not registered")

	// API errors
	ErrNoCandidates = errors.New("no candidates supplied")
)
