package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyExists   = errors.New("entity already exists")

	// Redemption eligibility errors. Each maps to a distinct user-facing
	// reason and must never be collapsed into a generic failure.
	ErrEntitlementUnavailable = errors.New("entitlement unavailable")
	ErrQuotaExceededGlobal    = errors.New("entitlement global quota exceeded")
	ErrQuotaExceededLifetime  = errors.New("member lifetime quota exceeded")
	ErrQuotaExceededDaily     = errors.New("member daily quota exceeded")
	ErrInsufficientBalance    = errors.New("insufficient points balance")

	// Token verification errors.
	ErrTokenNotFound        = errors.New("redemption token not found")
	ErrTokenExpired         = errors.New("redemption token expired")
	ErrTokenAlreadyConsumed = errors.New("redemption token already consumed")

	// ErrConcurrencyConflict signals a lost race on the same member or token.
	// Safe to retry once for redemption requests, never for consumption.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// Infra-level errors surfaced as generic "try again" to clients.
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context for query")
)
