package domain

import "errors"

// Fatal errors abort a run before anything is written
var (
	// ErrInputNotFound is returned when the product source does not exist
	ErrInputNotFound = errors.New("product source not found")

	// ErrInvalidInput is returned when the product source cannot be parsed
	ErrInvalidInput = errors.New("product source is malformed")

	// ErrPhotoDirUnavailable is returned when the photo directory cannot be listed
	ErrPhotoDirUnavailable = errors.New("photo directory unavailable")

	// ErrBackupFailed is returned when the pre-write snapshot could not be persisted
	ErrBackupFailed = errors.New("backup snapshot failed")
)

// Per-record errors are collected as issues and never abort a run
var (
	// ErrMissingTitle marks a record without a title
	ErrMissingTitle = errors.New("missing title")

	// ErrDamagedTitle marks a title made only of punctuation or whitespace
	ErrDamagedTitle = errors.New("damaged title")

	// ErrInvalidPrice marks a non-numeric or negative price
	ErrInvalidPrice = errors.New("invalid price")

	// ErrZeroPrice marks a product without a positive price
	ErrZeroPrice = errors.New("zero price")

	// ErrNoCandidate marks a product with no photo above the threshold
	ErrNoCandidate = errors.New("no photo candidate above threshold")

	// ErrAmbiguousCategory marks a title matching conflicting categories
	ErrAmbiguousCategory = errors.New("ambiguous category")

	// ErrNoCategory marks a title no rule matched
	ErrNoCategory = errors.New("no category rule matched")

	// ErrStoreFailure is returned when a key-based store update fails
	ErrStoreFailure = errors.New("product store update failed")
)

// Service errors
var (
	// ErrProductNotFound is returned when the store has no product with the id
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrRateLimited is returned when the storefront API keeps rejecting calls
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)
