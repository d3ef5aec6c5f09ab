package config

import "errors"

// Validation errors returned by Config.Validate, wrapped with the offending option name
var (
	// ErrInvalidRange is returned for a delay or count range that is negative or has Min > Max
	ErrInvalidRange = errors.New("invalid range: bounds must be non-negative and min <= max")

	ErrInvalidProbability = errors.New("invalid probability: must be within [0, 1]")

	ErrInvalidBatchSize = errors.New("invalid word batch size: must be positive")

	// ErrInvalidURL is returned for a malformed endpoint, or a search engine URL
	// that is not the root page of its host
	ErrInvalidURL = errors.New("invalid URL")

	ErrInvalidLimit = errors.New("invalid limit: must not be negative")

	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	ErrMissingValue = errors.New("required option is empty")
)
