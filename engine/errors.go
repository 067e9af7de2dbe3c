package engine

import "errors"

var (
	// ErrQuoteUnavailable is returned when a venue cannot price a segment.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrTradeReverted is returned when the flash trade was mined with a failed status.
	ErrTradeReverted = errors.New("trade reverted")
	// ErrTradeSubmissionFailed is returned when the flash trade could not be submitted.
	ErrTradeSubmissionFailed = errors.New("trade submission failed")
	// ErrTradeTimedOut is returned when no confirmation arrived before the deadline.
	ErrTradeTimedOut = errors.New("trade confirmation timed out")
	// ErrConfigurationInvalid is returned for malformed routes, tokens or environment.
	ErrConfigurationInvalid = errors.New("configuration invalid")
)
