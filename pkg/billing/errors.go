// Package billing implements the deterministic bill computation core: it
// turns interval usage plus a declarative tariff into per-month, per-charge,
// per-interval monetary attributions.
package billing

import "errors"

var (
	// ErrZoneUnknown is returned when the customer's IANA time zone cannot
	// be loaded.
	ErrZoneUnknown = errors.New("unknown time zone")

	// ErrInvalidStep is returned when the interval step does not divide a
	// day evenly or disagrees with the customer's cadence.
	ErrInvalidStep = errors.New("invalid interval step")

	// ErrInconsistentUsage is returned when the usage records disagree with
	// the customer's billing interval.
	ErrInconsistentUsage = errors.New("usage inconsistent with billing interval")

	// ErrMissingData is returned when no gap strategy can repair the usage
	// series (e.g. no observations at all).
	ErrMissingData = errors.New("insufficient usage data")

	// ErrCancelled is returned when the computation is cancelled via its
	// context. No partial result is ever returned alongside it.
	ErrCancelled = errors.New("computation cancelled")
)
