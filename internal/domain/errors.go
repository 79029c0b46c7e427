package domain

import "errors"

var (
	ErrRateLimitExhausted      = errors.New("rate limit retries exhausted")
	ErrCollectorFailure        = errors.New("collector failure")
	ErrMandatorySignalMissing  = errors.New("mandatory market signal missing")
	ErrPersistence             = errors.New("persistence failure")
	ErrClassificationAmbiguous = errors.New("no event type matched")
	ErrNotFound                = errors.New("not found")
)

// CollectorError records which domain failed for one asset.
type CollectorError struct {
	Domain SignalDomain
	Asset  string
	Err    error
}

func (e *CollectorError) Error() string {
	return string(e.Domain) + " collector for " + e.Asset + ": " + e.Err.Error()
}

func (e *CollectorError) Unwrap() []error {
	return []error{ErrCollectorFailure, e.Err}
}
