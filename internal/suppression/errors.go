package suppression

import "errors"

// Sentinel errors for the suppression store.
var (
	ErrNotFound = errors.New("suppression entry not found")
)
