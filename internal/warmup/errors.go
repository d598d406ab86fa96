package warmup

import "errors"

var (
	// ErrNotWarming is returned for an IP with no warm-up record.
	ErrNotWarming = errors.New("warmup: ip not in warm-up")
	// ErrAlreadyWarming is returned when starting an IP a second time.
	ErrAlreadyWarming = errors.New("warmup: ip already in warm-up")
)
