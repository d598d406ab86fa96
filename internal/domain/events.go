package domain

import "time"

// BounceType distinguishes permanent from transient delivery failures.
type BounceType string

const (
	BouncePermanent BounceType = "permanent"
	BounceTransient BounceType = "transient"
)

// BounceEvent is pushed by the external event processor when a provider
// reports a bounce after acceptance.
type BounceEvent struct {
	Email     string     `json:"email"`
	Type      BounceType `json:"bounce_type"`
	Timestamp time.Time  `json:"timestamp"`
}

// ComplaintEvent is pushed when a recipient marks a message as spam.
type ComplaintEvent struct {
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}
