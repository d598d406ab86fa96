// Package provider wraps the cloud email-transport API. One Client exists
// per configured region; the dispatcher iterates them in failover order.
package provider

import (
	"context"
	"errors"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// Quota is the provider's 24-hour sending allowance snapshot.
type Quota struct {
	Max24HourSend   float64
	SentLast24Hours float64
	SendingEnabled  bool
}

// Client is the per-region provider surface the dispatcher consumes.
type Client interface {
	// Send hands one message to the provider and returns its message id.
	Send(ctx context.Context, msg *domain.Message) (string, error)
	// Quota returns current 24-hour usage for the region.
	Quota(ctx context.Context) (Quota, error)
	// Region returns the region name this client sends through.
	Region() string
}

// Kind classifies a failed send for the failover decision.
type Kind int

const (
	// KindTransient covers timeouts, network errors, and provider 5xx.
	// The dispatcher tries the next region.
	KindTransient Kind = iota
	// KindThrottled means the provider is rate limiting this region.
	// Treated like transient: the next region may still accept.
	KindThrottled
	// KindRejected is a content/policy rejection indicating a bounce or
	// complaint. Terminal: the recipient is suppressed and no further
	// region is tried.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindThrottled:
		return "throttled"
	case KindRejected:
		return "rejected"
	default:
		return "transient"
	}
}

// SendError carries the classification alongside the provider error.
type SendError struct {
	Kind Kind
	Code string
	Err  error
}

func (e *SendError) Error() string {
	return "provider send (" + e.Kind.String() + "): " + e.Err.Error()
}

func (e *SendError) Unwrap() error { return e.Err }

// ClassifyError extracts the Kind from any send error. Unwrapped/unknown
// errors are transient: the next region gets a chance.
func ClassifyError(err error) Kind {
	var se *SendError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransient
}
