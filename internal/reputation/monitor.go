// Package reputation supplies bounce/complaint/reputation metrics for
// regions and warm-up IPs. The engine only consumes the Monitor interface;
// the production implementation reads AWS SES VDM statistics.
package reputation

import (
	"context"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// Monitor is the external reputation feed. scope is a region name or a
// warm-up IP address.
type Monitor interface {
	Metrics(ctx context.Context, scope string) (domain.ReputationMetrics, error)
}

// Fixed is a Monitor returning the same metrics for every scope. Used in
// tests and in deployments without a VDM subscription.
type Fixed struct {
	M domain.ReputationMetrics
}

// Metrics returns the fixed snapshot.
func (f Fixed) Metrics(ctx context.Context, scope string) (domain.ReputationMetrics, error) {
	return f.M, nil
}
