package domain

import "time"

// SuppressionReason enumerates why an address was suppressed.
type SuppressionReason string

const (
	ReasonHardBounce      SuppressionReason = "hard_bounce"
	ReasonRepeatedBounces SuppressionReason = "repeated_soft_bounces"
	ReasonComplaint       SuppressionReason = "spam_complaint"
	ReasonPolicyRejection SuppressionReason = "policy_rejection"
	ReasonManual          SuppressionReason = "manual"
)

// SuppressionSource indicates where the suppression signal originated.
type SuppressionSource string

const (
	SourceProviderReject SuppressionSource = "provider_reject"
	SourceBounceEvent    SuppressionSource = "bounce_event"
	SourceComplaintEvent SuppressionSource = "complaint_event"
	SourceManual         SuppressionSource = "manual"
)

// SuppressionEntry is a single entry on the block-list. Presence means the
// recipient is never sent to until the entry expires or is removed.
type SuppressionEntry struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Reason    SuppressionReason `json:"reason"`
	Source    SuppressionSource `json:"source"`
	CreatedAt time.Time         `json:"created_at"`
	TTL       time.Duration     `json:"-"`
}
