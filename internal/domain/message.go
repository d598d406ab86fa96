package domain

import (
	"fmt"
	"strings"
	"time"
)

// MessageCategory classifies outbound mail for routing and bookkeeping.
type MessageCategory string

const (
	CategoryTransactional MessageCategory = "transactional"
	CategoryMarketing     MessageCategory = "marketing"
	CategoryNotification  MessageCategory = "notification"
	CategorySystem        MessageCategory = "system"
)

// Message is the caller-constructed outbound email. It is ephemeral: the
// engine never persists it except when deferred onto the retry queue.
type Message struct {
	ID              string            `json:"id"`
	To              []string          `json:"to"`
	FromName        string            `json:"from_name"`
	FromEmail       string            `json:"from_email"`
	ReplyTo         string            `json:"reply_to,omitempty"`
	Subject         string            `json:"subject"`
	HTMLBody        string            `json:"html_body"`
	TextBody        string            `json:"text_body,omitempty"`
	Category        MessageCategory   `json:"category"`
	TenantID        string            `json:"tenant_id"`
	CampaignID      string            `json:"campaign_id,omitempty"`
	RecipientID     string            `json:"recipient_id,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	TrackingEnabled bool              `json:"tracking_enabled"`

	// IPPool forces egress through a named dedicated pool. Set by the
	// warm-up scheduler; empty means the provider's default pool.
	IPPool string `json:"ip_pool,omitempty"`
}

// Validate checks the fields the dispatcher requires before any network call.
func (m *Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	for _, addr := range m.To {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("invalid recipient address %q", addr)
		}
	}
	if m.FromEmail == "" {
		return fmt.Errorf("message has no sender")
	}
	if m.Subject == "" {
		return fmt.Errorf("message has no subject")
	}
	return nil
}

// OutcomeStatus is the tri-state result of a dispatch attempt. Queued is
// deliberately distinct from Sent: it means accepted for later delivery,
// not delivered.
type OutcomeStatus string

const (
	StatusSent   OutcomeStatus = "sent"
	StatusQueued OutcomeStatus = "queued"
	StatusFailed OutcomeStatus = "failed"
)

// Outcome is the typed result of Dispatcher.Send. Every dispatch path
// resolves to one of these; no error escapes the dispatch boundary.
type Outcome struct {
	Status            OutcomeStatus `json:"status"`
	ProviderMessageID string        `json:"provider_message_id,omitempty"`
	Region            string        `json:"region,omitempty"`
	Reason            string        `json:"reason,omitempty"`
}

// Sent reports whether the provider accepted the message.
func (o Outcome) Sent() bool { return o.Status == StatusSent }

// QueuedMessage wraps a serialized Message held on the retry queue.
type QueuedMessage struct {
	Message    Message   `json:"message"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts"`
}
