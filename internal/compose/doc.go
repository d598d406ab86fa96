// Package compose finalizes a message before dispatch: deterministic message
// identity, signed open/click tracking, and one-click unsubscribe headers.
//
// Tracking URLs embed base64url payloads signed with truncated HMAC-SHA256.
// The same payload always yields the same URL, so retried messages carry
// identical tracking and duplicates collapse downstream.
package compose
