// Package suppression implements the recipient block-list.
//
// This is the single source of truth for whether an address may receive
// mail. Suppressions flow in from provider rejections, bounce and complaint
// events, and manual operator actions, and are checked before every send.
//
// The hot path lives in Redis so every dispatcher process observes the same
// set; entries carry a TTL (default 90 days). An optional Postgres archive
// mirrors mutations for operator listing and export; archive failures are
// logged and never block dispatch.
package suppression
