// Package dispatch is the send pipeline. Every message passes the same
// gauntlet in order: suppression check, token bucket, composition, then the
// regions in failover order. The pipeline never returns an error to the
// caller; every path resolves to a typed Outcome of sent, queued or failed.
//
// Queued is not a soft success. It means the message is parked on the retry
// queue and a later resubmission will run the full gauntlet again.
package dispatch
