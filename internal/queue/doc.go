// Package queue holds messages the dispatcher deferred, mainly when the
// rate limiter refused a token. The queue is a Redis list: enqueue pushes
// left, the drainer pops right, so deferred messages resubmit in arrival
// order. Messages carry their attempt count; the dispatcher refuses to
// re-defer past the cap.
package queue
