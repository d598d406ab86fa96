// Package feedback turns provider bounce and complaint notifications into
// suppression decisions. A permanent bounce or a complaint suppresses the
// address immediately; transient bounces accumulate in a rolling window and
// suppress once they repeat past the threshold.
package feedback
