// Package warmup ramps dedicated sending IPs from cold to full volume.
//
// Each IP walks a 30-day schedule of daily and hourly send caps. The phase
// is a pure function of the day and never regresses. A bounce, complaint,
// or reputation breach pauses the IP automatically; only an operator
// resumes it. The scheduler tops up each healthy IP with seed traffic so
// an idle IP still makes schedule progress.
package warmup
