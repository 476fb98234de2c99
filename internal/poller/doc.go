// Package poller drives the fetch-and-publish loop for one PADM target:
// fixed-interval cycles, a bounded per-cycle retry budget with exponential
// backoff and jitter, forced token refresh on auth rejection, and atomic
// publication of results into the metric store. Poll failures are contained
// here: they surface as staleness and status metrics, never as a crash.
package poller
