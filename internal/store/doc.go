// Package store holds the latest known sample per exported series and the
// per-target poll status. Pollers are its only writers; the exposition
// handlers read consistent snapshots, so a scrape never observes a
// half-merged poll cycle and never blocks on upstream I/O.
package store
