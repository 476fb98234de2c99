// Package config loads and validates the exporter's YAML configuration:
// listen address, polling schedule, retry and token tuning, and the list of
// PADM targets to poll. Credentials and variable sets are immutable for the
// process lifetime; the file watcher only reports drift.
package config
