// Package config loads daemon-level settings from KSI_-prefixed
// environment variables. Per-component tuning stays on the functional
// options of each constructor; this package only covers what an operator
// reasonably sets from outside: cascade and lifecycle bounds, the
// context store TTL, and logging.
package config
