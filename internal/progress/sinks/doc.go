// Package sinks implements progress consumers: structured logging and
// Prometheus collectors.
package sinks
