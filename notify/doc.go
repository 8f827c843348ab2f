// Package notify defines the outcome surface a publish run reports into.
// A Sink renders exactly one outcome per run: success with a pull request
// URL, informational without one, or an error. LogSink renders through the
// standard structured logger; SinkFuncs adapts plain functions for tests and
// embedders.
package notify
