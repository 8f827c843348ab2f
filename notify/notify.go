package notify

import (
	"errors"
	"log/slog"
)

// ErrNoSink is returned when a publish run has no
// notification sink to report its outcome into.
var ErrNoSink = errors.New("no notification sink")

// Sink renders the outcome of a publish run. Exactly
// one method is called per run.
//
// Pattern: Strategy -- embedders supply their own
// rendering surface.
type Sink interface {
	// Success reports a created pull request by URL.
	Success(url string)
	// Info reports a non-failure outcome that carries
	// no URL, such as an already existing pull
	// request.
	Info(msg string)
	// Error reports a failed run.
	Error(msg string)
}

// SinkFuncs adapts plain functions to the Sink
// interface. Nil functions are no-ops.
type SinkFuncs struct {
	SuccessFunc func(url string)
	InfoFunc    func(msg string)
	ErrorFunc   func(msg string)
}

// Success implements Sink.
func (s SinkFuncs) Success(url string) {
	if s.SuccessFunc != nil {
		s.SuccessFunc(url)
	}
}

// Info implements Sink.
func (s SinkFuncs) Info(msg string) {
	if s.InfoFunc != nil {
		s.InfoFunc(msg)
	}
}

// Error implements Sink.
func (s SinkFuncs) Error(msg string) {
	if s.ErrorFunc != nil {
		s.ErrorFunc(msg)
	}
}

// LogSink renders outcomes through slog.
type LogSink struct{}

// Success implements Sink.
func (LogSink) Success(url string) {
	slog.Info("pull request created", "url", url)
}

// Info implements Sink.
func (LogSink) Info(msg string) {
	slog.Info(msg)
}

// Error implements Sink.
func (LogSink) Error(msg string) {
	slog.Error(msg)
}
