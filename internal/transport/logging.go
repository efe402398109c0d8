// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "micscope/internal/log"
	"micscope/internal/pipeline"
)

// LoggingSink logs a one-line digest of every Nth update at debug level.
type LoggingSink struct {
	every uint64
	count atomic.Uint64
}

// NewLoggingSink logs one of every `every` updates; values below 1 log all.
func NewLoggingSink(every int) *LoggingSink {
	if every < 1 {
		every = 1
	}
	applog.Infof("Transport: logging every %d update(s)", every)
	return &LoggingSink{every: uint64(every)}
}

// Publish logs u when it falls on the configured stride.
func (l *LoggingSink) Publish(u pipeline.Update) error {
	n := l.count.Add(1)
	if (n-1)%l.every != 0 {
		return nil
	}
	applog.Debugf("Update %d [%s]: %d samples, min %.0f, max %.0f, skipped=%t",
		u.Seq, u.State, u.Samples, u.Min, u.Max, u.Skipped)
	return nil
}

// Seen returns how many updates Publish has seen.
func (l *LoggingSink) Seen() uint64 {
	return l.count.Load()
}

// Close is a no-op.
func (l *LoggingSink) Close() error {
	return nil
}

var _ Sink = (*LoggingSink)(nil)
