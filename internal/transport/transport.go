// SPDX-License-Identifier: MIT

// Package transport carries published updates out of the process.
package transport

import (
	"errors"

	"micscope/internal/pipeline"
)

// Sink is a pipeline sink that owns resources.
// Implementations must be safe for concurrent use and must not block
// Publish on slow consumers.
type Sink interface {
	pipeline.Sink
	Close() error
}

// Fanout publishes every update to each of its sinks.
type Fanout []pipeline.Sink

// Publish forwards u to all sinks and joins their errors.
func (f Fanout) Publish(u pipeline.Update) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that can be closed.
func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

var _ Sink = Fanout(nil)
