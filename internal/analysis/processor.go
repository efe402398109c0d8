// SPDX-License-Identifier: MIT

// Package analysis holds the per-tick analysis core: the sample
// accumulation store, the spectral transform and the bucket summarizer.
package analysis

import "errors"

// ErrEmptyInput is returned when a computation that needs samples is
// handed an empty window. Callers treat it as "no data this tick".
var ErrEmptyInput = errors.New("analysis: empty input")

// Analyzer turns a window into spectral magnitudes.
type Analyzer interface {
	Analyze(window []float64) ([]float64, error)
}

var _ Analyzer = (*SpectralAnalyzer)(nil)
