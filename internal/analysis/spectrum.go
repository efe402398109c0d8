// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"sync"

	"micscope/pkg/bitint"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Backend names the transform implementation.
type Backend string

const (
	BackendGonum Backend = "gonum" // gonum dsp/fourier, radix-2 on the padded length.
	BackendGoDSP Backend = "godsp" // mjibson/go-dsp, same padded length.
)

// SpectralAnalyzer computes the one-sided magnitude spectrum of a real
// window. Windows are zero-padded to the next power of two L and the
// result holds L/2+1 bins, DC through Nyquist. All arithmetic is
// float64 regardless of the capture bit depth.
//
// Analyze is safe for concurrent use but the pipeline calls it from a
// single goroutine; the mutex only guards the reusable workspace.
type SpectralAnalyzer struct {
	backend    Backend
	windowType WindowFunc

	mu     sync.Mutex
	size   int          // Current padded transform length.
	fft    *fourier.FFT // Rebuilt when size changes.
	input  []float64    // Padded, tapered samples.
	coeffs []complex128 // One-sided transform output.
	taperN int          // Window length the taper was built for.
	taper  []float64    // nil for Rectangular.
}

// NewSpectralAnalyzer returns an analyzer for the given backend and
// window function name (see ParseWindowFunc).
func NewSpectralAnalyzer(backend Backend, windowName string) (*SpectralAnalyzer, error) {
	switch backend {
	case BackendGonum, BackendGoDSP:
	case "":
		backend = BackendGonum
	default:
		return nil, fmt.Errorf("unknown transform backend %q", backend)
	}

	w, err := ParseWindowFunc(windowName)
	if err != nil {
		return nil, err
	}

	return &SpectralAnalyzer{backend: backend, windowType: w}, nil
}

// Backend returns the configured transform backend.
func (a *SpectralAnalyzer) Backend() Backend {
	return a.backend
}

// Window returns the configured taper.
func (a *SpectralAnalyzer) Window() WindowFunc {
	return a.windowType
}

// Analyze returns a freshly allocated magnitude slice of length
// bitint.OneSidedBins(bitint.NextPowerOfTwo(len(window))). The window
// itself is never modified. An empty window returns ErrEmptyInput.
func (a *SpectralAnalyzer) Analyze(window []float64) ([]float64, error) {
	n := len(window)
	if n == 0 {
		return nil, ErrEmptyInput
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.prepare(n)

	// Taper the samples and zero the padding.
	for i := range a.input {
		switch {
		case i >= n:
			a.input[i] = 0
		case a.taper != nil:
			a.input[i] = window[i] * a.taper[i]
		default:
			a.input[i] = window[i]
		}
	}

	switch a.backend {
	case BackendGoDSP:
		full := dspfft.FFTReal(a.input)
		copy(a.coeffs, full[:len(a.coeffs)])
	default:
		a.fft.Coefficients(a.coeffs, a.input)
	}

	mags := make([]float64, len(a.coeffs))
	for i, c := range a.coeffs {
		mags[i] = math.Hypot(real(c), imag(c))
	}
	return mags, nil
}

// prepare sizes the workspace for a window of n samples.
func (a *SpectralAnalyzer) prepare(n int) {
	size := bitint.NextPowerOfTwo(n)
	if size != a.size {
		a.size = size
		a.input = make([]float64, size)
		a.coeffs = make([]complex128, bitint.OneSidedBins(size))
		if a.backend == BackendGonum {
			a.fft = fourier.NewFFT(size)
		}
	}
	if n != a.taperN {
		a.taperN = n
		a.taper = windowCoefficients(n, a.windowType)
	}
}
