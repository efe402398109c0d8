// SPDX-License-Identifier: MIT

// Package utils holds deterministic signal generators and spectrum
// helpers shared by tests and the synthetic capture source.
package utils

import (
	"math"

	"github.com/go-audio/audio"
)

// FullScale returns the largest positive sample value for bitDepth.
func FullScale(bitDepth int) int {
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	return 1<<(bitDepth-1) - 1
}

// GenerateSineWave returns size samples of a sine at frequency Hz,
// starting at phase 0, scaled to amplitude (0..1) of 16-bit full scale.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []int {
	return GenerateSineWaveAt(size, 0, sampleRate, frequency, amplitude, 16)
}

// GenerateSineWaveAt is GenerateSineWave starting at sample offset and
// scaled to bitDepth full scale. Consecutive calls with advancing
// offsets produce a continuous tone.
func GenerateSineWaveAt(size, offset int, sampleRate, frequency, amplitude float64, bitDepth int) []int {
	scale := amplitude * float64(FullScale(bitDepth))
	buffer := make([]int, size)
	for i := range buffer {
		t := float64(offset+i) / sampleRate
		buffer[i] = int(math.Round(math.Sin(2*math.Pi*frequency*t) * scale))
	}
	return buffer
}

// GenerateComplexWave returns a 440Hz tone with its second and third
// harmonics at 16-bit scale.
func GenerateComplexWave(size int, sampleRate float64) []int {
	scale := 0.9 * float64(FullScale(16))
	buffer := make([]int, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int(signal * scale)
	}
	return buffer
}

// NewFrame wraps mono samples in a go-audio buffer tagged with the
// capture parameters.
func NewFrame(samples []int, sampleRate, bitDepth int) *audio.IntBuffer {
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
}

// ToFloat64 converts integer samples for analysis.
func ToFloat64(samples []int) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return out
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// FindPeakBin returns the index of the largest magnitude within
// [startBin, endBin], clamped to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
