// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"testing"
)

func TestFullScale(t *testing.T) {
	tests := []struct {
		bits int
		want int
	}{
		{8, 127},
		{16, 32767},
		{24, 8388607},
		{0, 32767}, // Falls back to 16-bit.
	}
	for _, tt := range tests {
		if got := FullScale(tt.bits); got != tt.want {
			t.Errorf("FullScale(%d) = %d, want %d", tt.bits, got, tt.want)
		}
	}
}

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 1024, 44100, 440.0},
		{"Middle C", 1024, 44100, 261.63},
		{"High Sample Rate", 1024, 192000, 440.0},
		{"Low Sample Rate", 1024, 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.size, tt.sampleRate, tt.frequency, 0.9)

			if len(result) != tt.size {
				t.Fatalf("buffer size = %d, want %d", len(result), tt.size)
			}

			limit := int(math.Trunc(0.9*32767)) + 1
			for i, v := range result {
				if v > limit || v < -limit {
					t.Fatalf("sample %d = %d exceeds amplitude %d", i, v, limit)
				}
			}

			// Two zero crossings per cycle, with a 20% margin for phase.
			samplesPerCycle := tt.sampleRate / tt.frequency
			crossCount := 0
			for i := 1; i < tt.size; i++ {
				if (result[i-1] < 0 && result[i] >= 0) || (result[i-1] >= 0 && result[i] < 0) {
					crossCount++
				}
			}
			expected := float64(tt.size) / (samplesPerCycle / 2)
			if math.Abs(float64(crossCount)-expected) > 0.2*expected {
				t.Errorf("zero crossings = %d, expected approximately %.1f", crossCount, expected)
			}
		})
	}
}

func TestGenerateSineWaveAtIsContinuous(t *testing.T) {
	whole := GenerateSineWaveAt(512, 0, 44100, 1000, 0.5, 16)
	first := GenerateSineWaveAt(256, 0, 44100, 1000, 0.5, 16)
	second := GenerateSineWaveAt(256, 256, 44100, 1000, 0.5, 16)

	joined := append(first, second...)
	for i := range whole {
		if whole[i] != joined[i] {
			t.Fatalf("sample %d differs: %d != %d", i, whole[i], joined[i])
		}
	}
}

func TestGenerateComplexWave(t *testing.T) {
	result := GenerateComplexWave(1024, 44100)
	if len(result) != 1024 {
		t.Fatalf("len = %d, want 1024", len(result))
	}
	for _, v := range result {
		if v != 0 {
			return
		}
	}
	t.Error("GenerateComplexWave produced all zeros")
}

func TestNewFrame(t *testing.T) {
	frame := NewFrame([]int{1, 2, 3}, 44100, 16)
	if frame.Format.NumChannels != 1 || frame.Format.SampleRate != 44100 {
		t.Errorf("format = %+v", frame.Format)
	}
	if frame.SourceBitDepth != 16 || len(frame.Data) != 3 {
		t.Errorf("frame = %+v", frame)
	}
}

func TestMean(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v", got)
	}
	if got := Mean([]float64{0, 32767, 0, -32768}); got != -0.25 {
		t.Errorf("Mean = %v, want -0.25", got)
	}
}

func TestFindPeakBin(t *testing.T) {
	magnitudes := make([]float64, 1024)
	for i := range magnitudes {
		magnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-256), 2))
	}

	tests := []struct {
		name     string
		start    int
		end      int
		expected int
	}{
		{"Full range", 0, 1023, 256},
		{"Clamped range", -5, 5000, 256},
		{"Range above peak", 300, 400, 300},
		{"Range below peak", 0, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(magnitudes, tt.start, tt.end); got != tt.expected {
				t.Errorf("FindPeakBin(%d, %d) = %d, want %d", tt.start, tt.end, got, tt.expected)
			}
		})
	}

	if got := FindPeakBin(nil, 0, 10); got != 0 {
		t.Errorf("FindPeakBin(nil) = %d, want 0", got)
	}
}
