// SPDX-License-Identifier: MIT
package pipeline

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestBars(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		max    float64
		want   []float64
	}{
		{"scaled", []float64{0, 5, 10}, 10, []float64{0, 0.5, 1}},
		{"zero max", []float64{1, 2}, 0, []float64{0, 0}},
		{"negative max", []float64{1, 2}, -1, []float64{0, 0}},
		{"nan max", []float64{1}, math.NaN(), []float64{0}},
		{"inf max", []float64{1}, math.Inf(1), []float64{0}},
		{"nan value", []float64{math.NaN(), 4}, 8, []float64{0, 0.5}},
		{"empty", nil, 1, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bars(tt.values, tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Bars()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestUpdate_Bars(t *testing.T) {
	u := Update{
		Waveform: []float64{WaveformMax, WaveformMax / 2.0},
		Spectrum: []float64{2, 8, 4},
	}
	w := u.WaveformBars()
	if w[0] != 1 || w[1] != 0.5 {
		t.Errorf("WaveformBars() = %v", w)
	}
	s := u.SpectrumBars()
	if s[0] != 0.25 || s[1] != 1 || s[2] != 0.5 {
		t.Errorf("SpectrumBars() = %v", s)
	}

	silent := Update{Spectrum: []float64{0, 0}}
	for _, v := range silent.SpectrumBars() {
		if v != 0 {
			t.Errorf("silent SpectrumBars() = %v", silent.SpectrumBars())
		}
	}
}

func TestUpdate_JSONState(t *testing.T) {
	data, err := json.Marshal(Update{State: Streaming})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"state":"streaming"`) {
		t.Errorf("encoded update = %s", data)
	}
}
