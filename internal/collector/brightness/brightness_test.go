package brightness

import "testing"

func TestNormalizeBrightness(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.0, 0},
		{0.5, 50},
		{1.0, 100},
		{0.333, 33},
		{-0.1, 0},
		{1.2, 100},
	}
	for _, tt := range tests {
		if got := NormalizeBrightness(tt.in); got != tt.want {
			t.Errorf("NormalizeBrightness(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
