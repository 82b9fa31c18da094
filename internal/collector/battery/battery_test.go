package battery

import "testing"

func TestRoundPercentage(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{49.4, 49},
		{49.5, 50},
		{99.6, 100},
		{100, 100},
		{-1, 0},
	}
	for _, tt := range tests {
		if got := roundPercentage(tt.in); got != tt.want {
			t.Errorf("roundPercentage(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		in     any
		want   int64
		wantOk bool
	}{
		{int32(5), 5, true},
		{uint32(5), 5, true},
		{int64(-5), -5, true},
		{"nope", 0, false},
	}
	for _, tt := range tests {
		got, ok := toInt64(tt.in)
		if ok != tt.wantOk || (ok && got != tt.want) {
			t.Errorf("toInt64(%v) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOk)
		}
	}
}
