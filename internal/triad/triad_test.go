package triad

import (
	"math"
	"testing"
)

func TestNorm(t *testing.T) {
	tests := []struct {
		name string
		in   Triad
		want float64
	}{
		{name: "zero", in: Triad{}, want: 0},
		{name: "unit x", in: Triad{X: 1}, want: 1},
		{name: "pythagorean", in: Triad{X: 3, Y: 4, Z: 0}, want: 5},
		{name: "negative components", in: Triad{X: -2, Y: -3, Z: -6}, want: 7},
	}

	for _, tc := range tests {
		got := tc.in.Norm()
		if math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("%s: Norm() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBodyFrame(t *testing.T) {
	tests := []struct {
		name string
		m    Triad
		b    Triad
		want Triad
	}{
		{
			name: "zero bias swaps x and y and negates z",
			m:    Triad{X: 1, Y: 2, Z: 3},
			want: Triad{X: 2, Y: 1, Z: -3},
		},
		{
			name: "bias added before permutation",
			m:    Triad{X: 1, Y: 2, Z: 3},
			b:    Triad{X: 0.5, Y: -0.25, Z: 1},
			want: Triad{X: 1.75, Y: 1.5, Z: -4},
		},
		{
			name: "all negative",
			m:    Triad{X: -1, Y: -2, Z: -3},
			b:    Triad{X: -1, Y: -1, Z: -1},
			want: Triad{X: -3, Y: -2, Z: 4},
		},
	}

	for _, tc := range tests {
		got := BodyFrame(tc.m, tc.b)
		if got != tc.want {
			t.Errorf("%s: BodyFrame(%v, %v) = %v, want %v", tc.name, tc.m, tc.b, got, tc.want)
		}
	}
}
