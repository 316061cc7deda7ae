package classify

import (
	"errors"
	"math"
	"testing"
)

func TestVSWR(t *testing.T) {
	cases := []struct {
		name      string
		forward   float64
		reflected float64
		want      float64
	}{
		{"perfect match", 10000, 0, 1.0},
		{"equal power", 10000, 10000, math.Inf(1)},
		{"reflected above forward", 10000, 12000, math.Inf(1)},
		{"one percent", 10000, 100, 1.22},
		{"quarter", 100, 25, 3.0},
		{"zero forward zero reflected", 0, 0, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := VSWR(tc.forward, tc.reflected)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestVSWRFiniteIsRounded(t *testing.T) {
	got, err := VSWR(10000, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if IsInfinite(got) || got <= 1.0 {
		t.Fatalf("expected finite value above 1, got %v", got)
	}
	if math.Round(got*100)/100 != got {
		t.Fatalf("expected 2 decimal places, got %v", got)
	}
}

func TestVSWRRejectsNegative(t *testing.T) {
	for _, in := range [][2]float64{{-1, 0}, {100, -5}, {math.NaN(), 1}} {
		if _, err := VSWR(in[0], in[1]); !errors.Is(err, ErrNegativePower) {
			t.Fatalf("expected ErrNegativePower for %v, got %v", in, err)
		}
	}
}
