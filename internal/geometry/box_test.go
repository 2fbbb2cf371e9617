package geometry

import (
	"math"
	"testing"
)

func TestClipKeepsInBoundsBoxes(t *testing.T) {
	b := Box{X: 10, Y: 20, Width: 100, Height: 50}
	got := b.Clip(600, 800)
	if got != b {
		t.Errorf("in-bounds box changed: got %+v", got)
	}
}

func TestClipNeverReturnsEmpty(t *testing.T) {
	tests := []struct {
		name string
		box  Box
	}{
		{"negative origin", Box{X: -50, Y: -50, Width: 30, Height: 30}},
		{"fully right of page", Box{X: 700, Y: 100, Width: 50, Height: 50}},
		{"fully below page", Box{X: 100, Y: 900, Width: 50, Height: 50}},
		{"zero size", Box{X: 100, Y: 100, Width: 0, Height: 0}},
		{"spans page", Box{X: -100, Y: -100, Width: 1000, Height: 1200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.box.Clip(600, 800)
			if !got.InBounds(600, 800) {
				t.Errorf("clipped box out of bounds: %+v", got)
			}
			if got.Width < 1 || got.Height < 1 {
				t.Errorf("clipped box degenerate: %+v", got)
			}
		})
	}
}

func TestCenterDistance(t *testing.T) {
	a := Box{X: 0, Y: 0, Width: 100, Height: 100}  // center (50,50)
	b := Box{X: 30, Y: 40, Width: 100, Height: 100} // center (80,90)
	got := CenterDistance(a, b)
	if math.Abs(got-50) > 1e-9 {
		t.Errorf("CenterDistance = %v, want 50", got)
	}
}

func TestAreaSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float64
	}{
		{"identical", Box{0, 0, 100, 100}, Box{0, 0, 100, 100}, 1.0},
		{"half area", Box{0, 0, 100, 100}, Box{0, 0, 100, 50}, 0.5},
		{"order independent", Box{0, 0, 100, 50}, Box{0, 0, 100, 100}, 0.5},
		{"zero area", Box{0, 0, 0, 0}, Box{0, 0, 100, 100}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AreaSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AreaSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAspectRatio(t *testing.T) {
	if got := (Box{0, 0, 400, 50}).AspectRatio(); math.Abs(got-8.0) > 1e-9 {
		t.Errorf("AspectRatio = %v, want 8", got)
	}
	if got := (Box{0, 0, 50, 400}).AspectRatio(); math.Abs(got-8.0) > 1e-9 {
		t.Errorf("AspectRatio (tall) = %v, want 8", got)
	}
	if got := (Box{0, 0, 0, 100}).AspectRatio(); !math.IsInf(got, 1) {
		t.Errorf("AspectRatio with zero side = %v, want +Inf", got)
	}
}

func TestNormalized(t *testing.T) {
	b := Box{X: 100, Y: 200, Width: 200, Height: 200}
	got := b.Normalized(400, 800)
	want := [4]float64{0.25, 0.25, 0.75, 0.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Normalized[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScaleRounds(t *testing.T) {
	b := Box{X: 3, Y: 5, Width: 7, Height: 9}
	got := b.Scale(1.5)
	want := Box{X: 5, Y: 8, Width: 11, Height: 14}
	if got != want {
		t.Errorf("Scale(1.5) = %+v, want %+v", got, want)
	}
	if got := b.Scale(1.0); got != b {
		t.Errorf("Scale(1.0) changed box: %+v", got)
	}
}

func TestExpand(t *testing.T) {
	b := Box{X: 50, Y: 60, Width: 100, Height: 80}
	got := b.Expand(20)
	want := Box{X: 30, Y: 40, Width: 140, Height: 120}
	if got != want {
		t.Errorf("Expand(20) = %+v, want %+v", got, want)
	}
}
