package figure

import (
	"testing"

	"github.com/textbridge/ocr-worker/internal/geometry"
)

func repairOne(t *testing.T, c Candidate, pageW, pageH int) Candidate {
	t.Helper()
	r := NewRepairer(DefaultHeuristics())
	r.Repair(&c, pageW, pageH)
	if !c.Box.InBounds(pageW, pageH) {
		t.Fatalf("repaired box out of bounds: %+v", c.Box)
	}
	return c
}

func TestRepairFarDownDiagram(t *testing.T) {
	// A diagram reported at y=650 on an 842px page gets the full upward
	// expansion: top edge recovered to 0 and height grown by the recovered
	// distance plus the bottom margin.
	c := repairOne(t, Candidate{
		ID:   1,
		Box:  geometry.Box{X: 100, Y: 650, Width: 300, Height: 100},
		Type: TypeDiagram,
	}, 595, 842)

	if c.Box.Y != 0 {
		t.Errorf("Y = %d, want 0", c.Box.Y)
	}
	if want := 650 + 100 + 50; c.Box.Height != want {
		t.Errorf("Height = %d, want %d", c.Box.Height, want)
	}
}

func TestRepairFarDownDiagramClipsToPage(t *testing.T) {
	// Expanded height would exceed the page; it clips to the page bottom.
	c := repairOne(t, Candidate{
		ID:   1,
		Box:  geometry.Box{X: 100, Y: 650, Width: 300, Height: 160},
		Type: TypeDiagram,
	}, 595, 842)

	if c.Box.Y != 0 {
		t.Errorf("Y = %d, want 0", c.Box.Y)
	}
	if c.Box.Height != 842 {
		t.Errorf("Height = %d, want 842", c.Box.Height)
	}
}

func TestRepairNearTopDiagramHorizontalOnly(t *testing.T) {
	c := repairOne(t, Candidate{
		ID:   1,
		Box:  geometry.Box{X: 100, Y: 30, Width: 200, Height: 150},
		Type: TypeDiagram,
	}, 595, 842)

	if c.Box.Y != 30 || c.Box.Height != 150 {
		t.Errorf("vertical geometry changed: %+v", c.Box)
	}
	if c.Box.X != 90 || c.Box.Width != 220 {
		t.Errorf("horizontal margin not applied: %+v", c.Box)
	}
}

func TestRepairMidPageDiagram(t *testing.T) {
	c := repairOne(t, Candidate{
		ID:   1,
		Box:  geometry.Box{X: 100, Y: 120, Width: 200, Height: 150},
		Type: TypeDiagram,
	}, 595, 842)

	if c.Box.Y != 70 {
		t.Errorf("Y = %d, want 70", c.Box.Y)
	}
	if want := 150 + 50 + 30; c.Box.Height != want {
		t.Errorf("Height = %d, want %d", c.Box.Height, want)
	}
}

func TestRepairDiagramKeywordInDescription(t *testing.T) {
	// An illustration whose description mentions a flowchart gets diagram
	// treatment.
	c := repairOne(t, Candidate{
		ID:          1,
		Box:         geometry.Box{X: 100, Y: 300, Width: 200, Height: 100},
		Type:        TypeIllustration,
		Description: "Flowchart of the approval process",
	}, 595, 842)

	if c.Box.Y != 0 {
		t.Errorf("keyword match did not trigger expansion: %+v", c.Box)
	}
}

func TestRepairTableHeaderRecovery(t *testing.T) {
	c := repairOne(t, Candidate{
		ID:   1,
		Box:  geometry.Box{X: 50, Y: 400, Width: 400, Height: 200},
		Type: TypeTable,
	}, 595, 842)

	if c.Box.Y != 340 {
		t.Errorf("Y = %d, want 340", c.Box.Y)
	}
	if c.Box.Height != 260 {
		t.Errorf("Height = %d, want 260", c.Box.Height)
	}
}

func TestRepairTableNearTopUnchanged(t *testing.T) {
	c := repairOne(t, Candidate{
		ID:   1,
		Box:  geometry.Box{X: 50, Y: 100, Width: 400, Height: 200},
		Type: TypeTable,
	}, 595, 842)

	if (c.Box != geometry.Box{X: 50, Y: 100, Width: 400, Height: 200}) {
		t.Errorf("near-top table changed: %+v", c.Box)
	}
}

func TestRepairSuspiciousFlagKeepsBox(t *testing.T) {
	c := repairOne(t, Candidate{
		ID:   1,
		Box:  geometry.Box{X: 100, Y: 100, Width: 15, Height: 12},
		Type: TypePhoto,
	}, 595, 842)

	if !c.Suspicious {
		t.Error("tiny box not flagged suspicious")
	}
	if c.Box.Width != 15 || c.Box.Height != 12 {
		t.Errorf("suspicious box dropped or resized: %+v", c.Box)
	}
}

func TestRepairShrinksValidOverflow(t *testing.T) {
	// Right edge exceeds the page but the left edge is clearly valid, so
	// the width shrinks instead of resetting the origin.
	c := repairOne(t, Candidate{
		ID:   1,
		Box:  geometry.Box{X: 400, Y: 100, Width: 400, Height: 100},
		Type: TypePhoto,
	}, 595, 842)

	if c.Box.X != 400 {
		t.Errorf("valid origin reset: %+v", c.Box)
	}
	if c.Box.Width != 195 {
		t.Errorf("Width = %d, want 195", c.Box.Width)
	}
}

func TestRepairResetsImplausibleOrigin(t *testing.T) {
	// Origin beyond 90% of the page extent is implausible; it resets to 0.
	c := repairOne(t, Candidate{
		ID:   1,
		Box:  geometry.Box{X: 580, Y: 100, Width: 300, Height: 100},
		Type: TypePhoto,
	}, 595, 842)

	if c.Box.X != 0 {
		t.Errorf("X = %d, want 0", c.Box.X)
	}
	if c.Box.Width != 300 {
		t.Errorf("Width = %d, want 300", c.Box.Width)
	}
}

func TestRepairIsIdempotent(t *testing.T) {
	r := NewRepairer(DefaultHeuristics())
	c := Candidate{
		ID:   1,
		Box:  geometry.Box{X: 100, Y: 650, Width: 300, Height: 100},
		Type: TypeDiagram,
	}
	r.Repair(&c, 595, 842)
	first := c.Box

	r.Repair(&c, 595, 842)
	if c.Box != first {
		t.Errorf("second repair changed box: %+v -> %+v", first, c.Box)
	}
}

func TestRepairAll(t *testing.T) {
	r := NewRepairer(DefaultHeuristics())
	cands := []Candidate{
		{ID: 1, Box: geometry.Box{X: 10, Y: 10, Width: 100, Height: 100}, Type: TypePhoto},
		{ID: 2, Box: geometry.Box{X: -20, Y: 700, Width: 900, Height: 400}, Type: TypeGraph},
	}
	r.RepairAll(cands, 595, 842)
	for i, c := range cands {
		if !c.Repaired {
			t.Errorf("candidate %d not marked repaired", i)
		}
		if !c.Box.InBounds(595, 842) {
			t.Errorf("candidate %d out of bounds: %+v", i, c.Box)
		}
	}
}
