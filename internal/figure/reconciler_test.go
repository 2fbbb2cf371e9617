package figure

import (
	"testing"

	"github.com/textbridge/ocr-worker/internal/geometry"
)

func TestReconcileMatchedPairBecomesHybrid(t *testing.T) {
	// Near-identical table boxes from both sources fuse into one hybrid
	// figure carrying the detector's geometry and the OCR description.
	r := NewReconciler(DefaultHeuristics())
	cands := []Candidate{
		{ID: 1, Box: geometry.Box{X: 105, Y: 105, Width: 295, Height: 95}, Type: TypeTable, Description: "Quarterly results"},
	}
	regions := []DetectedRegion{
		{Page: 3, Box: geometry.Box{X: 100, Y: 100, Width: 300, Height: 100}, Type: TypeTable, Confidence: 0.88},
	}

	got := r.Reconcile(3, cands, regions)
	if len(got) != 1 {
		t.Fatalf("got %d figures, want 1", len(got))
	}
	fig := got[0]
	if fig.Provenance != ProvenanceHybrid {
		t.Errorf("provenance = %s, want hybrid", fig.Provenance)
	}
	if fig.Box != regions[0].Box {
		t.Errorf("box = %+v, want detector box %+v", fig.Box, regions[0].Box)
	}
	if fig.Description != "Quarterly results" {
		t.Errorf("description = %q, want OCR description", fig.Description)
	}
	if fig.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", fig.Confidence)
	}
	if fig.Seq != 1 {
		t.Errorf("Seq = %d, want 1", fig.Seq)
	}
}

func TestReconcileUncorroboratedDetectorDropped(t *testing.T) {
	// The OCR engine saw nothing on this page, so the detector hit is
	// treated as a false positive.
	r := NewReconciler(DefaultHeuristics())
	regions := []DetectedRegion{
		{Page: 1, Box: geometry.Box{X: 50, Y: 50, Width: 200, Height: 200}, Type: TypeDiagram, Confidence: 0.9},
	}

	got := r.Reconcile(1, nil, regions)
	if len(got) != 0 {
		t.Errorf("got %d figures, want 0: %+v", len(got), got)
	}
}

func TestReconcileNoRegionsEmitsAllOCROnly(t *testing.T) {
	r := NewReconciler(DefaultHeuristics())
	cands := []Candidate{
		{ID: 1, Box: geometry.Box{X: 10, Y: 300, Width: 100, Height: 100}, Type: TypePhoto, Description: "a"},
		{ID: 2, Box: geometry.Box{X: 10, Y: 50, Width: 100, Height: 100}, Type: TypeGraph, Description: "b"},
	}

	got := r.Reconcile(2, cands, nil)
	if len(got) != len(cands) {
		t.Fatalf("got %d figures, want %d", len(got), len(cands))
	}
	for _, fig := range got {
		if fig.Provenance != ProvenanceOCROnly {
			t.Errorf("provenance = %s, want ocr_only", fig.Provenance)
		}
		if fig.Confidence != 0.7 {
			t.Errorf("confidence = %v, want 0.7", fig.Confidence)
		}
	}
	// Output is ordered top to bottom regardless of input order.
	if got[0].Description != "b" || got[1].Description != "a" {
		t.Errorf("figures not sorted by position: %+v", got)
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Errorf("sequence numbers wrong: %d, %d", got[0].Seq, got[1].Seq)
	}
}

func TestReconcileUnmatchedDetectorKeptWithCorroboration(t *testing.T) {
	// OCR found a figure elsewhere on the page, so the far-away detector
	// hit survives as detector_only with damped confidence.
	r := NewReconciler(DefaultHeuristics())
	cands := []Candidate{
		{ID: 1, Box: geometry.Box{X: 10, Y: 700, Width: 80, Height: 80}, Type: TypePhoto, Description: "photo"},
	}
	regions := []DetectedRegion{
		{Page: 1, Box: geometry.Box{X: 300, Y: 50, Width: 200, Height: 150}, Type: TypeDiagram, Confidence: 0.8},
	}

	got := r.Reconcile(1, cands, regions)
	if len(got) != 1 {
		t.Fatalf("got %d figures, want 1", len(got))
	}
	fig := got[0]
	if fig.Provenance != ProvenanceDetectorOnly {
		t.Errorf("provenance = %s, want detector_only", fig.Provenance)
	}
	if want := 0.8 * 0.9; fig.Confidence != want {
		t.Errorf("confidence = %v, want %v", fig.Confidence, want)
	}
	if fig.Description != "" {
		t.Errorf("detector_only figure has description %q", fig.Description)
	}
}

func TestReconcileUnmatchedOCRDroppedByDefault(t *testing.T) {
	// The unmatched OCR candidate is not re-added unless the fallback flag
	// is on.
	h := DefaultHeuristics()
	cands := []Candidate{
		{ID: 1, Box: geometry.Box{X: 300, Y: 52, Width: 198, Height: 148}, Type: TypeDiagram, Description: "matched"},
		{ID: 2, Box: geometry.Box{X: 10, Y: 700, Width: 80, Height: 80}, Type: TypePhoto, Description: "orphan"},
	}
	regions := []DetectedRegion{
		{Page: 1, Box: geometry.Box{X: 300, Y: 50, Width: 200, Height: 150}, Type: TypeDiagram, Confidence: 0.8},
	}

	got := NewReconciler(h).Reconcile(1, cands, regions)
	if len(got) != 1 {
		t.Fatalf("default policy: got %d figures, want 1", len(got))
	}
	if got[0].Description != "matched" {
		t.Errorf("wrong candidate matched: %+v", got[0])
	}

	h.OCRFallbackEnabled = true
	got = NewReconciler(h).Reconcile(1, cands, regions)
	if len(got) != 2 {
		t.Fatalf("fallback enabled: got %d figures, want 2", len(got))
	}
	var orphan *Integrated
	for i := range got {
		if got[i].Description == "orphan" {
			orphan = &got[i]
		}
	}
	if orphan == nil {
		t.Fatal("orphan candidate not re-added with fallback enabled")
	}
	if orphan.Provenance != ProvenanceOCROnly {
		t.Errorf("orphan provenance = %s, want ocr_only", orphan.Provenance)
	}
}

func TestReconcileTablesNeverMatchNonTables(t *testing.T) {
	// A detector table over a same-place OCR photo must not fuse.
	r := NewReconciler(DefaultHeuristics())
	cands := []Candidate{
		{ID: 1, Box: geometry.Box{X: 100, Y: 100, Width: 300, Height: 100}, Type: TypePhoto, Description: "photo"},
	}
	regions := []DetectedRegion{
		{Page: 1, Box: geometry.Box{X: 100, Y: 100, Width: 300, Height: 100}, Type: TypeTable, Confidence: 0.9},
	}

	got := r.Reconcile(1, cands, regions)
	if len(got) != 1 {
		t.Fatalf("got %d figures, want 1", len(got))
	}
	if got[0].Provenance != ProvenanceDetectorOnly {
		t.Errorf("provenance = %s, want detector_only", got[0].Provenance)
	}
}

func TestReconcileTypeMismatchNeverFuses(t *testing.T) {
	// A detector diagram sitting exactly on an OCR photo must not borrow
	// the photo's description; only same-type pairs are eligible, so the
	// region falls through to detector_only with damped confidence.
	r := NewReconciler(DefaultHeuristics())
	cands := []Candidate{
		{ID: 1, Box: geometry.Box{X: 100, Y: 100, Width: 300, Height: 200}, Type: TypePhoto, Description: "a photo"},
	}
	regions := []DetectedRegion{
		{Page: 1, Box: geometry.Box{X: 100, Y: 100, Width: 300, Height: 200}, Type: TypeDiagram, Confidence: 0.8},
	}

	got := r.Reconcile(1, cands, regions)
	if len(got) != 1 {
		t.Fatalf("got %d figures, want 1", len(got))
	}
	fig := got[0]
	if fig.Provenance != ProvenanceDetectorOnly {
		t.Errorf("provenance = %s, want detector_only", fig.Provenance)
	}
	if fig.Description != "" {
		t.Errorf("description = %q, want empty", fig.Description)
	}
	if want := 0.8 * 0.9; fig.Confidence != want {
		t.Errorf("confidence = %v, want %v", fig.Confidence, want)
	}
}

func TestReconcileFirstRegionWinsTie(t *testing.T) {
	// Two identical regions compete for one candidate; input order breaks
	// the tie.
	r := NewReconciler(DefaultHeuristics())
	cands := []Candidate{
		{ID: 1, Box: geometry.Box{X: 100, Y: 100, Width: 200, Height: 200}, Type: TypeDiagram, Description: "only"},
	}
	regions := []DetectedRegion{
		{Page: 1, Box: geometry.Box{X: 100, Y: 100, Width: 200, Height: 200}, Type: TypeDiagram, Confidence: 0.9},
		{Page: 1, Box: geometry.Box{X: 100, Y: 100, Width: 200, Height: 200}, Type: TypeDiagram, Confidence: 0.9},
	}

	got := r.Reconcile(1, cands, regions)
	if len(got) != 2 {
		t.Fatalf("got %d figures, want 2", len(got))
	}
	hybrids := 0
	for _, fig := range got {
		if fig.Provenance == ProvenanceHybrid {
			hybrids++
			if fig.ID != "hybrid_p1_0" {
				t.Errorf("second region won the tie: %s", fig.ID)
			}
		}
	}
	if hybrids != 1 {
		t.Errorf("got %d hybrids, want exactly 1", hybrids)
	}
}

func TestMatchScoreThreshold(t *testing.T) {
	// A candidate far outside the center tolerance with dissimilar area
	// stays below the matching threshold.
	r := NewReconciler(DefaultHeuristics())
	region := DetectedRegion{Box: geometry.Box{X: 0, Y: 0, Width: 100, Height: 100}, Type: TypeDiagram}
	far := Candidate{Box: geometry.Box{X: 400, Y: 600, Width: 20, Height: 20}, Type: TypeDiagram}

	if s := r.matchScore(region, far); s > r.h.MatchThreshold {
		t.Errorf("score %v above threshold for hopeless pair", s)
	}

	near := Candidate{Box: geometry.Box{X: 5, Y: 5, Width: 95, Height: 95}, Type: TypeDiagram}
	if s := r.matchScore(region, near); s <= r.h.MatchThreshold {
		t.Errorf("score %v not above threshold for near-identical pair", s)
	}
}
