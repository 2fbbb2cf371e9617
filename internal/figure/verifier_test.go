package figure

import (
	"context"
	"fmt"
	"testing"

	"github.com/textbridge/ocr-worker/internal/geometry"
)

type fakeVerifyClient struct {
	result *VerifyResult
	err    error
}

func (f *fakeVerifyClient) VerifyFigure(ctx context.Context, pngImage []byte, claimed Type) (*VerifyResult, error) {
	return f.result, f.err
}

func testCrop(id string) Crop {
	return Crop{
		Figure: Integrated{
			ID: id, Page: 1, Seq: 1,
			Box:  geometry.Box{X: 10, Y: 10, Width: 100, Height: 100},
			Type: TypeDiagram,
		},
		PNG: []byte("png"),
	}
}

func TestVerifyRejectsNonFigure(t *testing.T) {
	// A confident "this is not a figure" verdict removes the crop.
	v := NewVerifier(&fakeVerifyClient{
		result: &VerifyResult{IsFigure: false, Confidence: 0.9, Reason: "body text"},
	}, nil, DefaultHeuristics())

	if _, keep := v.Verify(context.Background(), testCrop("f1")); keep {
		t.Error("non-figure crop kept")
	}
}

func TestVerifyRejectsLowConfidence(t *testing.T) {
	v := NewVerifier(&fakeVerifyClient{
		result: &VerifyResult{IsFigure: true, Confidence: 0.3},
	}, nil, DefaultHeuristics())

	if _, keep := v.Verify(context.Background(), testCrop("f1")); keep {
		t.Error("low-confidence crop kept")
	}
}

func TestVerifyAcceptsAndCorrectsType(t *testing.T) {
	v := NewVerifier(&fakeVerifyClient{
		result: &VerifyResult{IsFigure: true, Type: "table", Confidence: 0.8},
	}, nil, DefaultHeuristics())

	crop, keep := v.Verify(context.Background(), testCrop("f1"))
	if !keep {
		t.Fatal("confirmed crop rejected")
	}
	if crop.Figure.Type != TypeTable {
		t.Errorf("type = %s, want corrected table", crop.Figure.Type)
	}
}

func TestVerifyKeepsFigureOnCallFailure(t *testing.T) {
	// Verification failure is not evidence of non-figure-ness.
	v := NewVerifier(&fakeVerifyClient{err: fmt.Errorf("engine down")}, nil, DefaultHeuristics())

	if _, keep := v.Verify(context.Background(), testCrop("f1")); !keep {
		t.Error("crop dropped because the verification call failed")
	}
}

func TestVerifyKeepsFigureWithoutClient(t *testing.T) {
	v := NewVerifier(nil, nil, DefaultHeuristics())
	if _, keep := v.Verify(context.Background(), testCrop("f1")); !keep {
		t.Error("crop dropped with verification disabled")
	}
}

func TestVerifyAllPreservesOrder(t *testing.T) {
	v := NewVerifier(&fakeVerifyClient{
		result: &VerifyResult{IsFigure: true, Confidence: 0.9},
	}, nil, DefaultHeuristics())

	crops := []Crop{testCrop("a"), testCrop("b"), testCrop("c")}
	kept := v.VerifyAll(context.Background(), crops)
	if len(kept) != 3 {
		t.Fatalf("got %d crops, want 3", len(kept))
	}
	for i, id := range []string{"a", "b", "c"} {
		if kept[i].Figure.ID != id {
			t.Errorf("kept[%d] = %s, want %s", i, kept[i].Figure.ID, id)
		}
	}
}
