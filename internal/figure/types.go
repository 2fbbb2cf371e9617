/**
 * Figure detection data model
 *
 * Two independent, imperfect sources report figure regions per page: the
 * generative OCR engine (self-reported boxes with rich descriptions) and a
 * vision layout detector (accurate boxes, no semantics). Reconciliation fuses
 * them into one authoritative list tagged with provenance.
 */

package figure

import (
	"fmt"

	"github.com/textbridge/ocr-worker/internal/geometry"
)

// Type is the OCR engine's figure vocabulary.
type Type string

const (
	TypePhoto        Type = "photo"
	TypeIllustration Type = "illustration"
	TypeDiagram      Type = "diagram"
	TypeTable        Type = "table"
	TypeGraph        Type = "graph"
)

// MapDetectorLabel converts the layout detector's closed vocabulary
// (Text/Title/List/Table/Figure) into the OCR vocabulary. Anything that is
// not a table maps to diagram as the safe default.
func MapDetectorLabel(label string) Type {
	switch label {
	case "Table", "table":
		return TypeTable
	case "Figure", "figure":
		return TypeDiagram
	default:
		return TypeDiagram
	}
}

// Provenance records which detection source contributed a figure's final
// geometry and metadata.
type Provenance string

const (
	ProvenanceHybrid       Provenance = "hybrid"
	ProvenanceDetectorOnly Provenance = "detector_only"
	ProvenanceOCROnly      Provenance = "ocr_only"
)

// Candidate is one figure self-reported by the OCR engine for a page.
// Immutable once repaired; owned by the page result for the pipeline run.
type Candidate struct {
	ID            int
	Box           geometry.Box
	Type          Type
	Description   string
	ExtractedText string

	// Suspicious marks implausibly small raw boxes; kept and logged, not
	// dropped.
	Suspicious bool

	// Repaired marks that coordinate repair already ran; repairing again is
	// a no-op.
	Repaired bool
}

// DetectedRegion is one region reported by the vision layout detector,
// already mapped into the OCR vocabulary and rescaled to page-pixel space.
// Discarded after reconciliation.
type DetectedRegion struct {
	Page       int
	Box        geometry.Box
	Type       Type
	Confidence float64
}

// Integrated is one authoritative figure produced by reconciliation.
type Integrated struct {
	ID          string
	Page        int
	Seq         int // per-page ordinal, drives file naming
	Box         geometry.Box
	Type        Type
	Description string
	Confidence  float64
	Provenance  Provenance
}

// FileName returns the deterministic, collision-free image file name for
// this figure. Markdown references are generated from the same function so
// they always resolve.
func (f Integrated) FileName() string {
	return fmt.Sprintf("page_%d_fig_%d.png", f.Page, f.Seq)
}

// Crop is an extracted figure image held in memory until verification;
// rejected figures never reach disk.
type Crop struct {
	Figure        Integrated
	PNG           []byte
	NormalizedBox [4]float64
}

// ExtractedFile is the durable metadata record for one verified figure,
// persisted alongside the merged markdown.
type ExtractedFile struct {
	FigureID      string     `json:"id"`
	Page          int        `json:"page"`
	BBox          [4]int     `json:"bbox"`
	NormalizedBox [4]float64 `json:"normalized_bbox"`
	Type          Type       `json:"type"`
	Caption       string     `json:"caption"`
	FilePath      string     `json:"file_path"`
}
