/**
 * Figure reconciliation
 *
 * Fuses two disagreeing views of one page into a single authoritative
 * figure set: the OCR engine's self-reported candidates (good semantics,
 * unreliable geometry) and the layout detector's regions (reliable
 * geometry, no semantics). Detector geometry wins whenever the two agree;
 * detector hits on pages where the OCR engine saw nothing are treated as
 * false positives and dropped.
 */

package figure

import (
	"fmt"
	"sort"

	"github.com/textbridge/ocr-worker/internal/geometry"
	"github.com/textbridge/ocr-worker/internal/logging"
)

// Reconciler merges repaired OCR candidates with detector regions for one
// page at a time.
type Reconciler struct {
	h      Heuristics
	logger *logging.Logger
}

// NewReconciler creates a reconciler with the given tuning.
func NewReconciler(h Heuristics) *Reconciler {
	return &Reconciler{
		h:      h,
		logger: logging.NewLogger("FigureReconciler"),
	}
}

// typesCompatible reports whether a detector region may be matched against
// an OCR candidate at all. Only candidates of the same mapped type are
// eligible; a mismatched pair stays apart and the region falls through to
// the detector-only path.
func typesCompatible(detected, ocr Type) bool {
	return detected == ocr
}

// matchScore scores one detector region against one OCR candidate in the
// range 0..1. Center proximity dominates, area similarity and exact type
// agreement refine it.
func (r *Reconciler) matchScore(region DetectedRegion, cand Candidate) float64 {
	dist := geometry.CenterDistance(region.Box, cand.Box)
	centerScore := 1.0 - dist/r.h.CenterTolerance
	if centerScore < 0 {
		centerScore = 0
	}

	areaScore := geometry.AreaSimilarity(region.Box, cand.Box)

	typeScore := 0.5
	if region.Type == cand.Type {
		typeScore = 1.0
	}

	return r.h.CenterWeight*centerScore +
		r.h.AreaWeight*areaScore +
		r.h.TypeWeight*typeScore
}

// Reconcile fuses one page's candidates and regions into integrated
// figures. Both inputs must already be in the reference pixel space of the
// page. The result is ordered top-to-bottom and carries a per-page sequence
// number starting at 1.
func (r *Reconciler) Reconcile(page int, cands []Candidate, regions []DetectedRegion) []Integrated {
	var out []Integrated

	switch {
	case len(regions) == 0:
		// Nothing to cross-check against; trust the OCR engine as-is.
		for _, c := range cands {
			out = append(out, Integrated{
				ID:          fmt.Sprintf("ocr_p%d_%d", page, c.ID),
				Page:        page,
				Box:         c.Box,
				Type:        c.Type,
				Description: c.Description,
				Confidence:  r.h.OCROnlyConfidence,
				Provenance:  ProvenanceOCROnly,
			})
		}

	default:
		used := make([]bool, len(cands))
		for i, region := range regions {
			best := -1
			bestScore := 0.0
			for j, c := range cands {
				if used[j] || !typesCompatible(region.Type, c.Type) {
					continue
				}
				// Strict > keeps the tie-break stable on input order.
				if s := r.matchScore(region, c); s > bestScore {
					best, bestScore = j, s
				}
			}

			if best >= 0 && bestScore > r.h.MatchThreshold {
				used[best] = true
				out = append(out, Integrated{
					ID:          fmt.Sprintf("hybrid_p%d_%d", page, i),
					Page:        page,
					Box:         region.Box,
					Type:        region.Type,
					Description: cands[best].Description,
					Confidence:  r.h.HybridConfidence,
					Provenance:  ProvenanceHybrid,
				})
				continue
			}

			if len(cands) == 0 {
				// The OCR engine saw no figures anywhere on this page.
				// An uncorroborated detector hit here is almost always a
				// text block or decoration.
				r.logger.Debug("dropping uncorroborated detector region",
					"page", page, "type", region.Type, "score", region.Confidence)
				continue
			}

			out = append(out, Integrated{
				ID:         fmt.Sprintf("detector_p%d_%d", page, i),
				Page:       page,
				Box:        region.Box,
				Type:       region.Type,
				Confidence: region.Confidence * r.h.DetectorOnlyFactor,
				Provenance: ProvenanceDetectorOnly,
			})
		}

		if r.h.OCRFallbackEnabled {
			// Off by default: re-admitting unmatched OCR candidates
			// produced too many spurious figures in practice.
			for j, c := range cands {
				if used[j] {
					continue
				}
				out = append(out, Integrated{
					ID:          fmt.Sprintf("ocr_p%d_%d", page, c.ID),
					Page:        page,
					Box:         c.Box,
					Type:        c.Type,
					Description: c.Description,
					Confidence:  r.h.OCROnlyConfidence,
					Provenance:  ProvenanceOCROnly,
				})
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Box.Y != out[b].Box.Y {
			return out[a].Box.Y < out[b].Box.Y
		}
		return out[a].Box.X < out[b].Box.X
	})
	for i := range out {
		out[i].Seq = i + 1
	}

	r.logger.Info("page reconciled",
		"page", page,
		"ocr_candidates", len(cands),
		"detector_regions", len(regions),
		"integrated", len(out))
	return out
}
