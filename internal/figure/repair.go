/**
 * Coordinate repair for OCR-reported figure boxes
 *
 * The generative OCR engine systematically truncates the top edge of
 * multi-node diagrams and the header row of tables, and occasionally reports
 * boxes outside the page entirely. Repair is a lossy heuristic correction:
 * it recovers the common failure modes and guarantees the page-bounds
 * invariant, nothing more.
 */

package figure

import (
	"strings"

	"github.com/textbridge/ocr-worker/internal/geometry"
	"github.com/textbridge/ocr-worker/internal/logging"
)

// Repairer corrects raw OCR candidate boxes against the owning page's pixel
// dimensions.
type Repairer struct {
	h      Heuristics
	logger *logging.Logger
}

// NewRepairer creates a repairer with the given tuning.
func NewRepairer(h Heuristics) *Repairer {
	return &Repairer{
		h:      h,
		logger: logging.NewLogger("CoordinateRepair"),
	}
}

var diagramKeywords = []string{
	"diagram", "flowchart", "flow chart", "フローチャート", "図解",
}

// diagramLike reports whether a candidate gets the tiered vertical
// expansion. Matches the declared type or diagram keywords in the
// description.
func diagramLike(c *Candidate) bool {
	if c.Type == TypeDiagram {
		return true
	}
	desc := strings.ToLower(c.Description)
	for _, kw := range diagramKeywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

// Repair corrects the candidate's box in place and marks it repaired.
// Repairing an already-repaired candidate is a no-op, so the emitted box is
// a fixed point. The result always satisfies the page-bounds invariant and
// is at least 1x1.
func (r *Repairer) Repair(c *Candidate, pageW, pageH int) {
	if c.Repaired {
		return
	}

	raw := c.Box

	if raw.Width < r.h.SuspiciousMinSize || raw.Height < r.h.SuspiciousMinSize {
		c.Suspicious = true
		r.logger.Warn("suspiciously small figure box, keeping",
			"figure", c.ID, "width", raw.Width, "height", raw.Height)
	}

	box := raw
	switch {
	case diagramLike(c):
		box = r.expandDiagram(box)
	case c.Type == TypeTable && box.Y > r.h.TableHeaderY:
		// Recover the commonly-missed header row.
		box.Y -= r.h.TableHeaderMargin
		box.Height += r.h.TableHeaderMargin
	}

	box = r.clipRepaired(box, raw, pageW, pageH)

	if box != raw {
		r.logger.Debug("box repaired",
			"figure", c.ID, "type", c.Type,
			"raw", raw, "repaired", box)
	}

	c.Box = box
	c.Repaired = true
}

// RepairAll repairs every candidate of one page.
func (r *Repairer) RepairAll(cands []Candidate, pageW, pageH int) {
	for i := range cands {
		r.Repair(&cands[i], pageW, pageH)
	}
}

// expandDiagram applies the tiered vertical expansion. Diagrams reported
// far down the page are empirically truncated at the top, so the expansion
// grows with y.
func (r *Repairer) expandDiagram(box geometry.Box) geometry.Box {
	switch {
	case box.Y < r.h.NearTopY:
		box.X -= r.h.NearTopMargin
		box.Width += 2 * r.h.NearTopMargin
	case box.Y < r.h.MidPageY:
		box.Y -= r.h.MidPageUpMargin
		box.Height += r.h.MidPageUpMargin + r.h.MidPageDownMargin
	default:
		up := int(r.h.AggressiveRatio * float64(box.Y))
		box.Y -= up
		box.Height += up + r.h.AggressiveBottom
	}
	return box
}

// clipRepaired enforces the page-bounds invariant. When the raw box already
// overflowed the right/bottom edge but its left/top edge looks valid, the
// size shrinks; when the origin itself is implausible it resets to 0 with a
// clamped size.
func (r *Repairer) clipRepaired(box, raw geometry.Box, pageW, pageH int) geometry.Box {
	// Expansion may push the origin negative; pull it back keeping the far
	// edge where it is.
	if box.X < 0 {
		box.Width += box.X
		box.X = 0
	}
	if box.Y < 0 {
		box.Height += box.Y
		box.Y = 0
	}

	if box.X+box.Width > pageW {
		if float64(raw.X) <= r.h.EdgeValidFraction*float64(pageW) {
			box.Width = pageW - box.X
		} else {
			box.X = 0
			if box.Width > pageW {
				box.Width = pageW
			}
		}
	}
	if box.Y+box.Height > pageH {
		if float64(raw.Y) <= r.h.EdgeValidFraction*float64(pageH) {
			box.Height = pageH - box.Y
		} else {
			box.Y = 0
			if box.Height > pageH {
				box.Height = pageH
			}
		}
	}

	// Never emit an empty or negative-area box.
	return box.Clip(pageW, pageH)
}
