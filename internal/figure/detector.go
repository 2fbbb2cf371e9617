/**
 * Vision layout detection
 *
 * Wraps the external layout-detection model behind a small interface and
 * turns its raw output into reconciler-ready regions: label mapping,
 * plausibility filtering and rescaling into the reference page-pixel space.
 * Detection is best-effort; a failed page degrades to zero regions so the
 * OCR-only path still produces output.
 */

package figure

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/textbridge/ocr-worker/internal/geometry"
	"github.com/textbridge/ocr-worker/internal/logging"
)

// RawRegion is one detection as reported by the model, in its working
// resolution with its native label vocabulary.
type RawRegion struct {
	Box   geometry.Box
	Label string
	Score float64
}

// DetectorClient is the external detection capability.
type DetectorClient interface {
	Detect(ctx context.Context, pngImage []byte) ([]RawRegion, error)
}

// RegionDetector runs layout detection per page and normalizes the results.
type RegionDetector struct {
	client DetectorClient
	h      Heuristics
	logger *logging.Logger
}

// NewRegionDetector creates a detector. A nil client disables detection
// entirely; every page then reports zero regions.
func NewRegionDetector(client DetectorClient, h Heuristics) *RegionDetector {
	return &RegionDetector{
		client: client,
		h:      h,
		logger: logging.NewLogger("RegionDetector"),
	}
}

// Enabled reports whether a detection backend is configured.
func (d *RegionDetector) Enabled() bool {
	return d != nil && d.client != nil
}

// DetectPage returns the plausible figure/table regions of one page, in the
// reference page-pixel space. Detection failures are page-scoped: the error
// is logged and an empty slice returned.
func (d *RegionDetector) DetectPage(ctx context.Context, page int, pngImage []byte, pageW, pageH int) []DetectedRegion {
	if !d.Enabled() {
		return nil
	}

	raw, err := d.client.Detect(ctx, pngImage)
	if err != nil {
		d.logger.Warn("detection failed, continuing with OCR boxes only",
			"page", page, "error", err)
		return nil
	}

	scale := d.h.DetectorScale()
	pageArea := float64(pageW * pageH)

	var regions []DetectedRegion
	for _, r := range raw {
		if !figureLabel(r.Label) {
			continue
		}
		box := r.Box.Scale(scale).Clip(pageW, pageH)
		if box.Width < d.h.MinRegionSide || box.Height < d.h.MinRegionSide {
			continue
		}
		if box.AspectRatio() > d.h.MaxAspectRatio {
			continue
		}
		if pageArea > 0 && float64(box.Area())/pageArea < d.h.MinAreaFraction {
			continue
		}
		regions = append(regions, DetectedRegion{
			Page:       page,
			Box:        box,
			Type:       MapDetectorLabel(r.Label),
			Confidence: r.Score,
		})
	}

	d.logger.Debug("page detected",
		"page", page, "raw", len(raw), "kept", len(regions))
	return regions
}

// PageImage is one rendered page handed to batch detection.
type PageImage struct {
	Page   int
	PNG    []byte
	Width  int
	Height int
}

// DetectAll runs detection over all pages with bounded concurrency and
// returns regions keyed by page number. Individual page failures never
// surface as errors.
func (d *RegionDetector) DetectAll(ctx context.Context, pages []PageImage, concurrency int) map[int][]DetectedRegion {
	results := make(map[int][]DetectedRegion, len(pages))
	if !d.Enabled() || len(pages) == 0 {
		return results
	}
	if concurrency < 1 {
		concurrency = 1
	}

	type pageResult struct {
		page    int
		regions []DetectedRegion
	}
	out := make(chan pageResult, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, p := range pages {
		p := p
		g.Go(func() error {
			out <- pageResult{
				page:    p.Page,
				regions: d.DetectPage(gctx, p.Page, p.PNG, p.Width, p.Height),
			}
			return nil
		})
	}
	g.Wait()
	close(out)

	for r := range out {
		results[r.page] = r.regions
	}
	return results
}

// figureLabel keeps only the detector labels that denote visual content.
func figureLabel(label string) bool {
	switch label {
	case "Figure", "figure", "Table", "table":
		return true
	}
	return false
}
