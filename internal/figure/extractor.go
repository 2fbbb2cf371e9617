/**
 * Figure image extraction
 *
 * Crops each integrated figure out of its page raster with a small context
 * margin and upscales the crop for legibility. Crops stay in memory until
 * verification; a rejected figure never touches the filesystem.
 */

package figure

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/textbridge/ocr-worker/internal/errors"
	"github.com/textbridge/ocr-worker/internal/logging"
)

// Extractor cuts figure crops out of rendered page images.
type Extractor struct {
	h      Heuristics
	logger *logging.Logger
}

// NewExtractor creates an extractor with the given tuning.
func NewExtractor(h Heuristics) *Extractor {
	return &Extractor{
		h:      h,
		logger: logging.NewLogger("FigureImageExtractor"),
	}
}

// Extract crops one figure from its page raster. The figure box must
// already satisfy the page-bounds invariant; the crop additionally gets
// CropMargin pixels of context, clipped to the page. Crops below
// MinCropSide after margin and clipping are rejected.
func (e *Extractor) Extract(pageImage image.Image, fig Integrated) (*Crop, error) {
	bounds := pageImage.Bounds()
	pageW, pageH := bounds.Dx(), bounds.Dy()

	box := fig.Box.Expand(e.h.CropMargin).Clip(pageW, pageH)
	if box.Width < e.h.MinCropSide || box.Height < e.h.MinCropSide {
		return nil, errors.NewGeometryError(
			fmt.Sprintf("crop for %s degenerate after clipping (%dx%d)",
				fig.ID, box.Width, box.Height), nil)
	}

	rect := image.Rect(
		bounds.Min.X+box.X,
		bounds.Min.Y+box.Y,
		bounds.Min.X+box.X+box.Width,
		bounds.Min.Y+box.Y+box.Height,
	)

	dstW := int(math.Round(float64(box.Width) * e.h.UpscaleFactor))
	dstH := int(math.Round(float64(box.Height) * e.h.UpscaleFactor))
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), pageImage, rect, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, errors.NewGeometryError(
			fmt.Sprintf("encoding crop for %s", fig.ID), err)
	}

	return &Crop{
		Figure:        fig,
		PNG:           buf.Bytes(),
		NormalizedBox: fig.Box.Normalized(pageW, pageH),
	}, nil
}

// ExtractPage crops every figure of one page. Per-figure failures are
// logged and skipped so the remaining figures still come through.
func (e *Extractor) ExtractPage(pageImage image.Image, figs []Integrated) []Crop {
	crops := make([]Crop, 0, len(figs))
	for _, fig := range figs {
		crop, err := e.Extract(pageImage, fig)
		if err != nil {
			e.logger.Warn("skipping unextractable figure",
				"figure", fig.ID, "error", err)
			continue
		}
		crops = append(crops, *crop)
	}
	return crops
}
