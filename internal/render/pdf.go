/**
 * PDF handling for scanned documents
 *
 * Scanned textbooks carry one full-page scan image per page. This package
 * validates the incoming PDF, counts pages and pulls out each page's scan
 * raster; the raster is the pixel space every figure box refers to and the
 * bitmap figure crops are cut from.
 */

package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/textbridge/ocr-worker/internal/logging"
)

// PageRaster is one page's scan image, decoded and PNG-encoded.
type PageRaster struct {
	Page   int
	PNG    []byte
	Width  int
	Height int
}

// Renderer wraps PDF inspection and page raster extraction.
type Renderer struct {
	conf   *model.Configuration
	logger *logging.Logger
}

// NewRenderer creates a renderer with relaxed validation; scanner-produced
// PDFs are frequently not strictly conformant.
func NewRenderer() *Renderer {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Renderer{
		conf:   conf,
		logger: logging.NewLogger("Renderer"),
	}
}

// Validate checks the PDF is structurally readable.
func (r *Renderer) Validate(pdf []byte) error {
	if err := api.Validate(bytes.NewReader(pdf), r.conf); err != nil {
		return fmt.Errorf("pdf validation failed: %w", err)
	}
	return nil
}

// PageCount returns the document's page count.
func (r *Renderer) PageCount(pdf []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(pdf), r.conf)
	if err != nil {
		return 0, fmt.Errorf("counting pages: %w", err)
	}
	return count, nil
}

// ExtractPageRasters pulls each page's scan image out of the PDF. Pages
// with several embedded images keep the largest one; pages without any
// image are simply absent from the result, and downstream stages degrade
// those pages to text-only.
func (r *Renderer) ExtractPageRasters(pdf []byte) (map[int]PageRaster, error) {
	extracted, err := api.ExtractImagesRaw(bytes.NewReader(pdf), nil, r.conf)
	if err != nil {
		return nil, fmt.Errorf("extracting page images: %w", err)
	}

	rasters := make(map[int]PageRaster)
	for _, pageImages := range extracted {
		for _, img := range pageImages {
			raster, err := rasterFromImage(img)
			if err != nil {
				r.logger.Warn("skipping undecodable page image",
					"page", img.PageNr, "name", img.Name, "fileType", img.FileType, "error", err)
				continue
			}
			// Keep the dominant scan when a page embeds several images.
			if prev, ok := rasters[img.PageNr]; ok && prev.Width*prev.Height >= raster.Width*raster.Height {
				continue
			}
			rasters[img.PageNr] = raster
		}
	}

	r.logger.Info("page rasters extracted", "pages", len(rasters))
	return rasters, nil
}

// rasterFromImage decodes one embedded image and normalizes it to PNG.
func rasterFromImage(img model.Image) (PageRaster, error) {
	data, err := io.ReadAll(img)
	if err != nil {
		return PageRaster{}, fmt.Errorf("reading image stream: %w", err)
	}
	decoded, pngData, err := DecodeToPNG(data)
	if err != nil {
		return PageRaster{}, err
	}
	bounds := decoded.Bounds()
	return PageRaster{
		Page:   img.PageNr,
		PNG:    pngData,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
