/**
 * Local text-density check - Fallback for offline verification
 *
 * Simple, free, offline heuristic using Tesseract. Used only when the
 * remote verification endpoint is unavailable: a crop whose area is
 * dominated by machine-readable running text is almost certainly a
 * misclassified body-text block, not a figure.
 */

package figure

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// LocalChecker rejects crops that are dominated by running text.
type LocalChecker struct {
	// MaxCharsPerKilopixel is the recognized-character density above which
	// a crop counts as a text block. Diagrams with labels stay well below
	// it; dense paragraph scans exceed it by an order of magnitude.
	MaxCharsPerKilopixel float64
}

// NewLocalChecker creates a checker with the calibrated default density
// threshold.
func NewLocalChecker() *LocalChecker {
	return &LocalChecker{MaxCharsPerKilopixel: 4.0}
}

// LooksLikeFigure runs Tesseract over the crop and compares the recognized
// character density against the threshold.
func (c *LocalChecker) LooksLikeFigure(pngImage []byte) (bool, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(pngImage))
	if err != nil {
		return false, fmt.Errorf("decoding crop: %w", err)
	}
	kilopixels := float64(cfg.Width*cfg.Height) / 1000.0
	if kilopixels <= 0 {
		return false, fmt.Errorf("empty crop")
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(pngImage); err != nil {
		return false, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return false, fmt.Errorf("tesseract failed: %w", err)
	}

	chars := len(strings.Join(strings.Fields(text), ""))
	density := float64(chars) / kilopixels
	return density <= c.MaxCharsPerKilopixel, nil
}
