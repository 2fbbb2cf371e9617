/**
 * Markdown assembly
 *
 * Builds the consolidated per-document markdown from the ordered page
 * results and their verified figures. Image references use the same file
 * naming as the extracted crops, so every reference in the merged document
 * resolves against the figures directory written next to it.
 */

package processor

import (
	"fmt"
	"strings"

	"github.com/textbridge/ocr-worker/internal/figure"
)

// PageBreakMarker separates logical pages in the merged markdown; the
// downstream HTML/PDF renderers honor it as a forced page break.
const PageBreakMarker = `<div style="page-break-before: always;"></div>`

// MergePage is one page's contribution to the merged document.
type MergePage struct {
	Page        int
	Markdown    string
	WritingMode string
	Figures     []figure.Integrated // verified figures only, in Seq order
}

// AssembleMarkdown walks pages in order and emits the consolidated
// document: a page break before the first page and before every page that
// opens with a heading, the page text, then one image reference per
// verified figure.
func AssembleMarkdown(pages []MergePage) string {
	var b strings.Builder

	for i, page := range pages {
		if i == 0 || startsWithHeading(page.Markdown) {
			b.WriteString(PageBreakMarker)
			b.WriteString("\n\n")
		}

		text := strings.TrimSpace(page.Markdown)
		if text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}

		for _, fig := range page.Figures {
			caption := FigureCaption(fig)
			b.WriteString(fmt.Sprintf("![%s](figures/%s)\n", caption, fig.FileName()))
			b.WriteString(fmt.Sprintf("*%s*\n\n", caption))
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// FigureCaption returns the figure's description, or a positional fallback
// when the detector was the only source and no description exists.
func FigureCaption(fig figure.Integrated) string {
	if desc := strings.TrimSpace(fig.Description); desc != "" {
		return desc
	}
	return fmt.Sprintf("Figure %d-%d", fig.Page, fig.Seq)
}

// startsWithHeading reports whether the page text opens with a markdown
// heading.
func startsWithHeading(markdown string) bool {
	trimmed := strings.TrimSpace(markdown)
	return strings.HasPrefix(trimmed, "#")
}
