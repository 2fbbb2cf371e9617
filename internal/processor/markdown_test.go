package processor

import (
	"strings"
	"testing"

	"github.com/textbridge/ocr-worker/internal/figure"
	"github.com/textbridge/ocr-worker/internal/geometry"
)

func testFigure(page, seq int, desc string) figure.Integrated {
	return figure.Integrated{
		ID:          "hybrid_p1_0",
		Page:        page,
		Seq:         seq,
		Box:         geometry.Box{X: 100, Y: 200, Width: 300, Height: 150},
		Type:        figure.TypeDiagram,
		Description: desc,
		Provenance:  figure.ProvenanceHybrid,
		Confidence:  0.95,
	}
}

func TestAssembleMarkdownPageBreaks(t *testing.T) {
	pages := []MergePage{
		{Page: 1, Markdown: "# Chapter 1\n\nIntro text."},
		{Page: 2, Markdown: "Continuation of the chapter."},
		{Page: 3, Markdown: "## Section 2\n\nMore text."},
	}

	out := AssembleMarkdown(pages)

	// Break before page 1 (always) and page 3 (opens with a heading),
	// but not before page 2, which continues flowing text.
	if got := strings.Count(out, PageBreakMarker); got != 2 {
		t.Errorf("got %d page breaks, want 2:\n%s", got, out)
	}
	if !strings.HasPrefix(out, PageBreakMarker) {
		t.Error("merged document does not open with a page break")
	}
	if strings.Contains(out, PageBreakMarker+"\n\nContinuation") {
		t.Error("break inserted before a non-heading page")
	}
	if !strings.Contains(out, PageBreakMarker+"\n\n## Section 2") {
		t.Error("no break before the heading page")
	}
}

func TestAssembleMarkdownFigureReferences(t *testing.T) {
	pages := []MergePage{
		{
			Page:     1,
			Markdown: "Text around the figure.",
			Figures:  []figure.Integrated{testFigure(1, 1, "Cell structure")},
		},
	}

	out := AssembleMarkdown(pages)

	if !strings.Contains(out, "![Cell structure](figures/page_1_fig_1.png)") {
		t.Errorf("image reference missing:\n%s", out)
	}
	if !strings.Contains(out, "*Cell structure*") {
		t.Errorf("italic caption missing:\n%s", out)
	}
	// Text precedes its figures.
	textIdx := strings.Index(out, "Text around the figure.")
	figIdx := strings.Index(out, "![Cell structure]")
	if textIdx < 0 || figIdx < 0 || figIdx < textIdx {
		t.Errorf("figure emitted before page text:\n%s", out)
	}
}

func TestAssembleMarkdownEmptyPageText(t *testing.T) {
	pages := []MergePage{
		{Page: 1, Markdown: "   ", Figures: []figure.Integrated{testFigure(1, 1, "Diagram")}},
	}

	out := AssembleMarkdown(pages)

	if strings.Contains(out, "   \n") {
		t.Error("blank page text emitted verbatim")
	}
	if !strings.Contains(out, "![Diagram](figures/page_1_fig_1.png)") {
		t.Error("figure missing on text-free page")
	}
	if !strings.HasSuffix(out, "\n") || strings.HasSuffix(out, "\n\n") {
		t.Errorf("output not terminated by exactly one newline: %q", out[len(out)-4:])
	}
}

func TestFigureCaption(t *testing.T) {
	if got := FigureCaption(testFigure(3, 2, "Heart anatomy")); got != "Heart anatomy" {
		t.Errorf("caption = %q, want description", got)
	}
	if got := FigureCaption(testFigure(3, 2, "  ")); got != "Figure 3-2" {
		t.Errorf("fallback caption = %q, want positional form", got)
	}
}

func TestStartsWithHeading(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"# Title", true},
		{"\n\n  ## Indented heading", true},
		{"plain paragraph", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := startsWithHeading(tt.text); got != tt.want {
			t.Errorf("startsWithHeading(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
