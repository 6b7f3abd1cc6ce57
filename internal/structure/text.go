package structure

import (
	"context"
	"fmt"
	"strings"
)

// pageSeparator joins the text of consecutive pages.
const pageSeparator = "\n\n"

// PageTextSource returns the extracted text of a single 1-indexed page.
type PageTextSource interface {
	PageText(ctx context.Context, page int) (string, error)
}

// PageTexts holds the text of a contiguous run of pages, extracted once and
// then bound to each section that covers part of the run.
type PageTexts struct {
	Start int
	Texts []string
}

// ExtractPageTexts reads every page in [start, end] once.
func ExtractPageTexts(ctx context.Context, src PageTextSource, start, end int) (PageTexts, error) {
	texts := make([]string, 0, max(end-start+1, 0))
	for p := start; p <= end; p++ {
		if err := ctx.Err(); err != nil {
			return PageTexts{}, err
		}
		text, err := src.PageText(ctx, p)
		if err != nil {
			return PageTexts{}, fmt.Errorf("extract text of page %d: %w", p, err)
		}
		texts = append(texts, text)
	}
	return PageTexts{Start: start, Texts: texts}, nil
}

// Page returns the text of page p, or "" when p is outside the run.
func (pt PageTexts) Page(p int) string {
	i := p - pt.Start
	if i < 0 || i >= len(pt.Texts) {
		return ""
	}
	return pt.Texts[i]
}

// Bind concatenates the text of pages [start, end], skipping pages that are
// empty or whitespace only. It returns nil when no page has text.
func (pt PageTexts) Bind(start, end int) *string {
	var parts []string
	for p := start; p <= end; p++ {
		text := pt.Page(p)
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, text)
	}
	if len(parts) == 0 {
		return nil
	}
	joined := strings.Join(parts, pageSeparator)
	return &joined
}
