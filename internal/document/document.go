// Package document reads uploaded books: metadata, outline, page text and
// page images.
package document

import (
	"context"
	"fmt"

	"github.com/h2non/filetype"

	"github.com/jackzampolin/bitbybit/internal/outline"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// Metadata is what the document says about itself.
type Metadata struct {
	Title     string
	Author    string
	PageCount int
}

// Source is an opened document. Pages are 1-indexed.
type Source interface {
	Metadata(ctx context.Context) (Metadata, error)

	// Outline returns the embedded outline, or nil when there is none.
	Outline(ctx context.Context) ([]outline.Node, error)

	// RenderPage returns the page as a JPEG.
	RenderPage(ctx context.Context, page int) ([]byte, error)

	// PageText returns the page's extracted text, "" when it has none.
	PageText(ctx context.Context, page int) (string, error)

	Close() error
}

// Opener opens a stored payload.
type Opener interface {
	Open(ctx context.Context, payload []byte) (Source, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, payload []byte) (Source, error)

func (f OpenerFunc) Open(ctx context.Context, payload []byte) (Source, error) {
	return f(ctx, payload)
}

// DetectPDF checks the payload's magic bytes.
func DetectPDF(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty upload", types.ErrInvalidDocument)
	}
	if !filetype.Is(payload, "pdf") {
		kind, _ := filetype.Match(payload)
		if kind != filetype.Unknown {
			return fmt.Errorf("%w: got %s, want pdf", types.ErrInvalidDocument, kind.Extension)
		}
		return fmt.Errorf("%w: not a PDF", types.ErrInvalidDocument)
	}
	return nil
}

func checkPage(page, count int) error {
	if page < 1 || page > count {
		return fmt.Errorf("page %d out of range [1, %d]", page, count)
	}
	return nil
}
