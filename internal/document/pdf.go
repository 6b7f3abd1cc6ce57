package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/bitbybit/internal/outline"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// PDF is a Source backed by an in-memory PDF. Text and document info come
// from ledongthuc/pdf, page count and bookmarks from pdfcpu, images from a
// Renderer working on a temp copy of the file.
type PDF struct {
	data      []byte
	pageCount int
	renderer  Renderer
	tempDir   string
	logger    *slog.Logger

	mu     sync.Mutex // guards reader and path
	reader *pdf.Reader
	path   string
}

// PDFOptions configures OpenPDF.
type PDFOptions struct {
	Renderer Renderer // page images; RenderPage fails when nil
	TempDir  string   // where the file is written for the renderer; os.TempDir() when empty
	Logger   *slog.Logger
}

// OpenPDF parses payload. Invalid or unreadable files fail with
// types.ErrInvalidDocument.
func OpenPDF(payload []byte, opts PDFOptions) (*PDF, error) {
	if err := DetectPDF(payload); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	pageCount, err := api.PageCount(bytes.NewReader(payload), pdfcpuConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidDocument, err)
	}
	if pageCount < 1 {
		return nil, fmt.Errorf("%w: document has no pages", types.ErrInvalidDocument)
	}

	reader, err := pdf.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		// Text extraction is best effort; images and outline still work.
		opts.Logger.Warn("pdf text layer unreadable", "error", err)
		reader = nil
	}

	return &PDF{
		data:      payload,
		pageCount: pageCount,
		renderer:  opts.Renderer,
		tempDir:   opts.TempDir,
		logger:    opts.Logger,
		reader:    reader,
	}, nil
}

// PDFOpener opens payloads as PDFs.
type PDFOpener struct {
	Options PDFOptions
}

func (o PDFOpener) Open(_ context.Context, payload []byte) (Source, error) {
	return OpenPDF(payload, o.Options)
}

func pdfcpuConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Metadata returns the page count and the Info dictionary's title and author.
func (d *PDF) Metadata(_ context.Context) (Metadata, error) {
	md := Metadata{PageCount: d.pageCount}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reader == nil {
		return md, nil
	}
	err := guard(func() error {
		info := d.reader.Trailer().Key("Info")
		md.Title = strings.TrimSpace(info.Key("Title").Text())
		md.Author = strings.TrimSpace(info.Key("Author").Text())
		return nil
	})
	if err != nil {
		d.logger.Warn("pdf info unreadable", "error", err)
	}
	return md, nil
}

// Outline converts the document's bookmarks. A document without bookmarks
// returns nil, nil.
func (d *PDF) Outline(_ context.Context) ([]outline.Node, error) {
	bookmarks, err := api.Bookmarks(bytes.NewReader(d.data), pdfcpuConfig())
	if err != nil {
		if errors.Is(err, pdfcpu.ErrNoOutlines) {
			return nil, nil
		}
		return nil, fmt.Errorf("read bookmarks: %w", err)
	}
	return convertBookmarks(bookmarks, 1)
}

func convertBookmarks(bookmarks []pdfcpu.Bookmark, depth int) ([]outline.Node, error) {
	if len(bookmarks) == 0 {
		return nil, nil
	}
	if depth > outline.MaxDepth {
		return nil, outline.ErrTooDeep
	}
	nodes := make([]outline.Node, 0, len(bookmarks))
	for _, bm := range bookmarks {
		node := outline.Node{Title: bm.Title}
		if bm.PageFrom > 0 {
			page := bm.PageFrom
			node.PageNumber = &page
		}
		children, err := convertBookmarks(bm.Kids, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = children
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// PageText returns the plain text of page. Pages whose content stream
// cannot be decoded yield "".
func (d *PDF) PageText(ctx context.Context, page int) (string, error) {
	if err := checkPage(page, d.pageCount); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reader == nil || page > d.reader.NumPage() {
		return "", nil
	}

	var text string
	err := guard(func() error {
		p := d.reader.Page(page)
		if p.V.IsNull() {
			return nil
		}
		var err error
		text, err = p.GetPlainText(nil)
		return err
	})
	if err != nil {
		d.logger.Debug("page text unreadable", "page", page, "error", err)
		return "", nil
	}
	return strings.TrimSpace(text), nil
}

// RenderPage renders page to JPEG through the configured Renderer.
func (d *PDF) RenderPage(ctx context.Context, page int) ([]byte, error) {
	if err := checkPage(page, d.pageCount); err != nil {
		return nil, err
	}
	if d.renderer == nil {
		return nil, fmt.Errorf("%w: no page renderer configured", types.ErrConfiguration)
	}
	path, err := d.file()
	if err != nil {
		return nil, err
	}
	return d.renderer.Render(ctx, path, page)
}

// file writes the payload to disk once for external renderers.
func (d *PDF) file() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.path != "" {
		return d.path, nil
	}
	f, err := os.CreateTemp(d.tempDir, "bitbybit-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp pdf: %w", err)
	}
	if _, err := f.Write(d.data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp pdf: %w", err)
	}
	d.path = f.Name()
	return d.path, nil
}

// Close removes the temp file, if one was written.
func (d *PDF) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.path == "" {
		return nil
	}
	err := os.Remove(d.path)
	d.path = ""
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// guard turns panics from the text layer into errors. Malformed font and
// content streams panic inside ledongthuc/pdf.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf: %v", r)
		}
	}()
	return fn()
}

var _ Source = (*PDF)(nil)
