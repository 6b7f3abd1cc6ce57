package document

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
)

// Renderer turns one page of a PDF on disk into a JPEG.
type Renderer interface {
	Render(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

// PdftoppmRenderer renders with pdftoppm (poppler-utils) and downsizes the
// PNG with imaging before JPEG encoding. Vision models do not need 300 DPI.
type PdftoppmRenderer struct {
	Binary      string // default "pdftoppm"
	DPI         int    // default 150
	MaxWidth    int    // default 1280; 0 keeps the rendered width
	JPEGQuality int    // default 85
	TempDir     string // os.TempDir() when empty
}

// DefaultRenderer returns a renderer with the default settings.
func DefaultRenderer() *PdftoppmRenderer {
	return &PdftoppmRenderer{}
}

func (r *PdftoppmRenderer) binary() string {
	if r.Binary != "" {
		return r.Binary
	}
	return "pdftoppm"
}

// Available reports whether the pdftoppm binary is on PATH.
func (r *PdftoppmRenderer) Available() bool {
	_, err := exec.LookPath(r.binary())
	return err == nil
}

// Render renders page of the PDF at pdfPath.
func (r *PdftoppmRenderer) Render(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 150
	}
	quality := r.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	maxWidth := r.MaxWidth
	if maxWidth == 0 {
		maxWidth = 1280
	}

	tmpDir, err := os.MkdirTemp(r.TempDir, "bitbybit-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// -singlefile writes <prefix>.png with no page suffix.
	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, r.binary(),
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("pdftoppm failed on page %d: %w (output: %s)", page, err, string(output))
	}

	img, err := imaging.Open(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create a readable image: %w", err)
	}
	return EncodeJPEG(img, maxWidth, quality)
}
