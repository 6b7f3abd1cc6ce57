package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/jackzampolin/bitbybit/internal/outline"
	"github.com/jackzampolin/bitbybit/internal/types"
)

// buildPDF writes a minimal PDF with one line of Helvetica text per page
// and an Info dictionary.
func buildPDF(t *testing.T, title string, pageTexts ...string) []byte {
	t.Helper()

	n := len(pageTexts)
	// Objects: 1 catalog, 2 pages, 3 font, 4 info, then page/content pairs.
	var objects []string
	kids := make([]string, n)
	for i := range pageTexts {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Title (%s) /Author (Test Author) >>", title),
	)
	for i, text := range pageTexts {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 6+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestDetectPDF(t *testing.T) {
	if err := DetectPDF([]byte("%PDF-1.7\n...")); err != nil {
		t.Errorf("PDF header rejected: %v", err)
	}

	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	for name, payload := range map[string][]byte{
		"empty": nil,
		"text":  []byte("hello world"),
		"png":   png,
	} {
		t.Run(name, func(t *testing.T) {
			if err := DetectPDF(payload); !errors.Is(err, types.ErrInvalidDocument) {
				t.Errorf("DetectPDF() = %v, want ErrInvalidDocument", err)
			}
		})
	}
}

func TestOpenPDF(t *testing.T) {
	payload := buildPDF(t, "Tiny Book", "Page One", "Page Two", "Page Three")

	doc, err := OpenPDF(payload, PDFOptions{})
	if err != nil {
		t.Fatalf("OpenPDF() error = %v", err)
	}
	defer doc.Close()

	ctx := context.Background()
	md, err := doc.Metadata(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if md.PageCount != 3 || md.Title != "Tiny Book" || md.Author != "Test Author" {
		t.Errorf("Metadata() = %+v", md)
	}

	text, err := doc.PageText(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Two") {
		t.Errorf("PageText(2) = %q", text)
	}
	if _, err := doc.PageText(ctx, 4); err == nil {
		t.Error("PageText past the end succeeded")
	}

	nodes, err := doc.Outline(ctx)
	if err != nil || nodes != nil {
		t.Errorf("Outline() = %v, %v; want nil, nil", nodes, err)
	}

	if _, err := doc.RenderPage(ctx, 1); !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("RenderPage without renderer = %v, want ErrConfiguration", err)
	}
}

func TestOpenPDFRejectsGarbage(t *testing.T) {
	_, err := OpenPDF([]byte("%PDF-1.4\nthis is not really a pdf"), PDFOptions{})
	if !errors.Is(err, types.ErrInvalidDocument) {
		t.Fatalf("OpenPDF() error = %v, want ErrInvalidDocument", err)
	}
}

type recordingRenderer struct {
	path string
	page int
}

func (r *recordingRenderer) Render(_ context.Context, path string, page int) ([]byte, error) {
	r.path, r.page = path, page
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, errors.New("renderer got a non-PDF file")
	}
	return []byte("jpeg"), nil
}

func TestRenderPageWritesTempFile(t *testing.T) {
	renderer := &recordingRenderer{}
	doc, err := OpenPDF(buildPDF(t, "T", "a", "b"), PDFOptions{Renderer: renderer, TempDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	img, err := doc.RenderPage(context.Background(), 2)
	if err != nil {
		t.Fatalf("RenderPage() error = %v", err)
	}
	if string(img) != "jpeg" || renderer.page != 2 {
		t.Errorf("RenderPage() = %q on page %d", img, renderer.page)
	}

	if err := doc.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(renderer.path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file survived Close: %v", err)
	}
}

func TestConvertBookmarks(t *testing.T) {
	bookmarks := []pdfcpu.Bookmark{
		{Title: "Part I", PageFrom: 0, Kids: []pdfcpu.Bookmark{
			{Title: "Chapter 1", PageFrom: 3},
			{Title: "Chapter 2", PageFrom: 9},
		}},
		{Title: "Index", PageFrom: 40},
	}
	nodes, err := convertBookmarks(bookmarks, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 || len(nodes[0].Children) != 2 {
		t.Fatalf("nodes = %+v", nodes)
	}
	if nodes[0].PageNumber != nil {
		t.Errorf("unresolved destination got page %d", *nodes[0].PageNumber)
	}
	if p := nodes[0].Children[1].PageNumber; p == nil || *p != 9 {
		t.Errorf("Chapter 2 page = %v", p)
	}

	deep := pdfcpu.Bookmark{Title: "leaf", PageFrom: 1}
	for i := 0; i < outline.MaxDepth; i++ {
		deep = pdfcpu.Bookmark{Title: "level", PageFrom: 1, Kids: []pdfcpu.Bookmark{deep}}
	}
	if _, err := convertBookmarks([]pdfcpu.Bookmark{deep}, 1); !errors.Is(err, outline.ErrTooDeep) {
		t.Errorf("deep outline error = %v, want ErrTooDeep", err)
	}
}

func TestEncodeJPEG(t *testing.T) {
	src := imaging.New(2000, 1000, color.White)

	data, err := EncodeJPEG(src, 1000, 80)
	if err != nil {
		t.Fatal(err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1000 || b.Dy() != 500 {
		t.Errorf("size = %dx%d, want 1000x500", b.Dx(), b.Dy())
	}

	small, err := EncodeJPEG(imaging.New(10, 10, color.Black), 1000, 80)
	if err != nil {
		t.Fatal(err)
	}
	img, _, _ = image.Decode(bytes.NewReader(small))
	if img.Bounds().Dx() != 10 {
		t.Errorf("small image resized to %d", img.Bounds().Dx())
	}
}

func TestPdftoppmRendererMissingBinary(t *testing.T) {
	r := &PdftoppmRenderer{Binary: "bitbybit-no-such-binary"}
	if r.Available() {
		t.Fatal("missing binary reported available")
	}
	if _, err := r.Render(context.Background(), "x.pdf", 1); err == nil {
		t.Error("Render succeeded without a binary")
	}
}
