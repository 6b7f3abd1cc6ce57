package structure

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackzampolin/bitbybit/internal/document"
	"github.com/jackzampolin/bitbybit/internal/outline"
)

var fakePayload = []byte("%PDF-1.4\nfake document for tests\n")

// fakeDoc is an in-memory document.Source.
type fakeDoc struct {
	md         document.Metadata
	nodes      []outline.Node
	outlineErr error
	texts      map[int]string
	failText   int // PageText fails on this page when > 0

	mu       sync.Mutex
	rendered []int
	closed   bool
}

func newFakeDoc(pages int) *fakeDoc {
	d := &fakeDoc{
		md:    document.Metadata{Title: "Fake Book", Author: "A. Writer", PageCount: pages},
		texts: make(map[int]string),
	}
	for p := 1; p <= pages; p++ {
		d.texts[p] = fmt.Sprintf("text of page %d", p)
	}
	return d
}

func (d *fakeDoc) opener() document.Opener {
	return document.OpenerFunc(func(context.Context, []byte) (document.Source, error) {
		return d, nil
	})
}

func (d *fakeDoc) Metadata(context.Context) (document.Metadata, error) { return d.md, nil }

func (d *fakeDoc) Outline(context.Context) ([]outline.Node, error) {
	return d.nodes, d.outlineErr
}

func (d *fakeDoc) RenderPage(_ context.Context, page int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rendered = append(d.rendered, page)
	return []byte(fmt.Sprintf("jpeg-%d", page)), nil
}

func (d *fakeDoc) PageText(_ context.Context, page int) (string, error) {
	if page == d.failText {
		return "", fmt.Errorf("page %d is corrupt", page)
	}
	return d.texts[page], nil
}

func (d *fakeDoc) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
