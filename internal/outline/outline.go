// Package outline turns a document's bookmark tree into a flat list of
// chapter groups, each holding the leaf entries that become sections.
package outline

import (
	"errors"
	"fmt"
	"strings"
)

// MaxDepth bounds how deep an outline tree may nest.
const MaxDepth = 32

// ErrTooDeep is returned by Validate when the tree nests deeper than MaxDepth.
var ErrTooDeep = errors.New("outline nests too deeply")

// titleSeparator joins ancestor titles into a chapter title.
const titleSeparator = " > "

// Node is one outline entry. A node without children is a leaf.
// PageNumber is nil when the entry's destination could not be resolved.
type Node struct {
	Title      string `json:"title"`
	PageNumber *int   `json:"page_number,omitempty"`
	Children   []Node `json:"children,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Entry is a leaf carried into a group. It becomes a section.
type Entry struct {
	Title      string
	PageNumber *int
}

// Group is a chapter candidate: a title and the ordered leaves under it.
type Group struct {
	ChapterTitle string
	Sections     []Entry
}

// Validate normalizes a raw tree at the boundary: titles are trimmed and
// empty ones replaced, anchors outside [1, totalPages] become nil, and trees
// deeper than MaxDepth are rejected. The input is not modified.
func Validate(nodes []Node, totalPages int) ([]Node, error) {
	return validate(nodes, totalPages, 1)
}

func validate(nodes []Node, totalPages, depth int) ([]Node, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: limit %d", ErrTooDeep, MaxDepth)
	}

	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		title := strings.Join(strings.Fields(n.Title), " ")
		if title == "" {
			title = "Untitled"
		}

		var page *int
		if n.PageNumber != nil && *n.PageNumber >= 1 && *n.PageNumber <= totalPages {
			p := *n.PageNumber
			page = &p
		}

		children, err := validate(n.Children, totalPages, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, Node{Title: title, PageNumber: page, Children: children})
	}
	return out, nil
}

// Normalize flattens the tree into chapter groups:
//   - a top-level leaf becomes a group of its own;
//   - a node whose children are all leaves becomes one group titled with the
//     ancestor path, its children as sections;
//   - a deeper node is a grouping level: each run of consecutive leaf children
//     becomes a group titled with the path including the node, and nested
//     children recurse with that path as their prefix.
//
// Leaves appear exactly once across the result, in document order.
func Normalize(nodes []Node) []Group {
	var groups []Group
	walk(nodes, "", &groups)
	return groups
}

func walk(nodes []Node, prefix string, groups *[]Group) {
	for _, n := range nodes {
		switch {
		case n.IsLeaf():
			*groups = append(*groups, Group{
				ChapterTitle: n.Title,
				Sections:     []Entry{entry(n)},
			})

		case allLeaves(n.Children):
			g := Group{ChapterTitle: join(prefix, n.Title)}
			for _, c := range n.Children {
				g.Sections = append(g.Sections, entry(c))
			}
			*groups = append(*groups, g)

		default:
			path := join(prefix, n.Title)
			var run []Entry
			flush := func() {
				if len(run) > 0 {
					*groups = append(*groups, Group{ChapterTitle: path, Sections: run})
					run = nil
				}
			}
			for _, c := range n.Children {
				if c.IsLeaf() {
					run = append(run, entry(c))
					continue
				}
				flush()
				walk([]Node{c}, path, groups)
			}
			flush()
		}
	}
}

func entry(n Node) Entry {
	return Entry{Title: n.Title, PageNumber: n.PageNumber}
}

func allLeaves(nodes []Node) bool {
	for _, n := range nodes {
		if !n.IsLeaf() {
			return false
		}
	}
	return true
}

func join(prefix, title string) string {
	if prefix == "" {
		return title
	}
	return prefix + titleSeparator + title
}
