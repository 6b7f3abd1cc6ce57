package structure

import (
	"fmt"

	"github.com/jackzampolin/bitbybit/internal/outline"
)

// DefaultBatchSize is the page count of a provisional chapter when a
// document has no usable outline.
const DefaultBatchSize = 10

// ResolvedSection is a section with its inclusive page range.
type ResolvedSection struct {
	Title     string
	StartPage int
	EndPage   int
}

// ResolvedChapter is a chapter with its inclusive page range and sections.
type ResolvedChapter struct {
	Title     string
	StartPage int
	EndPage   int
	Sections  []ResolvedSection
}

// ResolveRanges assigns inclusive page ranges to normalized outline groups.
//
// A chapter starts at its first section's anchor and ends one page before
// the next chapter's first anchor (the last chapter ends at totalPages). A
// section starts at its own anchor and ends one page before the next
// section's anchor, or at the chapter end. The first chapter always starts on
// page 1. An anchor is honoured only when it falls strictly after the previous
// start and leaves at least one page for every item after it; missing or
// rejected anchors are spread evenly between the honoured ones. The result
// tiles [1, totalPages] whenever there are no more groups than pages.
func ResolveRanges(groups []outline.Group, totalPages int) []ResolvedChapter {
	if len(groups) == 0 || totalPages < 1 {
		return nil
	}

	anchors := make([]*int, len(groups))
	for i, g := range groups {
		if len(g.Sections) > 0 {
			anchors[i] = g.Sections[0].PageNumber
		}
	}
	chapterStarts := tile(anchors, 1, totalPages)

	chapters := make([]ResolvedChapter, len(groups))
	for i, g := range groups {
		start := chapterStarts[i]
		end := totalPages
		if i+1 < len(groups) {
			end = chapterStarts[i+1] - 1
		}
		end = max(end, start)

		sectionAnchors := make([]*int, len(g.Sections))
		for j, s := range g.Sections {
			sectionAnchors[j] = s.PageNumber
		}
		sectionStarts := tile(sectionAnchors, start, end)

		sections := make([]ResolvedSection, len(g.Sections))
		for j, s := range g.Sections {
			sEnd := end
			if j+1 < len(g.Sections) {
				sEnd = sectionStarts[j+1] - 1
			}
			sections[j] = ResolvedSection{
				Title:     s.Title,
				StartPage: sectionStarts[j],
				EndPage:   max(sEnd, sectionStarts[j]),
			}
		}

		chapters[i] = ResolvedChapter{
			Title:     g.ChapterTitle,
			StartPage: start,
			EndPage:   end,
			Sections:  sections,
		}
	}
	return chapters
}

// tile picks a start page in [lo, hi] for each of n items. The first item
// starts at lo. Starts are strictly increasing while n fits in the range.
func tile(anchors []*int, lo, hi int) []int {
	n := len(anchors)
	starts := make([]int, n)
	if n == 0 {
		return starts
	}

	// Indices of honoured anchors; item 0 is pinned to lo.
	fixed := []int{0}
	starts[0] = lo
	for i := 1; i < n; i++ {
		a := anchors[i]
		if a == nil {
			continue
		}
		prev := fixed[len(fixed)-1]
		if *a-starts[prev] < i-prev {
			continue
		}
		if *a > hi-(n-1-i) {
			continue
		}
		starts[i] = *a
		fixed = append(fixed, i)
	}

	// Spread the items between honoured anchors. hi+1 acts as a virtual
	// anchor after the last item.
	fixed = append(fixed, n)
	for k := 0; k+1 < len(fixed); k++ {
		from, to := fixed[k], fixed[k+1]
		upper := hi + 1
		if to < n {
			upper = starts[to]
		}
		span := upper - starts[from]
		parts := to - from
		for m := 1; m < parts; m++ {
			starts[from+m] = min(starts[from]+m*span/parts, hi)
		}
	}
	return starts
}

// DefaultChapters splits a document into provisional chapters of batchSize
// pages, titled "Pages a-b", with no sections.
func DefaultChapters(totalPages, batchSize int) []ResolvedChapter {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	var chapters []ResolvedChapter
	for start := 1; start <= totalPages; start += batchSize {
		end := min(start+batchSize-1, totalPages)
		chapters = append(chapters, ResolvedChapter{
			Title:     fmt.Sprintf("Pages %d-%d", start, end),
			StartPage: start,
			EndPage:   end,
		})
	}
	return chapters
}
