package types

// Chapter is a contiguous page range of a book. Chapters of a book tile
// [1, TotalPages] and are never resized after creation.
type Chapter struct {
	ID        string `json:"id"`
	BookID    string `json:"book_id"`
	Title     string `json:"title"`
	Order     int    `json:"order"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
}

// PageCount returns the number of pages in the chapter.
func (c Chapter) PageCount() int {
	return c.EndPage - c.StartPage + 1
}

// Contains reports whether page lies inside the chapter's range.
func (c Chapter) Contains(page int) bool {
	return page >= c.StartPage && page <= c.EndPage
}
