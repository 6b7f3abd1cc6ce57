package types

import "time"

// Section is the smallest reading unit. Order is book-global and follows
// reading order. IsRead is true exactly when ReadAt is set.
type Section struct {
	ID             string     `json:"id"`
	ChapterID      string     `json:"chapter_id"`
	BookID         string     `json:"book_id"`
	Title          string     `json:"title"`
	Order          int        `json:"order"`
	StartPage      int        `json:"start_page"`
	EndPage        int        `json:"end_page"`
	ExtractedText  *string    `json:"extracted_text,omitempty"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	LastPageViewed *int       `json:"last_page_viewed,omitempty"`
	ScrollProgress *float64   `json:"scroll_progress,omitempty"`
}

// MarkRead sets the read flag. An already-read section keeps its first ReadAt.
func (s *Section) MarkRead(at time.Time) {
	if s.IsRead && s.ReadAt != nil {
		return
	}
	t := at
	s.IsRead = true
	s.ReadAt = &t
}

// MarkUnread clears the read flag and timestamp together.
func (s *Section) MarkUnread() {
	s.IsRead = false
	s.ReadAt = nil
}

// PageCount returns the number of pages in the section.
func (s Section) PageCount() int {
	return s.EndPage - s.StartPage + 1
}
