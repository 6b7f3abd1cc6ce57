package types

import "errors"

// Error kinds shared by every layer. Callers wrap them with fmt.Errorf("...: %w")
// and inspect them with errors.Is.
var (
	// ErrNotFound is returned when a book, chapter or section id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration is returned when the classification capability is not configured.
	ErrConfiguration = errors.New("classification not configured")

	// ErrMalformedResponse is returned when a classification response cannot be
	// interpreted as a list of sections.
	ErrMalformedResponse = errors.New("malformed classification response")

	// ErrStorage is returned when a read or write against the store fails.
	ErrStorage = errors.New("storage failure")

	// ErrChapterBusy is returned when another run already holds a chapter.
	ErrChapterBusy = errors.New("chapter is being structured")

	// ErrInvalidDocument is returned when an uploaded payload is not a PDF.
	ErrInvalidDocument = errors.New("invalid document")
)
