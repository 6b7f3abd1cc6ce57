// Package types provides shared record types used across multiple packages.
// This package has no dependencies on other bitbybit packages to avoid import cycles.
package types

import "time"

// StructureSource records where a book's chapter/section structure came from.
type StructureSource string

const (
	// SourceNative means the structure was derived from the document's embedded outline.
	SourceNative StructureSource = "native"
	// SourceAI means the structure is produced by the batch splitter's classifier.
	SourceAI StructureSource = "ai"
	// SourceManual means the structure was entered by hand.
	SourceManual StructureSource = "manual"
)

// ProcessingStatus is the single source of truth for whether structuring finished.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusComplete   ProcessingStatus = "complete"
	StatusError      ProcessingStatus = "error"
)

// Valid reports whether s is a known processing status.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusComplete, StatusError:
		return true
	}
	return false
}

// Book is an imported document. The raw payload is stored beside the record
// and is never loaded when listing books.
type Book struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Author           string           `json:"author,omitempty"`
	TotalPages       int              `json:"total_pages"`
	StructureSource  StructureSource  `json:"structure_source"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	CreatedAt        time.Time        `json:"created_at"`
	LastReadAt       *time.Time       `json:"last_read_at,omitempty"`
}
