// Package export renders a project's manuscript to PDF or DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	ProjectID       string
	ChapterIDs      []string // empty = all chapters
	Format          Format
	IncludeSynopsis bool
}

// ProjectInfo holds project metadata for export
type ProjectInfo struct {
	ID          string
	Title       string
	Author      string
	Description string
	UpdatedAt   time.Time
}

// ChapterInfo holds one chapter's export content
type ChapterInfo struct {
	ID            string
	ChapterNumber int
	Title         string
	Content       string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates manuscript content could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
