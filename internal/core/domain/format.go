package domain

import (
	"path/filepath"
	"strings"
)

// Format is the extraction strategy chosen for a file.
// The set is closed: every path maps to exactly one Format.
type Format string

// Available formats.
const (
	// FormatPDF is direct page text with OCR and decrypt fallbacks.
	FormatPDF Format = "pdf"

	// FormatDocx is a Word document handled by the generic extractor.
	FormatDocx Format = "docx"

	// FormatText is a plain text file handled by the generic extractor.
	FormatText Format = "txt"

	// FormatSpreadsheet covers xlsx, xls and csv. These are excluded.
	FormatSpreadsheet Format = "spreadsheet"

	// FormatUnstructured is the best-effort fallback for every other extension.
	FormatUnstructured Format = "unstructured"
)

// FormatFromPath determines the format from a file extension, case-insensitively.
func FormatFromPath(path string) Format {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "pdf":
		return FormatPDF
	case "docx":
		return FormatDocx
	case "txt":
		return FormatText
	case "xlsx", "xls", "csv":
		return FormatSpreadsheet
	default:
		return FormatUnstructured
	}
}

// IsValid returns true if the format is recognised.
func (f Format) IsValid() bool {
	switch f {
	case FormatPDF, FormatDocx, FormatText, FormatSpreadsheet, FormatUnstructured:
		return true
	default:
		return false
	}
}

// IsExcluded returns true if files of this format are skipped without error.
func (f Format) IsExcluded() bool {
	return f == FormatSpreadsheet
}

// String returns the string representation.
func (f Format) String() string {
	return string(f)
}

// AllFormats returns every format in dispatch order.
func AllFormats() []Format {
	return []Format{
		FormatPDF,
		FormatDocx,
		FormatText,
		FormatSpreadsheet,
		FormatUnstructured,
	}
}
