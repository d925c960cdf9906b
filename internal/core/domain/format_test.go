package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected Format
	}{
		{"report.pdf", FormatPDF},
		{"/a/b/REPORT.PDF", FormatPDF},
		{"letter.docx", FormatDocx},
		{"Letter.DocX", FormatDocx},
		{"notes.txt", FormatText},
		{"budget.xlsx", FormatSpreadsheet},
		{"legacy.xls", FormatSpreadsheet},
		{"data.CSV", FormatSpreadsheet},
		{"page.html", FormatUnstructured},
		{"scan.png", FormatUnstructured},
		{"README", FormatUnstructured},
		{"archive.tar.gz", FormatUnstructured},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatFromPath(tt.path))
		})
	}
}

func TestFormat_IsValid(t *testing.T) {
	for _, f := range AllFormats() {
		assert.True(t, f.IsValid(), f.String())
	}
	assert.False(t, Format("xlsx").IsValid())
	assert.False(t, Format("").IsValid())
}

func TestFormat_IsExcluded(t *testing.T) {
	for _, f := range AllFormats() {
		assert.Equal(t, f == FormatSpreadsheet, f.IsExcluded(), f.String())
	}
}
