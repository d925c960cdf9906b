package domain

// UnknownSource is the attribution used when a record has neither a file name nor a URL.
const UnknownSource = "unknown_source"

// SourceRecord is the text extracted from a single file or URL.
// It is produced once per successfully extracted source and never modified.
type SourceRecord struct {
	// Content is the extracted (and, after the cleaning stage, cleaned) text.
	Content string

	// FileName is the base name of the source file, empty for web sources.
	FileName string

	// URL is the address of a web source, empty for files.
	URL string

	// Path is the full path of a file source.
	Path string

	// Metadata holds extractor-specific details (format, page count).
	Metadata map[string]string
}

// Origin returns the record's attribution: the file name if present,
// else the URL, else UnknownSource.
func (r SourceRecord) Origin() string {
	if r.FileName != "" {
		return r.FileName
	}
	if r.URL != "" {
		return r.URL
	}
	return UnknownSource
}

// WithContent returns a copy of the record carrying different content.
func (r SourceRecord) WithContent(content string) SourceRecord {
	r.Content = content
	if r.Metadata != nil {
		meta := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		r.Metadata = meta
	}
	return r
}

// Item returns the identifier used in outcomes: the path for files, the URL for web sources.
func (r SourceRecord) Item() string {
	if r.Path != "" {
		return r.Path
	}
	if r.URL != "" {
		return r.URL
	}
	return r.Origin()
}
