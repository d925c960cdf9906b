// Package extractors turns files into plain text.
//
// The Registry picks an extractor by domain.Format, which is derived from the
// file extension. Each format has its own subpackage:
//
//   - pdf: page text with OCR for blank pages and a decrypting retry
//   - generic: DOCX and plain text
//   - unstructured: HTML, markdown, images and any other UTF-8 text
//   - ocr: tesseract and pdftoppm through a driven.CommandRunner
//
// Spreadsheets are deliberately excluded and return domain.ErrExcluded.
package extractors
