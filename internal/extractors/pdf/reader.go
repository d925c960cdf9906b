package pdf

import (
	"fmt"
	"os"

	"github.com/dslipak/pdf"
)

// document is an opened PDF.
type document interface {
	NumPage() int
	PageText(page int) (string, error)
	Close() error
}

// opener opens the PDF at path.
type opener func(path string) (document, error)

// pdfDocument adapts a dslipak reader and owns its file.
type pdfDocument struct {
	file   *os.File
	reader *pdf.Reader
}

func (d *pdfDocument) NumPage() int {
	return d.reader.NumPage()
}

func (d *pdfDocument) PageText(n int) (string, error) {
	page := d.reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func (d *pdfDocument) Close() error {
	return d.file.Close()
}

func openWith(path string, newReader func(f *os.File, size int64) (*pdf.Reader, error)) (document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	opened := false
	defer func() {
		// close on error or parser panic
		if !opened {
			f.Close()
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	r, err := newReader(f, info.Size())
	if err != nil {
		return nil, err
	}
	opened = true
	return &pdfDocument{file: f, reader: r}, nil
}

// openPlain is the direct reader.
func openPlain(path string) (document, error) {
	return openWith(path, func(f *os.File, size int64) (*pdf.Reader, error) {
		return pdf.NewReader(f, size)
	})
}

// openEncrypted returns a reader that decrypts with the empty password,
// then each of passwords in turn.
func openEncrypted(passwords []string) opener {
	return func(path string) (document, error) {
		return openWith(path, func(f *os.File, size int64) (*pdf.Reader, error) {
			next := 0
			return pdf.NewReaderEncrypted(f, size, func() string {
				if next >= len(passwords) {
					return ""
				}
				pw := passwords[next]
				next++
				return pw
			})
		})
	}
}
