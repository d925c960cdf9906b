package unstructured

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
)

type stubOCR struct {
	text  string
	err   error
	paths []string
}

func (s *stubOCR) Image(_ context.Context, path string) (string, error) {
	s.paths = append(s.paths, path)
	return s.text, s.err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestFormat(t *testing.T) {
	assert.Equal(t, domain.FormatUnstructured, New().Format())
}

func TestExtract_HTML(t *testing.T) {
	page := `<!DOCTYPE html>
<html><head><title>Ignored</title><style>p{color:red}</style></head>
<body>
  <h1>Heading</h1>
  <p>First <b>bold</b> paragraph.</p>
  <script>var x = 1;</script>
  <ul><li>one</li><li>two</li></ul>
  <div>Entity &amp; text</div>
</body></html>`
	path := writeFile(t, "page.html", []byte(page))

	text, err := New().Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "Heading\nFirst bold paragraph.\none\ntwo\nEntity & text", text)
}

func TestExtract_HTMLSniffed(t *testing.T) {
	path := writeFile(t, "saved_page", []byte("<html><body><p>sniffed</p></body></html>"))

	text, err := New().Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "sniffed", text)
}

func TestExtract_Markdown(t *testing.T) {
	md := "# Guide\n\nUse the [docs](https://example.com) and `ragpipe`.\n\n- first\n- second\n\n---\n\n> quoted *text*"
	path := writeFile(t, "guide.md", []byte(md))

	text, err := New().Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "Guide\nUse the docs and ragpipe.\nfirst second\nquoted text", text)
}

func TestExtract_PlainText(t *testing.T) {
	path := writeFile(t, "notes.log", []byte("line one\nline two\n\n\n  second   paragraph \n"))

	text, err := New().Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "line one line two\nsecond paragraph", text)
}

func TestExtract_ImageWithOCR(t *testing.T) {
	ocr := &stubOCR{text: "receipt total\n\nthank you"}
	path := writeFile(t, "scan.PNG", []byte{0x89, 'P', 'N', 'G'})

	text, err := New(WithOCR(ocr)).Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "receipt total\nthank you", text)
	assert.Equal(t, []string{path}, ocr.paths)
}

func TestExtract_ImageWithoutOCR(t *testing.T) {
	path := writeFile(t, "scan.jpg", []byte{0xff, 0xd8})

	_, err := New().Extract(context.Background(), path)

	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestExtract_ImageOCRError(t *testing.T) {
	path := writeFile(t, "scan.png", []byte{0x89})

	_, err := New(WithOCR(&stubOCR{err: errors.New("tesseract missing")})).Extract(context.Background(), path)

	var extractErr *domain.ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Contains(t, err.Error(), "tesseract missing")
}

func TestExtract_Binary(t *testing.T) {
	path := writeFile(t, "blob.bin", []byte{0x00, 0x01, 0xfe, 0xff})

	_, err := New().Extract(context.Background(), path)

	var extractErr *domain.ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, domain.FormatUnstructured, extractErr.Format)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := New().Extract(context.Background(), filepath.Join(t.TempDir(), "gone.md"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParagraphs(t *testing.T) {
	assert.Nil(t, paragraphs(""))
	assert.Equal(t, []string{"a b", "c"}, paragraphs("a\nb\n\nc"))
	assert.Equal(t, []string{"x"}, paragraphs("\n\n  x  \n\n"))
}

func TestPartitionHTML_NestedBlocks(t *testing.T) {
	elements, err := partitionHTML(strings.NewReader(
		"<div>outer <p>inner</p> tail</div><table><tr><td>cell</td></tr></table>"))

	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "tail", "cell"}, elements)
}

func TestExtract_Email(t *testing.T) {
	msg := "From: Ana <ana@example.com>\r\n" +
		"To: support@example.com\r\n" +
		"Subject: =?UTF-8?Q?Caf=C3=A9_hours?=\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
		"\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"When do you open?\r\n" +
		"\r\n" +
		"Thanks\r\n" +
		"--b1\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>When do you open?</p>\r\n" +
		"--b1--\r\n"
	path := writeFile(t, "question.eml", []byte(msg))

	elements, err := New().Partition(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"From: Ana <ana@example.com>",
		"To: support@example.com",
		"Subject: Café hours",
		"When do you open?",
		"Thanks",
	}, elements)
}

func TestExtract_EmailHTMLOnly(t *testing.T) {
	msg := "Subject: Notice\r\nContent-Type: text/html\r\n\r\n<html><body><p>Closed <b>Monday</b>.</p></body></html>\r\n"
	path := writeFile(t, "notice.eml", []byte(msg))

	text, err := New().Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "Subject: Notice\nClosed Monday.", text)
}
