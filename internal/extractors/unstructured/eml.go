package unstructured

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

var emlExts = map[string]bool{".eml": true}

// partitionEmail returns the address headers and subject of an RFC 822
// message as one element each, followed by the body paragraphs. Plain text
// parts win over HTML parts.
func partitionEmail(data []byte) ([]string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse email: %w", err)
	}

	var out []string
	for _, key := range []string{"From", "To", "Date", "Subject"} {
		if v := decodeHeader(msg.Header.Get(key)); v != "" {
			out = append(out, key+": "+v)
		}
	}

	body, err := emailBody(msg.Header.Get("Content-Type"), msg.Body)
	if err != nil {
		return nil, err
	}
	return append(out, body...), nil
}

func decodeHeader(v string) string {
	if v == "" {
		return ""
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

func emailBody(contentType string, r io.Reader) ([]string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return multipartBody(r, params["boundary"])
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read email body: %w", err)
	}
	if mediaType == "text/html" {
		return partitionHTML(bytes.NewReader(body))
	}
	return paragraphs(string(body)), nil
}

func multipartBody(r io.Reader, boundary string) ([]string, error) {
	if boundary == "" {
		return nil, nil
	}

	var text, html []string
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}
		content, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			continue
		}

		switch {
		case mediaType == "text/plain":
			text = append(text, paragraphs(string(content))...)
		case mediaType == "text/html":
			if elems, err := partitionHTML(bytes.NewReader(content)); err == nil {
				html = append(html, elems...)
			}
		case strings.HasPrefix(mediaType, "multipart/"):
			if nested, err := multipartBody(bytes.NewReader(content), params["boundary"]); err == nil {
				text = append(text, nested...)
			}
		}
	}

	if len(text) > 0 {
		return text, nil
	}
	return html, nil
}
