// Package ingest turns uploaded files into text (documents) or validated bytes (images).
package ingest

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"multimodal-rag/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// Upload is a file supplied by the user.
type Upload struct {
	Name string
	Data []byte
}

// ReadFile loads an upload from disk.
func ReadFile(path string) (*Upload, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Upload{Name: filepath.Base(path), Data: data}, nil
}

// IsPDF reports whether the upload should be treated as a PDF, by extension or magic bytes.
func IsPDF(name string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf") || bytes.HasPrefix(data, pdfMagic)
}

// LoadDocument extracts the text of a plain-text or PDF document.
func LoadDocument(u *Upload) (string, error) {
	if IsPDF(u.Name, u.Data) {
		return extractPDF(u.Data)
	}
	if !utf8.Valid(u.Data) {
		return "", fmt.Errorf("%s: not UTF-8 text: %w", u.Name, domain.ErrUnsupportedDocument)
	}
	return string(u.Data), nil
}

// Image is a validated image upload.
type Image struct {
	Name string
	MIME string
	Data []byte
}

// LoadImage accepts PNG and JPEG uploads, identified by content rather than extension.
func LoadImage(u *Upload) (*Image, error) {
	mime := http.DetectContentType(u.Data)
	switch mime {
	case "image/png", "image/jpeg":
		return &Image{Name: u.Name, MIME: mime, Data: u.Data}, nil
	default:
		return nil, fmt.Errorf("%s: content type %s: %w", u.Name, mime, domain.ErrUnsupportedImage)
	}
}

// extractPDF concatenates the text of every page that has any, separated by newlines.
// Pages without extractable text (scanned images) contribute nothing.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		// the pdf reader panics on some malformed xref tables
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v: %w", r, domain.ErrUnsupportedDocument)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %v: %w", err, domain.ErrUnsupportedDocument)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %v: %w", i, err, domain.ErrUnsupportedDocument)
		}
		pages = append(pages, content)
	}
	return JoinPages(pages), nil
}

// JoinPages joins page texts with newlines, skipping pages whose text is empty.
func JoinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "\n")
}
