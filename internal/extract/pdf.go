// Package extract turns uploaded documents into plain text for the
// analysis pipeline.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadableDocument is returned when a document cannot be parsed or
// yields no text. The lifecycle manager records it as a failed job.
var ErrUnreadableDocument = errors.New("document unreadable")

// Extractor produces plain text from a stored document.
type Extractor interface {
	Extract(path string) (string, error)
}

// PDFExtractor implements Extractor for PDF files.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	text := Normalize(buf.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text content", ErrUnreadableDocument)
	}
	return text, nil
}

// Normalize collapses runs of blank lines and trims surrounding
// whitespace so the analyst prompt is not dominated by layout artifacts.
func Normalize(s string) string {
	for strings.Contains(s, "\n\n") {
		s = strings.ReplaceAll(s, "\n\n", "\n")
	}
	return strings.TrimSpace(s)
}

var _ Extractor = (*PDFExtractor)(nil)
