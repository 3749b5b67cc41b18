// Package ingest turns the legal PDFs into embedded chunks in the vector
// index.
package ingest

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/dslipak/pdf"
)

var (
	spaceRun = regexp.MustCompile(`[ \t\f\v]+`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

// ExtractText returns the plain text of a PDF with whitespace normalised.
func ExtractText(path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", path, err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", path, err)
	}
	return NormalizeWhitespace(string(raw)), nil
}

// NormalizeWhitespace collapses runs of spaces, trims every line and keeps
// at most one blank line between paragraphs.
func NormalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRun.ReplaceAllString(s, "\n\n"))
}
