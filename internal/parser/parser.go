package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docxref/internal/labels"
)

// Parser scans a source document for label declarations.
type Parser interface {
	Parse(r io.Reader, filename string) (*labels.Set, error)
}

// SupportedExtensions lists source extensions this service can scan.
var SupportedExtensions = map[string]bool{
	".tex":      true,
	".ltx":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".tex", ".ltx", ".txt":
		return &LaTeXParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported source extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// collapse squeezes runs of whitespace into single spaces and trims.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func lineAt(src string, offset int) int {
	return strings.Count(src[:offset], "\n") + 1
}
