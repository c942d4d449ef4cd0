// Package parser extracts plain text and metadata from uploaded document
// files. Supported formats: txt, pdf, docx.
package parser

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/System-AI-Assistants/FocusML/internal/log"
)

var (
	// ErrUnsupportedFormat indicates a file extension no parser handles.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileNotFound indicates the file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrParseFailure indicates the file exists but could not be parsed.
	ErrParseFailure = errors.New("failed to parse document")
)

// ParsedDocument holds the extracted text of one file and parse-time
// metadata. It is consumed immediately by the chunker and never persisted
// as-is; its metadata travels with the collection record.
type ParsedDocument struct {
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	PageCount int            `json:"page_count,omitempty"` // 0 when the format has no page notion
	WordCount int            `json:"word_count"`
	CharCount int            `json:"char_count"`
}

// SupportedExtensions lists the document formats the parser handles, in
// lowercase without the leading dot.
var SupportedExtensions = []string{"txt", "pdf", "docx"}

// Parser extracts text from document files.
type Parser struct {
	logger log.Logger
}

// New creates a document parser.
func New(logger log.Logger) *Parser {
	return &Parser{logger: logger}
}

// IsSupported reports whether the filename's extension has a parser.
func IsSupported(filename string) bool {
	ext := FileExtension(filename)
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// FileExtension returns the lowercase extension without the dot, or ""
// when the filename has none.
func FileExtension(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// Parse extracts text and metadata from the file at path, dispatching on
// the file extension.
func (p *Parser) Parse(path string) (*ParsedDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	ext := FileExtension(path)
	switch ext {
	case "txt":
		return p.parseTXT(path, info.Size())
	case "pdf":
		return p.parsePDF(path, info.Size())
	case "docx":
		return p.parseDOCX(path, info.Size())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
