package parser

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// parseTXT reads a plain text file. Valid UTF-8 is taken as-is (a BOM is
// stripped and reported as utf-8-sig); anything else is decoded as
// Latin-1, which accepts every byte sequence and so always terminates the
// ladder.
func (p *Parser) parseTXT(path string, size int64) (*ParsedDocument, error) {
	p.logger.Info("parsing txt file", "path", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var content, encoding string
	switch {
	case bytes.HasPrefix(raw, utf8BOM) && utf8.Valid(raw[len(utf8BOM):]):
		content = string(raw[len(utf8BOM):])
		encoding = "utf-8-sig"
	case utf8.Valid(raw):
		content = string(raw)
		encoding = "utf-8"
	default:
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
		}
		content = string(decoded)
		encoding = "latin-1"
	}

	return &ParsedDocument{
		Content: content,
		Metadata: map[string]any{
			"format":    "txt",
			"encoding":  encoding,
			"file_size": size,
		},
		WordCount: wordCount(content),
		CharCount: utf8.RuneCountInString(content),
	}, nil
}
