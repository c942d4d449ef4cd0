package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// parsePDF extracts text page by page; a page that fails to extract is
// skipped so one broken page does not lose the document. Standard Info
// dictionary fields are copied into the metadata when present.
func (p *Parser) parsePDF(path string, size int64) (doc *ParsedDocument, err error) {
	p.logger.Info("parsing pdf file", "path", path)

	// The reader panics on some malformed files; turn that into an error.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: pdf reader panic: %v", ErrParseFailure, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	defer f.Close()

	pageCount := reader.NumPage()

	var parts []string
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := extractPageText(page)
		if err != nil {
			p.logger.Warn("failed to extract text from pdf page", "path", path, "page", i, "error", err)
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	metadata := map[string]any{
		"format":    "pdf",
		"file_size": size,
	}
	collectInfoMetadata(reader, metadata)

	content := strings.Join(parts, "\n\n")
	return &ParsedDocument{
		Content:   content,
		Metadata:  metadata,
		PageCount: pageCount,
		WordCount: wordCount(content),
		CharCount: utf8.RuneCountInString(content),
	}, nil
}

// extractPageText isolates per-page panics so the page loop can continue.
func extractPageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("page extraction panic: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}

// collectInfoMetadata copies the standard document information fields out
// of the trailer's Info dictionary.
func collectInfoMetadata(reader *pdf.Reader, metadata map[string]any) {
	defer func() {
		recover() // a corrupt Info dictionary is not fatal
	}()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return
	}
	for _, key := range []string{"Title", "Author", "Subject", "Creator", "Producer"} {
		if v := info.Key(key); !v.IsNull() {
			if s := strings.TrimSpace(v.Text()); s != "" {
				metadata[key] = s
			}
		}
	}
}
