package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// docx is a zip archive; the text lives in word/document.xml and the core
// properties in docProps/core.xml.

type docxDocument struct {
	Body docxBody `xml:"body"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
	Tables     []docxTable     `xml:"tbl"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

type docxCoreProperties struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
	Subject string `xml:"subject"`
}

// parseDOCX extracts paragraph text, then table text with cells joined by
// " | " per row. Word has no reliable page count, so PageCount stays 0.
func (p *Parser) parseDOCX(path string, size int64) (*ParsedDocument, error) {
	p.logger.Info("parsing docx file", "path", path)

	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %v", ErrParseFailure, err)
	}
	defer archive.Close()

	body, err := readDocxBody(&archive.Reader)
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, para := range body.Paragraphs {
		if text := strings.TrimSpace(para.text()); text != "" {
			parts = append(parts, text)
		}
	}
	for _, table := range body.Tables {
		if text := table.text(); text != "" {
			parts = append(parts, text)
		}
	}
	content := strings.Join(parts, "\n\n")

	metadata := map[string]any{
		"format":          "docx",
		"file_size":       size,
		"paragraph_count": len(body.Paragraphs),
		"table_count":     len(body.Tables),
	}
	if props := readDocxCoreProperties(&archive.Reader); props != nil {
		if props.Title != "" {
			metadata["Title"] = props.Title
		}
		if props.Creator != "" {
			metadata["Author"] = props.Creator
		}
		if props.Subject != "" {
			metadata["Subject"] = props.Subject
		}
	}

	return &ParsedDocument{
		Content:   content,
		Metadata:  metadata,
		WordCount: wordCount(content),
		CharCount: utf8.RuneCountInString(content),
	}, nil
}

func readDocxBody(reader *zip.Reader) (*docxBody, error) {
	raw, err := readZipFile(reader, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: word/document.xml missing", ErrParseFailure)
	}

	var doc docxDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid document.xml: %v", ErrParseFailure, err)
	}
	return &doc.Body, nil
}

func readDocxCoreProperties(reader *zip.Reader) *docxCoreProperties {
	raw, err := readZipFile(reader, "docProps/core.xml")
	if err != nil || raw == nil {
		return nil
	}
	var props docxCoreProperties
	if err := xml.Unmarshal(raw, &props); err != nil {
		return nil
	}
	props.Title = strings.TrimSpace(props.Title)
	props.Creator = strings.TrimSpace(props.Creator)
	props.Subject = strings.TrimSpace(props.Subject)
	return &props
}

// readZipFile returns the named file's contents, or nil when absent.
func readZipFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, nil
}

func (p docxParagraph) text() string {
	var b strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

// text renders a table as one line per row with cell text joined by " | ".
// Empty cells and empty rows are dropped.
func (t docxTable) text() string {
	var rows []string
	for _, row := range t.Rows {
		var cells []string
		for _, cell := range row.Cells {
			var paras []string
			for _, para := range cell.Paragraphs {
				if text := strings.TrimSpace(para.text()); text != "" {
					paras = append(paras, text)
				}
			}
			if text := strings.Join(paras, "\n"); text != "" {
				cells = append(cells, text)
			}
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	}
	return strings.Join(rows, "\n")
}
