// Package chunker splits plain text into ordered, overlapping chunks for
// embedding. Five methods with distinct boundary policies are available;
// callers pick one per collection and may override its defaults.
//
// Character offsets on chunks are rune positions in the input text. They
// are exact for the fixed-size, sentence, paragraph and semantic methods;
// the recursive method accumulates positions across separator splits and
// its offsets are best-effort approximations.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig indicates a chunking configuration that cannot produce
// a terminating, well-formed chunk sequence.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// Method identifies a chunking algorithm.
type Method string

const (
	MethodFixedSize Method = "fixed_size"
	MethodSentence  Method = "sentence"
	MethodParagraph Method = "paragraph"
	MethodSemantic  Method = "semantic"
	MethodRecursive Method = "recursive"
)

// DefaultMethod is used when a collection names no method.
const DefaultMethod = MethodRecursive

// ParseMethod maps a string onto a known Method. The second return value
// reports whether the name was recognized.
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case MethodFixedSize, MethodSentence, MethodParagraph, MethodSemantic, MethodRecursive:
		return Method(s), true
	}
	return DefaultMethod, false
}

// Chunk is one unit of chunked text.
type Chunk struct {
	Content   string         `json:"content"`
	Index     int            `json:"index"`
	StartChar int            `json:"start_char"`
	EndChar   int            `json:"end_char"`
	Metadata  map[string]any `json:"metadata"`
}

// Config carries per-method overrides. Zero/nil fields fall back to the
// method's defaults; pointer fields exist where an explicit zero or false
// is a meaningful override.
type Config struct {
	// fixed_size and recursive
	ChunkSize    int  `json:"chunk_size,omitempty"`
	ChunkOverlap *int `json:"chunk_overlap,omitempty"`

	// sentence
	SentencesPerChunk int  `json:"sentences_per_chunk,omitempty"`
	OverlapSentences  *int `json:"overlap_sentences,omitempty"`

	// paragraph
	MinParagraphLength     int   `json:"min_paragraph_length,omitempty"`
	CombineShortParagraphs *bool `json:"combine_short_paragraphs,omitempty"`

	// semantic
	MaxChunkSize int `json:"max_chunk_size,omitempty"`
	MinChunkSize int `json:"min_chunk_size,omitempty"`

	// recursive
	Separators []string `json:"separators,omitempty"`
}

// settings is a Config with all defaults resolved.
type settings struct {
	chunkSize         int
	chunkOverlap      int
	sentencesPerChunk int
	overlapSentences  int
	minParagraphLen   int
	combineShort      bool
	maxChunkSize      int
	minChunkSize      int
	separators        []string
}

func defaultSeparators() []string {
	return []string{"\n\n", "\n", ". ", " ", ""}
}

func resolve(cfg *Config) settings {
	s := settings{
		chunkSize:         512,
		chunkOverlap:      50,
		sentencesPerChunk: 5,
		overlapSentences:  1,
		minParagraphLen:   100,
		combineShort:      true,
		maxChunkSize:      1000,
		minChunkSize:      100,
		separators:        defaultSeparators(),
	}
	if cfg == nil {
		return s
	}
	if cfg.ChunkSize > 0 {
		s.chunkSize = cfg.ChunkSize
	}
	if cfg.ChunkOverlap != nil {
		s.chunkOverlap = *cfg.ChunkOverlap
	}
	if cfg.SentencesPerChunk > 0 {
		s.sentencesPerChunk = cfg.SentencesPerChunk
	}
	if cfg.OverlapSentences != nil {
		s.overlapSentences = *cfg.OverlapSentences
	}
	if cfg.MinParagraphLength > 0 {
		s.minParagraphLen = cfg.MinParagraphLength
	}
	if cfg.CombineShortParagraphs != nil {
		s.combineShort = *cfg.CombineShortParagraphs
	}
	if cfg.MaxChunkSize > 0 {
		s.maxChunkSize = cfg.MaxChunkSize
	}
	if cfg.MinChunkSize > 0 {
		s.minChunkSize = cfg.MinChunkSize
	}
	if len(cfg.Separators) > 0 {
		s.separators = cfg.Separators
	}
	return s
}

func (s settings) validate(method Method) error {
	switch method {
	case MethodFixedSize, MethodRecursive:
		if s.chunkOverlap < 0 {
			return fmt.Errorf("%w: chunk_overlap %d is negative", ErrInvalidConfig, s.chunkOverlap)
		}
		if s.chunkOverlap >= s.chunkSize {
			return fmt.Errorf("%w: chunk_overlap %d must be smaller than chunk_size %d",
				ErrInvalidConfig, s.chunkOverlap, s.chunkSize)
		}
	case MethodSentence:
		if s.overlapSentences < 0 {
			return fmt.Errorf("%w: overlap_sentences %d is negative", ErrInvalidConfig, s.overlapSentences)
		}
		if s.overlapSentences >= s.sentencesPerChunk {
			return fmt.Errorf("%w: overlap_sentences %d must be smaller than sentences_per_chunk %d",
				ErrInvalidConfig, s.overlapSentences, s.sentencesPerChunk)
		}
	case MethodSemantic:
		if s.minChunkSize > s.maxChunkSize {
			return fmt.Errorf("%w: min_chunk_size %d exceeds max_chunk_size %d",
				ErrInvalidConfig, s.minChunkSize, s.maxChunkSize)
		}
	}
	return nil
}

// Split chunks text with the given method and configuration. Empty or
// whitespace-only input yields an empty sequence. An unrecognized method
// falls back to the recursive method with its defaults rather than
// failing.
func Split(text string, method Method, cfg *Config) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if _, ok := ParseMethod(string(method)); !ok {
		method = DefaultMethod
		cfg = nil
	}

	s := resolve(cfg)
	if err := s.validate(method); err != nil {
		return nil, err
	}

	switch method {
	case MethodFixedSize:
		return chunkFixedSize(text, s), nil
	case MethodSentence:
		return chunkBySentence(text, s), nil
	case MethodParagraph:
		return chunkByParagraph(text, s), nil
	case MethodSemantic:
		return chunkSemantic(text, s), nil
	default:
		return chunkRecursive(text, s), nil
	}
}

// MethodInfo describes one chunking method for API catalogs.
type MethodInfo struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	DefaultConfig map[string]any `json:"default_config"`
}

// Methods lists the available chunking methods, recommended first.
func Methods() []MethodInfo {
	return []MethodInfo{
		{
			ID:          string(MethodRecursive),
			Name:        "Recursive (Recommended)",
			Description: "Splits text hierarchically using multiple separators (paragraphs, then sentences, then words). Best for general use.",
			DefaultConfig: map[string]any{
				"chunk_size":    512,
				"chunk_overlap": 50,
				"separators":    defaultSeparators(),
			},
		},
		{
			ID:          string(MethodSemantic),
			Name:        "Semantic",
			Description: "Splits at likely topic boundaries by detecting transition phrases. Good for articles and essays.",
			DefaultConfig: map[string]any{
				"max_chunk_size": 1000,
				"min_chunk_size": 100,
			},
		},
		{
			ID:          string(MethodSentence),
			Name:        "Sentence-based",
			Description: "Groups sentences together. Ideal for documents where sentence boundaries are meaningful.",
			DefaultConfig: map[string]any{
				"sentences_per_chunk": 5,
				"overlap_sentences":   1,
			},
		},
		{
			ID:          string(MethodParagraph),
			Name:        "Paragraph-based",
			Description: "Splits by paragraphs, combining short ones. Best for well-structured documents.",
			DefaultConfig: map[string]any{
				"min_paragraph_length":     100,
				"combine_short_paragraphs": true,
			},
		},
		{
			ID:          string(MethodFixedSize),
			Name:        "Fixed Size",
			Description: "Splits into fixed character windows with overlap. Simple but less context-aware.",
			DefaultConfig: map[string]any{
				"chunk_size":    512,
				"chunk_overlap": 50,
			},
		},
	}
}
