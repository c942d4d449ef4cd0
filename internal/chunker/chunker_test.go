package chunker

import (
	"errors"
	"strings"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestSplitEmptyInput(t *testing.T) {
	for _, method := range []Method{MethodFixedSize, MethodSentence, MethodParagraph, MethodSemantic, MethodRecursive} {
		for _, text := range []string{"", "   \n\t  "} {
			chunks, err := Split(text, method, nil)
			if err != nil {
				t.Fatalf("Split(%q, %s) error = %v", text, method, err)
			}
			if len(chunks) != 0 {
				t.Errorf("Split(%q, %s) = %d chunks, want 0", text, method, len(chunks))
			}
		}
	}
}

func TestSplitIndicesContiguous(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. It was a bright cold day in April.\n\n" +
		"However, the clocks were striking thirteen. Winston Smith slipped quickly through the doors.\n\n" +
		"The hallway smelt of boiled cabbage and old rag mats. It was no use trying the lift."

	for _, method := range []Method{MethodFixedSize, MethodSentence, MethodParagraph, MethodSemantic, MethodRecursive} {
		chunks, err := Split(text, method, &Config{ChunkSize: 60, SentencesPerChunk: 2, MaxChunkSize: 120, MinChunkSize: 40, ChunkOverlap: intPtr(10)})
		if err != nil {
			t.Fatalf("Split(%s) error = %v", method, err)
		}
		if len(chunks) == 0 {
			t.Fatalf("Split(%s) returned no chunks", method)
		}
		for i, c := range chunks {
			if c.Index != i {
				t.Errorf("%s: chunk %d has index %d", method, i, c.Index)
			}
			if c.Content == "" {
				t.Errorf("%s: chunk %d is empty", method, i)
			}
		}
	}
}

func TestFixedSizeNoSpaces(t *testing.T) {
	text := strings.Repeat("a", 100)
	chunks, err := Split(text, MethodFixedSize, &Config{ChunkSize: 20, ChunkOverlap: intPtr(5)})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	wantStarts := []int{0, 15, 30, 45, 60, 75, 90}
	if len(chunks) != len(wantStarts) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(wantStarts))
	}
	for i, c := range chunks {
		if c.StartChar != wantStarts[i] {
			t.Errorf("chunk %d StartChar = %d, want %d", i, c.StartChar, wantStarts[i])
		}
		if got := len(c.Content); got > 20 {
			t.Errorf("chunk %d length = %d, want <= 20", i, got)
		}
	}
	// consecutive windows share exactly the configured overlap in offsets
	for i := 1; i < len(chunks); i++ {
		if overlap := chunks[i-1].EndChar - chunks[i].StartChar; overlap != 5 {
			t.Errorf("chunks %d/%d overlap = %d, want 5", i-1, i, overlap)
		}
	}
	if last := chunks[len(chunks)-1]; last.EndChar != 100 {
		t.Errorf("last chunk EndChar = %d, want 100", last.EndChar)
	}
}

func TestFixedSizeWordBoundary(t *testing.T) {
	text := "aaaa bbbb cccc dddd eeee"
	chunks, err := Split(text, MethodFixedSize, &Config{ChunkSize: 10, ChunkOverlap: intPtr(0)})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	want := []string{"aaaa bbbb", "cccc dddd", "eeee"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %v, want %d", len(chunks), chunks, len(want))
	}
	for i, c := range chunks {
		if c.Content != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, c.Content, want[i])
		}
	}
}

func TestSentenceGrouping(t *testing.T) {
	text := "One is here. Two is here. Three is here. Four is here."
	chunks, err := Split(text, MethodSentence, &Config{SentencesPerChunk: 2, OverlapSentences: intPtr(1)})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	want := []string{
		"One is here. Two is here.",
		"Two is here. Three is here.",
		"Three is here. Four is here.",
		"Four is here.",
	}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, c := range chunks {
		if c.Content != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, c.Content, want[i])
		}
	}
	// start offsets point into the original text
	if chunks[1].StartChar != strings.Index(text, "Two") {
		t.Errorf("chunk 1 StartChar = %d, want %d", chunks[1].StartChar, strings.Index(text, "Two"))
	}
}

func TestParagraphCombineShort(t *testing.T) {
	p1 := strings.Repeat("a", 30)
	p2 := strings.Repeat("b", 40)
	p3 := strings.Repeat("c", 200)
	text := p1 + "\n\n" + p2 + "\n\n" + p3

	chunks, err := Split(text, MethodParagraph, nil)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if want := p1 + "\n\n" + p2; chunks[0].Content != want {
		t.Errorf("chunk 0 = %q, want short paragraphs combined", chunks[0].Content)
	}
	if chunks[1].Content != p3 {
		t.Errorf("chunk 1 = %q, want the long paragraph alone", chunks[1].Content)
	}
	if chunks[0].StartChar != 0 {
		t.Errorf("chunk 0 StartChar = %d, want 0", chunks[0].StartChar)
	}
	if want := len(p1) + 2 + len(p2) + 2; chunks[1].StartChar != want {
		t.Errorf("chunk 1 StartChar = %d, want %d", chunks[1].StartChar, want)
	}
}

func TestParagraphNoCombine(t *testing.T) {
	combine := false
	text := "short one\n\nshort two\n\nshort three"
	chunks, err := Split(text, MethodParagraph, &Config{CombineShortParagraphs: &combine})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, want := range []string{"short one", "short two", "short three"} {
		if chunks[i].Content != want {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i].Content, want)
		}
	}
}

func TestSemanticBoundarySplit(t *testing.T) {
	text := "Cats are small. They sleep most of the day. However dogs are loud. They bark at strangers."
	chunks, err := Split(text, MethodSemantic, &Config{MinChunkSize: 10, MaxChunkSize: 1000})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks %v, want 2", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[1].Content, "However") {
		t.Errorf("chunk 1 = %q, want it to start at the discourse marker", chunks[1].Content)
	}
	if chunks[1].StartChar != strings.Index(text, "However") {
		t.Errorf("chunk 1 StartChar = %d, want %d", chunks[1].StartChar, strings.Index(text, "However"))
	}
}

func TestSemanticMaxSizeSplit(t *testing.T) {
	text := "First sentence goes here padding padding. Second sentence goes here padding padding. Third sentence goes here padding padding."
	chunks, err := Split(text, MethodSemantic, &Config{MinChunkSize: 1, MaxChunkSize: 60})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want the max size to force a split", len(chunks))
	}
	for i, c := range chunks {
		if got := len(c.Content); got > 90 {
			t.Errorf("chunk %d length = %d, unexpectedly large", i, got)
		}
	}
}

func TestRecursiveMergesUpToSize(t *testing.T) {
	text := "alpha beta\n\ngamma delta\n\nepsilon zeta"
	chunks, err := Split(text, MethodRecursive, &Config{ChunkSize: 30, ChunkOverlap: intPtr(0)})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks %v, want 2", len(chunks), chunks)
	}
	if want := "alpha beta gamma delta"; chunks[0].Content != want {
		t.Errorf("chunk 0 = %q, want %q", chunks[0].Content, want)
	}
	if want := "epsilon zeta"; chunks[1].Content != want {
		t.Errorf("chunk 1 = %q, want %q", chunks[1].Content, want)
	}
}

func TestRecursiveIdempotentRechunk(t *testing.T) {
	paras := []string{
		strings.Repeat("alpha ", 6) + "omega",   // 41 chars
		strings.Repeat("bravo ", 6) + "omega",   // 41 chars
		strings.Repeat("charlie ", 4) + "omega", // 37 chars
	}
	text := strings.Join(paras, "\n\n")
	cfg := &Config{ChunkSize: 50, ChunkOverlap: intPtr(0)}

	first, err := Split(text, MethodRecursive, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	var parts []string
	for _, c := range first {
		parts = append(parts, c.Content)
	}
	second, err := Split(strings.Join(parts, "\n\n"), MethodRecursive, cfg)
	if err != nil {
		t.Fatalf("re-chunk error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("re-chunking changed chunk count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Content != second[i].Content {
			t.Errorf("chunk %d changed on re-chunk: %q vs %q", i, first[i].Content, second[i].Content)
		}
	}
}

func TestRecursiveOverlapCarriesTrailingWords(t *testing.T) {
	text := "one two three four five\n\nsix seven eight nine ten"
	chunks, err := Split(text, MethodRecursive, &Config{ChunkSize: 25, ChunkOverlap: intPtr(10)})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks %v, want 2", len(chunks), chunks)
	}
	if want := "four five six seven eight nine ten"; chunks[1].Content != want {
		t.Errorf("chunk 1 = %q, want trailing words %q carried over", chunks[1].Content, want)
	}
}

func TestUnknownMethodFallsBackToRecursive(t *testing.T) {
	text := "some text\n\nmore text here\n\neven more"

	got, err := Split(text, Method("banana"), nil)
	if err != nil {
		t.Fatalf("Split(banana) error = %v", err)
	}
	want, err := Split(text, MethodRecursive, nil)
	if err != nil {
		t.Fatalf("Split(recursive) error = %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("fallback produced %d chunks, recursive produced %d", len(got), len(want))
	}
	for i := range got {
		if got[i].Content != want[i].Content {
			t.Errorf("chunk %d differs: %q vs %q", i, got[i].Content, want[i].Content)
		}
	}
}

func TestSplitInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		method Method
		cfg    *Config
	}{
		{"fixed overlap equals size", MethodFixedSize, &Config{ChunkSize: 20, ChunkOverlap: intPtr(20)}},
		{"fixed negative overlap", MethodFixedSize, &Config{ChunkSize: 20, ChunkOverlap: intPtr(-1)}},
		{"sentence overlap equals group", MethodSentence, &Config{SentencesPerChunk: 2, OverlapSentences: intPtr(2)}},
		{"semantic min above max", MethodSemantic, &Config{MinChunkSize: 500, MaxChunkSize: 100}},
		{"recursive overlap above size", MethodRecursive, &Config{ChunkSize: 10, ChunkOverlap: intPtr(50)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Split("some text", tt.method, tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Split() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSplitSentencesOffsets(t *testing.T) {
	text := "Hello world. Second one! Third?"
	sentences := splitSentences(text)

	wantTexts := []string{"Hello world.", "Second one!", "Third?"}
	wantStarts := []int{0, 13, 25}
	if len(sentences) != len(wantTexts) {
		t.Fatalf("got %d sentences, want %d", len(sentences), len(wantTexts))
	}
	for i, s := range sentences {
		if s.text != wantTexts[i] {
			t.Errorf("sentence %d = %q, want %q", i, s.text, wantTexts[i])
		}
		if s.start != wantStarts[i] {
			t.Errorf("sentence %d start = %d, want %d", i, s.start, wantStarts[i])
		}
	}
}

func TestSplitSentencesNoTerminator(t *testing.T) {
	sentences := splitSentences("no punctuation at all")
	if len(sentences) != 1 {
		t.Fatalf("got %d sentences, want 1", len(sentences))
	}
	if sentences[0].text != "no punctuation at all" {
		t.Errorf("sentence = %q", sentences[0].text)
	}
}

func TestMethodsCatalog(t *testing.T) {
	methods := Methods()
	if len(methods) != 5 {
		t.Fatalf("got %d methods, want 5", len(methods))
	}
	if methods[0].ID != string(MethodRecursive) {
		t.Errorf("first method = %s, want the recommended recursive method", methods[0].ID)
	}
	seen := map[string]bool{}
	for _, m := range methods {
		if m.Description == "" || m.Name == "" || len(m.DefaultConfig) == 0 {
			t.Errorf("method %s has incomplete catalog entry", m.ID)
		}
		if seen[m.ID] {
			t.Errorf("method %s listed twice", m.ID)
		}
		seen[m.ID] = true
	}
}
