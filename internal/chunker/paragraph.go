package chunker

import "unicode"

// paragraph is a trimmed paragraph with its rune offset in the source text.
type paragraph struct {
	text  string
	start int
}

// splitParagraphs splits text on blank-line boundaries: any whitespace run
// containing at least two newlines separates paragraphs.
func splitParagraphs(text string) []paragraph {
	runes := []rune(text)

	var paras []paragraph
	i := 0
	for i < len(runes) {
		// skip whitespace before the paragraph
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		if i >= len(runes) {
			break
		}

		start := i
		for i < len(runes) {
			if !unicode.IsSpace(runes[i]) {
				i++
				continue
			}
			// measure the whitespace run; two or more newlines end the paragraph
			j := i
			newlines := 0
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				if runes[j] == '\n' {
					newlines++
				}
				j++
			}
			if newlines >= 2 {
				break
			}
			i = j
		}

		paras = append(paras, paragraph{
			text:  string(runes[start:trailingTrim(runes, start, i)]),
			start: start,
		})
	}
	return paras
}

// trailingTrim returns the exclusive end index of runes[start:limit] with
// trailing whitespace removed.
func trailingTrim(runes []rune, start, limit int) int {
	if limit > len(runes) {
		limit = len(runes)
	}
	for limit > start && unicode.IsSpace(runes[limit-1]) {
		limit--
	}
	return limit
}

// chunkByParagraph splits on blank lines. With combineShort enabled,
// consecutive paragraphs accumulate into one chunk while the accumulator
// stays under minParagraphLen; a paragraph that would push it over flushes
// the accumulator and starts a new one.
func chunkByParagraph(text string, s settings) []Chunk {
	paras := splitParagraphs(text)

	var chunks []Chunk
	current := ""
	currentStart := 0
	index := 0

	flush := func() {
		if current == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Content:   current,
			Index:     index,
			StartChar: currentStart,
			EndChar:   currentStart + runeLen(current),
			Metadata:  map[string]any{"method": string(MethodParagraph)},
		})
		index++
	}

	for _, p := range paras {
		if s.combineShort && runeLen(current)+runeLen(p.text) < s.minParagraphLen {
			if current != "" {
				current += "\n\n" + p.text
			} else {
				current = p.text
				currentStart = p.start
			}
			continue
		}
		flush()
		current = p.text
		currentStart = p.start
	}
	flush()

	return chunks
}
