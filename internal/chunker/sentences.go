package chunker

import "unicode"

// sentence is a tokenized sentence with its rune offset in the source text.
type sentence struct {
	text  string
	start int
}

// splitSentences tokenizes text into sentences. A sentence ends at '.',
// '!' or '?' followed by whitespace; the whitespace run between sentences
// belongs to neither. Offsets are rune positions in the input.
//
// This is a deliberate approximation: abbreviations like "Dr." followed by
// a space terminate a sentence. Downstream grouping tolerates that.
func splitSentences(text string) []sentence {
	runes := []rune(text)

	var sentences []sentence
	start := -1
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if start == -1 {
			if unicode.IsSpace(r) {
				continue
			}
			start = i
		}
		if isTerminator(r) && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			sentences = append(sentences, sentence{
				text:  string(runes[start : i+1]),
				start: start,
			})
			start = -1
		}
	}
	if start != -1 {
		sentences = append(sentences, sentence{
			text:  trimTrailingSpace(string(runes[start:])),
			start: start,
		})
	}
	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func trimTrailingSpace(s string) string {
	runes := []rune(s)
	end := len(runes)
	for end > 0 && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return string(runes[:end])
}
