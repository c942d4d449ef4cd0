package chunker

import "regexp"

// Discourse markers that tend to open a new topic. Matching is a prefix
// check on the sentence, case-insensitive for the phrase sets. This is a
// heuristic, not true semantic segmentation.
var boundaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(However|Nevertheless|Furthermore|Moreover|In conclusion|Therefore|Thus|Finally|Consequently|As a result)`),
	regexp.MustCompile(`(?i)^(First|Second|Third|Next|Then|Lastly|Additionally)`),
	regexp.MustCompile(`(?i)^(On the other hand|In contrast|Alternatively|Meanwhile)`),
	regexp.MustCompile(`(?i)^(In summary|To summarize|Overall|In short)`),
	regexp.MustCompile(`^\d+\.`), // numbered lists
	regexp.MustCompile(`^[-•*]`), // bullet points
}

func isSemanticBoundary(sentenceText string) bool {
	for _, p := range boundaryPatterns {
		if p.MatchString(sentenceText) {
			return true
		}
	}
	return false
}

// chunkSemantic accumulates sentences, starting a new chunk when a
// sentence opens with a discourse marker and the accumulator already meets
// minChunkSize, or when appending the sentence would exceed maxChunkSize.
func chunkSemantic(text string, s settings) []Chunk {
	sentences := splitSentences(text)

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
			Metadata:  map[string]any{"method": string(MethodSemantic)},
		})
		index++
	}

	for _, sent := range sentences {
		if sent.text == "" {
			continue
		}

		boundary := isSemanticBoundary(sent.text)
		split := (boundary && runeLen(current) >= s.minChunkSize) ||
			runeLen(current)+runeLen(sent.text) > s.maxChunkSize

		if split && current != "" {
			flush()
			current = sent.text
			currentStart = sent.start
			continue
		}
		if current != "" {
			current += " " + sent.text
		} else {
			current = sent.text
			currentStart = sent.start
		}
	}
	flush()

	return chunks
}
