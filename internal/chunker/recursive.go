package chunker

import "strings"

// chunkRecursive splits text with the separator list in priority order,
// recursing into the next separator for any segment still longer than
// chunkSize (the empty separator splits per character and terminates the
// recursion), then re-merges the leaf segments into chunks up to
// chunkSize with a whole-word trailing overlap carried into the next
// chunk. Offsets are accumulated across splits and are approximate.
func chunkRecursive(text string, s settings) []Chunk {
	splits := splitBySeparators(text, s.separators, s.chunkSize)

	var chunks []Chunk
	current := ""
	currentStart := 0
	index := 0
	charPos := 0

	flush := func() {
		chunks = append(chunks, Chunk{
			Content:   current,
			Index:     index,
			StartChar: currentStart,
			EndChar:   currentStart + runeLen(current),
			Metadata:  map[string]any{"method": string(MethodRecursive)},
		})
		index++
	}

	for _, split := range splits {
		split = strings.TrimSpace(split)
		if split == "" {
			continue
		}

		candidate := split
		if current != "" {
			candidate = current + " " + split
		}

		switch {
		case runeLen(candidate) <= s.chunkSize:
			if current == "" {
				currentStart = charPos
			}
			current = candidate
		case current != "":
			flush()
			if s.chunkOverlap > 0 {
				if tail := trailingWords(current, s.chunkOverlap); tail != "" {
					current = tail + " " + split
				} else {
					current = split
				}
			} else {
				current = split
			}
			currentStart = charPos
		default:
			current = split
			currentStart = charPos
		}

		charPos += runeLen(split) + 1
	}
	if current != "" {
		flush()
	}

	return chunks
}

// splitBySeparators splits text by the first separator and recurses into
// the remaining ones for oversized segments.
func splitBySeparators(text string, separators []string, chunkSize int) []string {
	if len(separators) == 0 {
		return []string{text}
	}

	sep := separators[0]
	rest := separators[1:]

	if sep == "" {
		// character-level base case
		runes := []rune(text)
		out := make([]string, len(runes))
		for i, r := range runes {
			out[i] = string(r)
		}
		return out
	}

	var result []string
	for _, part := range strings.Split(text, sep) {
		if runeLen(part) <= chunkSize {
			if strings.TrimSpace(part) != "" {
				result = append(result, part)
			}
			continue
		}
		result = append(result, splitBySeparators(part, rest, chunkSize)...)
	}
	return result
}

// trailingWords returns whole words from the end of text totalling at most
// maxLen runes (separators included), preserving word order.
func trailingWords(text string, maxLen int) string {
	words := strings.Fields(text)
	var kept []string
	total := 0
	for i := len(words) - 1; i >= 0; i-- {
		if total+runeLen(words[i])+1 > maxLen {
			break
		}
		kept = append([]string{words[i]}, kept...)
		total += runeLen(words[i]) + 1
	}
	return strings.Join(kept, " ")
}
