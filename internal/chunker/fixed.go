package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// chunkFixedSize walks the text in chunkSize-rune windows. When a window
// ends mid-word the cut retracts to the last space, but only if that keeps
// at least half the window; otherwise the hard cut stands. The next window
// starts chunkOverlap runes before the previous cut.
func chunkFixedSize(text string, s settings) []Chunk {
	runes := []rune(text)

	var chunks []Chunk
	start := 0
	index := 0
	for start < len(runes) {
		end := start + s.chunkSize

		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			window := runes[start:end]
			if last := lastSpaceIndex(window); 2*last > s.chunkSize {
				end = start + last
			}
		}

		sliceEnd := end
		if sliceEnd > len(runes) {
			sliceEnd = len(runes)
		}
		content := strings.TrimSpace(string(runes[start:sliceEnd]))
		if content != "" {
			chunks = append(chunks, Chunk{
				Content:   content,
				Index:     index,
				StartChar: start,
				EndChar:   sliceEnd,
				Metadata: map[string]any{
					"method":     string(MethodFixedSize),
					"chunk_size": s.chunkSize,
				},
			})
			index++
		}

		next := end - s.chunkOverlap
		if next <= start {
			// A deep retraction can eat the whole advance; force
			// progress so the walk terminates.
			next = start + 1
		}
		start = next
	}

	return chunks
}

// lastSpaceIndex returns the index of the last ' ' in window, or -1.
func lastSpaceIndex(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' {
			return i
		}
	}
	return -1
}
