package chunker

import "strings"

// chunkBySentence groups sentences into windows of sentencesPerChunk,
// advancing by sentencesPerChunk-overlapSentences sentences per step so
// consecutive chunks share overlapSentences sentences.
func chunkBySentence(text string, s settings) []Chunk {
	sentences := splitSentences(text)

	var chunks []Chunk
	index := 0
	step := s.sentencesPerChunk - s.overlapSentences
	for i := 0; i < len(sentences); i += step {
		end := i + s.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		group := sentences[i:end]

		parts := make([]string, len(group))
		for j, sent := range group {
			parts[j] = sent.text
		}
		content := strings.TrimSpace(strings.Join(parts, " "))
		if content == "" {
			continue
		}

		start := group[0].start
		chunks = append(chunks, Chunk{
			Content:   content,
			Index:     index,
			StartChar: start,
			EndChar:   start + runeLen(content),
			Metadata: map[string]any{
				"method":          string(MethodSentence),
				"sentences_count": len(group),
			},
		})
		index++
	}

	return chunks
}
