package rag

import "strings"

// ChunkText splits text on paragraph boundaries greedily into chunks no
// longer than size characters, with overlap characters of overlap between
// adjacent chunks. Paragraphs wider than size are sliced by character
// index, also with overlap, rather than dropped whole.
func ChunkText(text string, size, overlap int) []string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		if len(p) > size {
			flush()
			chunks = append(chunks, sliceOversizeParagraph(p, size, overlap)...)
			continue
		}

		candidate := p
		if current.Len() > 0 {
			candidate = current.String() + "\n\n" + p
		}
		if len(candidate) > size {
			flush()
			current.WriteString(p)
			continue
		}
		current.Reset()
		current.WriteString(candidate)
	}
	flush()

	return applyOverlap(chunks, overlap)
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	var out []string
	for _, p := range raw {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// sliceOversizeParagraph slices a single paragraph that alone exceeds size
// into fixed-width, overlapping windows by character index.
func sliceOversizeParagraph(p string, size, overlap int) []string {
	runes := []rune(p)
	var out []string
	step := size - overlap
	if step <= 0 {
		step = size
	}
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// applyOverlap prepends the trailing overlap characters of each chunk to
// the next, so boundary context survives the paragraph-greedy pass too.
func applyOverlap(chunks []string, overlap int) []string {
	if overlap <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prevRunes := []rune(chunks[i-1])
		tailStart := len(prevRunes) - overlap
		if tailStart < 0 {
			tailStart = 0
		}
		out[i] = string(prevRunes[tailStart:]) + chunks[i]
	}
	return out
}
