package pipeline

import (
	"fmt"
	"strings"
)

// OverlapChunker creates a chunker producing fixed-size spans with overlap.
// Each span is at most size characters; consecutive spans share overlap
// characters. When a span would cut mid-sentence, the cut steps back to the
// last sentence boundary or newline, but never further back than the span
// midpoint so pathological texts cannot shrink spans to nothing.
func OverlapChunker(size int, overlap int) ChunkFunc {
	return func(text string) ([]Span, error) {
		if size <= 0 {
			return nil, fmt.Errorf("chunk size must be positive")
		}
		if overlap < 0 || overlap >= size {
			return nil, fmt.Errorf("overlap must be non-negative and smaller than chunk size")
		}

		if strings.TrimSpace(text) == "" {
			return []Span{}, nil
		}

		spans := []Span{}
		index := 0
		start := 0

		for start < len(text) {
			end := start + size
			if end >= len(text) {
				end = len(text)
			} else {
				mid := start + size/2
				for i := end; i > mid; i-- {
					c := text[i-1]
					if c == '.' || c == '!' || c == '?' || c == '\n' {
						end = i
						break
					}
				}
			}

			content := strings.TrimSpace(text[start:end])
			if content != "" {
				spans = append(spans, Span{
					Content: content,
					Offset:  start,
					Index:   index,
				})
				index++
			}

			if end >= len(text) {
				break
			}
			// A backstepped end combined with a large overlap could move the
			// window backwards; the window must always advance.
			next := end - overlap
			if next <= start {
				next = start + 1
			}
			start = next
		}

		return spans, nil
	}
}
