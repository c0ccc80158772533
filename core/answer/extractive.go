package answer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/siherrmann/vidrag/core/pipeline"
	"github.com/siherrmann/vidrag/helper"
)

// Extractive selects the best-matching span of the passage instead of
// generating free text. The question and candidate sentence windows are
// embedded with the same model used for retrieval; the cosine similarity
// of the winning window is the reported confidence.
type Extractive struct {
	Embed pipeline.EmbedFunc
	// WindowSentences is how many consecutive sentences form one
	// candidate span.
	WindowSentences int
}

// NewExtractive creates an extractive backend over the given embedder.
func NewExtractive(embed pipeline.EmbedFunc) *Extractive {
	return &Extractive{
		Embed:           embed,
		WindowSentences: 2,
	}
}

// Answer returns the passage window most similar to the question.
func (e *Extractive) Answer(ctx context.Context, question string, passage string) (string, float64, error) {
	if strings.TrimSpace(passage) == "" {
		return "", 0, helper.NewError("extract answer", fmt.Errorf("empty passage"))
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	questionEmbedding, err := e.Embed(question)
	if err != nil {
		return "", 0, helper.NewError("embed question", err)
	}

	windows := sentenceWindows(passage, e.windowSize())
	if len(windows) == 0 {
		windows = []string{strings.TrimSpace(passage)}
	}

	best := ""
	bestScore := math.Inf(-1)
	for _, window := range windows {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		windowEmbedding, err := e.Embed(window)
		if err != nil {
			return "", 0, helper.NewError("embed candidate span", err)
		}

		score := cosine(questionEmbedding, windowEmbedding)
		if score > bestScore {
			best = window
			bestScore = score
		}
	}

	if math.IsInf(bestScore, -1) {
		return "", 0, helper.NewError("extract answer", fmt.Errorf("no candidate spans"))
	}

	// Clamp: embeddings are unit length, but float error can nudge past 1.
	confidence := math.Max(0, math.Min(1, bestScore))

	return best, confidence, nil
}

func (e *Extractive) windowSize() int {
	if e.WindowSentences < 1 {
		return 1
	}
	return e.WindowSentences
}

// sentenceWindows splits the passage into sentences and groups them into
// overlapping windows of n sentences (stride 1).
func sentenceWindows(passage string, n int) []string {
	sentences := splitSentences(passage)
	if len(sentences) == 0 {
		return nil
	}
	if len(sentences) <= n {
		return []string{strings.Join(sentences, " ")}
	}

	windows := make([]string, 0, len(sentences)-n+1)
	for i := 0; i+n <= len(sentences); i++ {
		windows = append(windows, strings.Join(sentences[i:i+n], " "))
	}
	return windows
}

func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "! ", "!|")
	text = strings.ReplaceAll(text, "? ", "?|")
	text = strings.ReplaceAll(text, ". ", ".|")

	parts := strings.Split(text, "|")
	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			sentences = append(sentences, part)
		}
	}
	return sentences
}

func cosine(a []float32, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
