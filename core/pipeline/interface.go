package pipeline

// ChunkFunc is a function that splits a transcript into overlapping spans
type ChunkFunc func(text string) ([]Span, error)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// Span represents one chunk of the source text before embedding
type Span struct {
	Content string
	// Offset is the position of the span start in the source text
	Offset int
	// Index is the sequential chunk number within the transcript
	Index int
}

// EmbeddedSpan is a span together with its embedding
type EmbeddedSpan struct {
	Span
	Embedding []float32
}
