package model

// ChunkingConfig controls how a transcript is split before embedding.
// Size and Overlap are measured in characters.
type ChunkingConfig struct {
	Size    int `json:"size"`
	Overlap int `json:"overlap"`
}

// DefaultChunkingConfig returns the default chunking configuration of
// 1000 characters per chunk with an overlap of 200 characters.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		Size:    1000,
		Overlap: 200,
	}
}

// AnswerBackendKind selects how the final answer is produced from the
// retrieved context.
type AnswerBackendKind string

const (
	// BackendExtractive selects a span from the retrieved context and
	// reports the model's own confidence for that span.
	BackendExtractive AnswerBackendKind = "extractive"
	// BackendGenerative produces free text with a generative model. Its
	// confidence is a nominal constant, not a model probability.
	BackendGenerative AnswerBackendKind = "generative"
)

// QueryConfig controls a single question-answering request.
type QueryConfig struct {
	// VideoID restricts retrieval to one video when set.
	VideoID string `json:"video_id,omitempty"`
	// TopK is the number of chunks handed to the answer backend.
	TopK int `json:"top_k"`
	// Oversample multiplies TopK when a VideoID filter is set, so that
	// enough candidates survive the filter. Capped at the index size.
	Oversample int `json:"oversample"`
	// MaxContextLength bounds the concatenated context in characters.
	MaxContextLength int `json:"max_context_length"`
	// Backend selects the answer backend.
	Backend AnswerBackendKind `json:"backend"`
}

// DefaultQueryConfig returns the default query configuration.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:             5,
		Oversample:       2,
		MaxContextLength: 2000,
		Backend:          BackendExtractive,
	}
}
