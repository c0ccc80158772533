package model

// RetrievalResult is one scored chunk returned by the retrieval engine.
type RetrievalResult struct {
	Chunk           *Chunk  `json:"chunk"`
	Score           float64 `json:"score"`
	RetrievalMethod string  `json:"retrieval_method"`
}

// Answer is the composed response to a question.
type Answer struct {
	Question   string             `json:"question"`
	Text       string             `json:"answer"`
	Confidence float64            `json:"confidence"`
	Found      bool               `json:"found"`
	Sources    []*RetrievalResult `json:"sources,omitempty"`
	Backend    AnswerBackendKind  `json:"backend"`
}
