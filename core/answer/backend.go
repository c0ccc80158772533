package answer

import "context"

// Backend produces an answer for a question from retrieved context.
// The confidence contract differs per backend: extractive backends report
// a model-derived score, generative backends a nominal constant.
type Backend interface {
	Answer(ctx context.Context, question string, passage string) (string, float64, error)
}

// BackendFunc adapts a plain function to the Backend interface.
type BackendFunc func(ctx context.Context, question string, passage string) (string, float64, error)

// Answer implements Backend.
func (f BackendFunc) Answer(ctx context.Context, question string, passage string) (string, float64, error) {
	return f(ctx, question, passage)
}
