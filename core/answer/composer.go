package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
)

// noContentAnswer is returned when retrieval produced nothing usable.
const noContentAnswer = "I couldn't find relevant information in the video to answer your question."

// Composer turns retrieval results into a final answer using a registered
// backend.
type Composer struct {
	backends map[model.AnswerBackendKind]Backend
	log      *slog.Logger
}

// NewComposer creates an empty composer; backends are added with Register.
func NewComposer(logger *slog.Logger) *Composer {
	return &Composer{
		backends: map[model.AnswerBackendKind]Backend{},
		log:      logger,
	}
}

// Register adds or replaces the backend for a kind.
func (c *Composer) Register(kind model.AnswerBackendKind, backend Backend) {
	c.backends[kind] = backend
}

// Has reports whether a backend is registered for the kind.
func (c *Composer) Has(kind model.AnswerBackendKind) bool {
	_, ok := c.backends[kind]
	return ok
}

// Compose builds the context from the retrieval results, truncates it to
// the configured bound and asks the selected backend. Empty results yield
// the fixed no-content answer with zero confidence and Found=false, which
// is a valid response, not an error.
func (c *Composer) Compose(ctx context.Context, question string, results []*model.RetrievalResult, config *model.QueryConfig) (*model.Answer, error) {
	if config == nil {
		defaultConfig := model.DefaultQueryConfig()
		config = &defaultConfig
	}

	if len(results) == 0 {
		c.log.Info("No relevant content for question", "question_length", len(question))
		return &model.Answer{
			Question:   question,
			Text:       noContentAnswer,
			Confidence: 0,
			Found:      false,
			Sources:    []*model.RetrievalResult{},
			Backend:    config.Backend,
		}, nil
	}

	backend, ok := c.backends[config.Backend]
	if !ok {
		return nil, helper.NewError("compose answer", fmt.Errorf("no backend registered for %v", config.Backend))
	}

	passage := buildContext(results, config.MaxContextLength)

	text, confidence, err := backend.Answer(ctx, question, passage)
	if err != nil {
		return nil, helper.NewError("compose answer", err)
	}

	return &model.Answer{
		Question:   question,
		Text:       text,
		Confidence: confidence,
		Found:      true,
		Sources:    results,
		Backend:    config.Backend,
	}, nil
}

// buildContext joins chunk contents and truncates to maxLength characters,
// marking the cut with an ellipsis.
func buildContext(results []*model.RetrievalResult, maxLength int) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		parts = append(parts, result.Chunk.Content)
	}
	passage := strings.Join(parts, "\n\n")

	if maxLength > 0 && len(passage) > maxLength {
		passage = passage[:maxLength] + "..."
	}
	return passage
}
