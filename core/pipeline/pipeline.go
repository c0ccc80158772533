package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Pipeline combines chunking and embedding functions
type Pipeline struct {
	Chunker  ChunkFunc
	Embedder EmbedFunc
	// MaxParallel bounds concurrent embedding computations. Values below 1
	// mean sequential processing.
	MaxParallel int
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, embedder EmbedFunc) *Pipeline {
	return &Pipeline{
		Chunker:  chunker,
		Embedder: embedder,
	}
}

// Process splits a transcript into spans and embeds them. Embedding runs
// with bounded parallelism; span order is preserved in the result.
func (p *Pipeline) Process(ctx context.Context, text string) ([]EmbeddedSpan, error) {
	if p.Chunker == nil || p.Embedder == nil {
		return nil, fmt.Errorf("pipeline requires both chunker and embedder")
	}

	spans, err := p.Chunker(text)
	if err != nil {
		return nil, err
	}

	embedded := make([]EmbeddedSpan, len(spans))

	group, ctx := errgroup.WithContext(ctx)
	limit := p.MaxParallel
	if limit < 1 {
		limit = 1
	}
	group.SetLimit(limit)

	for i, span := range spans {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			embedding, err := p.Embedder(span.Content)
			if err != nil {
				return fmt.Errorf("embedding chunk %v: %w", span.Index, err)
			}

			embedded[i] = EmbeddedSpan{
				Span:      span,
				Embedding: embedding,
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return embedded, nil
}
