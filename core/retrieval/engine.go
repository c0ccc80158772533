package retrieval

import (
	"context"

	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
)

// ChunkResolver resolves vector offsets to their owning chunk rows.
// Offsets without a live row are simply absent from the result.
type ChunkResolver interface {
	SelectChunksByOffsets(offsets []int) (map[int]*model.Chunk, error)
}

// Engine performs filtered vector retrieval over the flat index.
type Engine struct {
	index  *FlatIndex
	chunks ChunkResolver
	embed  func(text string) ([]float32, error)
}

// NewEngine creates a new retrieval engine
func NewEngine(index *FlatIndex, chunks ChunkResolver, embed func(text string) ([]float32, error)) *Engine {
	return &Engine{
		index:  index,
		chunks: chunks,
		embed:  embed,
	}
}

// Retrieve embeds the question and returns the best-scoring live chunks.
// When config.VideoID is set, the index is over-fetched by the oversampling
// factor (capped at the index size) so enough candidates survive the filter.
// Tombstoned offsets (vectors whose chunk row is gone) are skipped.
func (e *Engine) Retrieve(ctx context.Context, question string, config *model.QueryConfig) ([]*model.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedding, err := e.embed(question)
	if err != nil {
		return nil, helper.NewError("embed question", err)
	}

	return e.RetrieveByVector(ctx, embedding, config)
}

// RetrieveByVector is Retrieve for a pre-computed query embedding.
func (e *Engine) RetrieveByVector(ctx context.Context, embedding []float32, config *model.QueryConfig) ([]*model.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config == nil {
		defaultConfig := model.DefaultQueryConfig()
		config = &defaultConfig
	}

	fetch := config.TopK
	if config.VideoID != "" {
		oversample := config.Oversample
		if oversample < 1 {
			oversample = 1
		}
		fetch = config.TopK * oversample
	}
	if fetch > e.index.Len() {
		fetch = e.index.Len()
	}

	hits, err := e.index.Search(embedding, fetch)
	if err != nil {
		return nil, helper.NewError("index search", err)
	}
	if len(hits) == 0 {
		return []*model.RetrievalResult{}, nil
	}

	offsets := make([]int, len(hits))
	for i, hit := range hits {
		offsets[i] = hit.Offset
	}

	resolved, err := e.chunks.SelectChunksByOffsets(offsets)
	if err != nil {
		return nil, helper.NewError("resolve offsets", err)
	}

	results := []*model.RetrievalResult{}
	for _, hit := range hits {
		chunk, ok := resolved[hit.Offset]
		if !ok {
			// Tombstoned vector, its metadata row is gone.
			continue
		}
		if config.VideoID != "" && chunk.VideoID != config.VideoID {
			continue
		}

		results = append(results, &model.RetrievalResult{
			Chunk:           chunk,
			Score:           hit.Score,
			RetrievalMethod: "vector",
		})
		if len(results) >= config.TopK {
			break
		}
	}

	return results, nil
}
