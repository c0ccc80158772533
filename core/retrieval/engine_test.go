package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/siherrmann/vidrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapResolver is a ChunkResolver backed by a plain map.
type mapResolver map[int]*model.Chunk

func (m mapResolver) SelectChunksByOffsets(offsets []int) (map[int]*model.Chunk, error) {
	resolved := map[int]*model.Chunk{}
	for _, offset := range offsets {
		if chunk, ok := m[offset]; ok {
			resolved[offset] = chunk
		}
	}
	return resolved, nil
}

// failingResolver always errors.
type failingResolver struct{}

func (failingResolver) SelectChunksByOffsets(offsets []int) (map[int]*model.Chunk, error) {
	return nil, fmt.Errorf("database gone")
}

func buildTestIndex(t *testing.T, vectors [][]float32) *FlatIndex {
	t.Helper()

	index, err := NewFlatIndex(len(vectors[0]))
	require.NoError(t, err)
	for _, vector := range vectors {
		_, err := index.Append(vector)
		require.NoError(t, err)
	}
	return index
}

func identityEmbed(dim int) func(string) ([]float32, error) {
	return func(text string) ([]float32, error) {
		vector := make([]float32, dim)
		vector[0] = 1
		return vector, nil
	}
}

func TestEngineRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("Retrieve returns best chunks in score order", func(t *testing.T) {
		index := buildTestIndex(t, [][]float32{
			{1, 0, 0},
			{0.9, 0.1, 0},
			{0, 0, 1},
		})
		resolver := mapResolver{
			0: {ID: "a_0", VideoID: "a", VectorOffset: 0},
			1: {ID: "a_1", VideoID: "a", VectorOffset: 1},
			2: {ID: "b_0", VideoID: "b", VectorOffset: 2},
		}
		engine := NewEngine(index, resolver, identityEmbed(3))

		config := model.DefaultQueryConfig()
		config.TopK = 2
		results, err := engine.Retrieve(ctx, "what is this about", &config)

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a_0", results[0].Chunk.ID)
		assert.Equal(t, "a_1", results[1].Chunk.ID)
		assert.Greater(t, results[0].Score, results[1].Score)
		assert.Equal(t, "vector", results[0].RetrievalMethod)
	})

	t.Run("Video filter drops other videos and oversamples", func(t *testing.T) {
		// The best-scoring vectors belong to video "a"; the filter for "b"
		// must survive on the over-fetched tail.
		index := buildTestIndex(t, [][]float32{
			{1, 0, 0},
			{0.95, 0.05, 0},
			{0.9, 0.1, 0},
			{0.5, 0.5, 0},
		})
		resolver := mapResolver{
			0: {ID: "a_0", VideoID: "a", VectorOffset: 0},
			1: {ID: "a_1", VideoID: "a", VectorOffset: 1},
			2: {ID: "a_2", VideoID: "a", VectorOffset: 2},
			3: {ID: "b_0", VideoID: "b", VectorOffset: 3},
		}
		engine := NewEngine(index, resolver, identityEmbed(3))

		config := model.DefaultQueryConfig()
		config.TopK = 2
		config.Oversample = 2
		config.VideoID = "b"
		results, err := engine.Retrieve(ctx, "question", &config)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "b_0", results[0].Chunk.ID)
	})

	t.Run("Tombstoned offsets are skipped", func(t *testing.T) {
		index := buildTestIndex(t, [][]float32{
			{1, 0, 0},
			{0.9, 0.1, 0},
		})
		// Offset 0 has no row anymore, its video was deleted.
		resolver := mapResolver{
			1: {ID: "a_1", VideoID: "a", VectorOffset: 1},
		}
		engine := NewEngine(index, resolver, identityEmbed(3))

		config := model.DefaultQueryConfig()
		config.TopK = 2
		results, err := engine.Retrieve(ctx, "question", &config)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "a_1", results[0].Chunk.ID)
	})

	t.Run("Empty index yields no results", func(t *testing.T) {
		index, err := NewFlatIndex(3)
		require.NoError(t, err)
		engine := NewEngine(index, mapResolver{}, identityEmbed(3))

		config := model.DefaultQueryConfig()
		results, err := engine.Retrieve(ctx, "question", &config)

		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Nil config uses defaults", func(t *testing.T) {
		index := buildTestIndex(t, [][]float32{{1, 0, 0}})
		resolver := mapResolver{0: {ID: "a_0", VideoID: "a", VectorOffset: 0}}
		engine := NewEngine(index, resolver, identityEmbed(3))

		results, err := engine.Retrieve(ctx, "question", nil)

		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("Resolver errors propagate", func(t *testing.T) {
		index := buildTestIndex(t, [][]float32{{1, 0, 0}})
		engine := NewEngine(index, failingResolver{}, identityEmbed(3))

		config := model.DefaultQueryConfig()
		_, err := engine.Retrieve(ctx, "question", &config)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "database gone")
	})

	t.Run("Embedder errors propagate", func(t *testing.T) {
		index := buildTestIndex(t, [][]float32{{1, 0, 0}})
		engine := NewEngine(index, mapResolver{}, func(text string) ([]float32, error) {
			return nil, fmt.Errorf("model not loaded")
		})

		config := model.DefaultQueryConfig()
		_, err := engine.Retrieve(ctx, "question", &config)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "model not loaded")
	})

	t.Run("Cancelled context stops retrieval", func(t *testing.T) {
		index := buildTestIndex(t, [][]float32{{1, 0, 0}})
		engine := NewEngine(index, mapResolver{}, identityEmbed(3))

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		config := model.DefaultQueryConfig()
		_, err := engine.Retrieve(cancelled, "question", &config)

		assert.ErrorIs(t, err, context.Canceled)
	})
}
