package answer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/siherrmann/vidrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testComposer() *Composer {
	return NewComposer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func resultWithContent(content string) *model.RetrievalResult {
	return &model.RetrievalResult{
		Chunk: &model.Chunk{ID: "v_0", VideoID: "v", Content: content},
		Score: 0.9,
	}
}

func TestComposerCompose(t *testing.T) {
	ctx := context.Background()

	t.Run("No results yield the fixed no-content answer", func(t *testing.T) {
		composer := testComposer()

		config := model.DefaultQueryConfig()
		answer, err := composer.Compose(ctx, "what is this", []*model.RetrievalResult{}, &config)

		require.NoError(t, err, "Expected an empty result set to not be an error")
		assert.Equal(t, noContentAnswer, answer.Text)
		assert.Equal(t, 0.0, answer.Confidence)
		assert.False(t, answer.Found)
		assert.Empty(t, answer.Sources)
	})

	t.Run("Registered backend receives the joined context", func(t *testing.T) {
		composer := testComposer()

		var received string
		composer.Register(model.BackendExtractive, BackendFunc(func(ctx context.Context, question string, passage string) (string, float64, error) {
			received = passage
			return "the answer", 0.75, nil
		}))

		results := []*model.RetrievalResult{
			resultWithContent("first chunk"),
			resultWithContent("second chunk"),
		}
		config := model.DefaultQueryConfig()
		answer, err := composer.Compose(ctx, "question", results, &config)

		require.NoError(t, err)
		assert.Equal(t, "first chunk\n\nsecond chunk", received, "Expected chunks joined with blank lines")
		assert.Equal(t, "the answer", answer.Text)
		assert.Equal(t, 0.75, answer.Confidence)
		assert.True(t, answer.Found)
		assert.Len(t, answer.Sources, 2)
		assert.Equal(t, model.BackendExtractive, answer.Backend)
	})

	t.Run("Context is truncated with an ellipsis marker", func(t *testing.T) {
		composer := testComposer()

		var received string
		composer.Register(model.BackendExtractive, BackendFunc(func(ctx context.Context, question string, passage string) (string, float64, error) {
			received = passage
			return "ok", 1, nil
		}))

		config := model.DefaultQueryConfig()
		config.MaxContextLength = 50
		results := []*model.RetrievalResult{resultWithContent(strings.Repeat("x", 200))}

		_, err := composer.Compose(ctx, "question", results, &config)

		require.NoError(t, err)
		assert.Len(t, received, 53, "Expected 50 characters plus the ellipsis")
		assert.True(t, strings.HasSuffix(received, "..."), "Expected the truncation marker")
	})

	t.Run("Unregistered backend errors", func(t *testing.T) {
		composer := testComposer()

		config := model.DefaultQueryConfig()
		config.Backend = model.BackendGenerative
		_, err := composer.Compose(ctx, "question", []*model.RetrievalResult{resultWithContent("chunk")}, &config)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no backend registered")
	})

	t.Run("Backend errors propagate", func(t *testing.T) {
		composer := testComposer()
		composer.Register(model.BackendExtractive, BackendFunc(func(ctx context.Context, question string, passage string) (string, float64, error) {
			return "", 0, fmt.Errorf("backend exploded")
		}))

		config := model.DefaultQueryConfig()
		_, err := composer.Compose(ctx, "question", []*model.RetrievalResult{resultWithContent("chunk")}, &config)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "backend exploded")
	})

	t.Run("Has reports registered kinds", func(t *testing.T) {
		composer := testComposer()
		assert.False(t, composer.Has(model.BackendExtractive))

		composer.Register(model.BackendExtractive, BackendFunc(func(ctx context.Context, question string, passage string) (string, float64, error) {
			return "", 0, nil
		}))
		assert.True(t, composer.Has(model.BackendExtractive))
	})
}
