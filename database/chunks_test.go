package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/siherrmann/vidrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertTestChunks(t *testing.T, database *VideosDBHandler, chunksDbHandler *ChunksDBHandler, videoID string, count int, offsetBase int) []*model.Chunk {
	t.Helper()

	insertTestVideo(t, database, videoID, "Video "+videoID)

	tx, err := chunksDbHandler.db.Instance.Begin()
	require.NoError(t, err, "Expected Begin to not return an error")

	chunks := []*model.Chunk{}
	for i := 0; i < count; i++ {
		chunk := &model.Chunk{
			ID:           model.ChunkID(videoID, i),
			VideoID:      videoID,
			ChunkIndex:   i,
			Content:      fmt.Sprintf("Chunk %v of video %v.", i, videoID),
			VectorOffset: offsetBase + i,
			CreatedAt:    time.Now().UTC(),
		}
		err := chunksDbHandler.InsertChunkTx(tx, chunk)
		require.NoError(t, err, "Expected InsertChunkTx to not return an error")
		chunks = append(chunks, chunk)
	}

	require.NoError(t, tx.Commit(), "Expected Commit to not return an error")

	return chunks
}

func TestChunksNewChunksDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewChunksDBHandler", func(t *testing.T) {
		chunksDbHandler, err := NewChunksDBHandler(database, true)
		assert.NoError(t, err, "Expected NewChunksDBHandler to not return an error")
		require.NotNil(t, chunksDbHandler, "Expected NewChunksDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewChunksDBHandler with nil database", func(t *testing.T) {
		_, err := NewChunksDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating ChunksDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestChunksInsertAndSelect(t *testing.T) {
	database := initDB(t)

	videosDbHandler, err := NewVideosDBHandler(database, true)
	require.NoError(t, err)
	chunksDbHandler, err := NewChunksDBHandler(database, true)
	require.NoError(t, err)

	chunks := insertTestChunks(t, videosDbHandler, chunksDbHandler, "video0000001", 3, 0)

	t.Run("Select chunk by id", func(t *testing.T) {
		chunk, err := chunksDbHandler.SelectChunk(chunks[1].ID)
		assert.NoError(t, err, "Expected SelectChunk to not return an error")
		require.NotNil(t, chunk, "Expected SelectChunk to return a non-nil chunk")
		assert.Equal(t, "video0000001_1", chunk.ID, "Expected deterministic chunk id")
		assert.Equal(t, 1, chunk.ChunkIndex, "Expected chunk index to match")
		assert.Equal(t, 1, chunk.VectorOffset, "Expected vector offset to match")
	})

	t.Run("Select chunks by video in chunk order", func(t *testing.T) {
		byVideo, err := chunksDbHandler.SelectChunksByVideo("video0000001")
		assert.NoError(t, err, "Expected SelectChunksByVideo to not return an error")
		require.Len(t, byVideo, 3, "Expected three chunks")
		for i, chunk := range byVideo {
			assert.Equal(t, i, chunk.ChunkIndex, "Expected chunks ordered by index")
		}
	})

	t.Run("Count chunks by video", func(t *testing.T) {
		count, err := chunksDbHandler.CountChunksByVideo("video0000001")
		assert.NoError(t, err, "Expected CountChunksByVideo to not return an error")
		assert.Equal(t, 3, count, "Expected three chunks")
	})

	t.Run("Insert chunk with duplicate vector offset fails", func(t *testing.T) {
		tx, err := database.Instance.Begin()
		require.NoError(t, err)
		defer tx.Rollback()

		duplicate := &model.Chunk{
			ID:           "video0000001_99",
			VideoID:      "video0000001",
			ChunkIndex:   99,
			Content:      "duplicate offset",
			VectorOffset: 0,
			CreatedAt:    time.Now(),
		}
		err = chunksDbHandler.InsertChunkTx(tx, duplicate)
		assert.Error(t, err, "Expected duplicate vector offset to violate the unique constraint")
	})
}

func TestChunksSelectByOffsets(t *testing.T) {
	database := initDB(t)

	videosDbHandler, err := NewVideosDBHandler(database, true)
	require.NoError(t, err)
	chunksDbHandler, err := NewChunksDBHandler(database, true)
	require.NoError(t, err)

	insertTestChunks(t, videosDbHandler, chunksDbHandler, "video0000001", 3, 0)

	t.Run("Resolve existing offsets", func(t *testing.T) {
		resolved, err := chunksDbHandler.SelectChunksByOffsets([]int{0, 2})
		assert.NoError(t, err, "Expected SelectChunksByOffsets to not return an error")
		require.Len(t, resolved, 2, "Expected two resolved offsets")
		assert.Equal(t, "video0000001_0", resolved[0].ID, "Expected offset 0 to resolve to first chunk")
		assert.Equal(t, "video0000001_2", resolved[2].ID, "Expected offset 2 to resolve to third chunk")
	})

	t.Run("Missing offsets are absent from the result", func(t *testing.T) {
		resolved, err := chunksDbHandler.SelectChunksByOffsets([]int{1, 42})
		assert.NoError(t, err, "Expected SelectChunksByOffsets to not return an error")
		assert.Len(t, resolved, 1, "Expected only the live offset to resolve")
		assert.NotContains(t, resolved, 42, "Expected missing offset to be absent")
	})

	t.Run("Empty offset list returns empty map", func(t *testing.T) {
		resolved, err := chunksDbHandler.SelectChunksByOffsets(nil)
		assert.NoError(t, err, "Expected SelectChunksByOffsets to not return an error")
		assert.Empty(t, resolved, "Expected empty result for empty input")
	})
}

func TestChunksCascadeDelete(t *testing.T) {
	database := initDB(t)

	videosDbHandler, err := NewVideosDBHandler(database, true)
	require.NoError(t, err)
	chunksDbHandler, err := NewChunksDBHandler(database, true)
	require.NoError(t, err)

	insertTestChunks(t, videosDbHandler, chunksDbHandler, "video0000001", 3, 0)

	t.Run("Deleting the video tombstones its chunks", func(t *testing.T) {
		err := videosDbHandler.DeleteVideo("video0000001")
		require.NoError(t, err, "Expected DeleteVideo to not return an error")

		count, err := chunksDbHandler.CountChunksByVideo("video0000001")
		assert.NoError(t, err)
		assert.Equal(t, 0, count, "Expected chunks to cascade on video delete")

		resolved, err := chunksDbHandler.SelectChunksByOffsets([]int{0, 1, 2})
		assert.NoError(t, err)
		assert.Empty(t, resolved, "Expected tombstoned offsets to resolve to nothing")
	})
}

func TestChunksUpdateOffset(t *testing.T) {
	database := initDB(t)

	videosDbHandler, err := NewVideosDBHandler(database, true)
	require.NoError(t, err)
	chunksDbHandler, err := NewChunksDBHandler(database, true)
	require.NoError(t, err)

	insertTestChunks(t, videosDbHandler, chunksDbHandler, "video0000001", 2, 10)

	t.Run("Remap chunk offsets in one transaction", func(t *testing.T) {
		tx, err := database.Instance.Begin()
		require.NoError(t, err)

		require.NoError(t, chunksDbHandler.UpdateChunkOffsetTx(tx, "video0000001_0", 0))
		require.NoError(t, chunksDbHandler.UpdateChunkOffsetTx(tx, "video0000001_1", 1))
		require.NoError(t, tx.Commit())

		chunk, err := chunksDbHandler.SelectChunk("video0000001_0")
		assert.NoError(t, err)
		assert.Equal(t, 0, chunk.VectorOffset, "Expected offset to be remapped")
	})

	t.Run("Remap missing chunk fails", func(t *testing.T) {
		tx, err := database.Instance.Begin()
		require.NoError(t, err)
		defer tx.Rollback()

		err = chunksDbHandler.UpdateChunkOffsetTx(tx, "missing00000_0", 5)
		assert.Error(t, err, "Expected UpdateChunkOffsetTx to fail for a missing chunk")
	})
}
