package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
	loadSql "github.com/siherrmann/vidrag/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunkTx(tx *sql.Tx, chunk *model.Chunk) error
	SelectChunk(id string) (*model.Chunk, error)
	SelectChunksByVideo(videoID string) ([]*model.Chunk, error)
	SelectChunksByOffsets(offsets []int) (map[int]*model.Chunk, error)
	SelectAllChunks() ([]*model.Chunk, error)
	CountChunksByVideo(videoID string) (int, error)
	UpdateChunkOffsetTx(tx *sql.Tx, id string, offset int) error
}

// ChunksDBHandler handles chunk-related database operations
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads the chunks schema.
// If force is true, it will reload the schema even if the tables exist.
func NewChunksDBHandler(db *helper.Database, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// InsertChunkTx inserts a chunk row inside the given transaction.
func (h *ChunksDBHandler) InsertChunkTx(tx *sql.Tx, chunk *model.Chunk) error {
	if chunk == nil {
		return helper.NewError("chunk validation", fmt.Errorf("chunk is nil"))
	}
	if chunk.ID == "" || chunk.VideoID == "" {
		return helper.NewError("chunk validation", fmt.Errorf("chunk id or video id is empty"))
	}

	_, err := tx.Exec(
		`INSERT INTO chunks (id, video_id, chunk_index, content, vector_offset, created_at)
		 VALUES (?, ?, ?, ?, ?, ?);`,
		chunk.ID, chunk.VideoID, chunk.ChunkIndex, chunk.Content, chunk.VectorOffset, chunk.CreatedAt,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	return nil
}

// SelectChunk retrieves a chunk by id.
func (h *ChunksDBHandler) SelectChunk(id string) (*model.Chunk, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT id, video_id, chunk_index, content, vector_offset, created_at FROM chunks WHERE id = ?;`,
		id,
	)

	chunk := &model.Chunk{}
	err := row.Scan(&chunk.ID, &chunk.VideoID, &chunk.ChunkIndex, &chunk.Content, &chunk.VectorOffset, &chunk.CreatedAt)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return chunk, nil
}

// SelectChunksByVideo retrieves all chunks of a video in chunk order.
func (h *ChunksDBHandler) SelectChunksByVideo(videoID string) ([]*model.Chunk, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT id, video_id, chunk_index, content, vector_offset, created_at FROM chunks
		 WHERE video_id = ? ORDER BY chunk_index;`,
		videoID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SelectChunksByOffsets resolves vector offsets to chunk rows. Offsets with
// no row (tombstoned vectors) are simply absent from the result map.
func (h *ChunksDBHandler) SelectChunksByOffsets(offsets []int) (map[int]*model.Chunk, error) {
	chunks := map[int]*model.Chunk{}
	if len(offsets) == 0 {
		return chunks, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(offsets)), ",")
	args := make([]interface{}, 0, len(offsets))
	for _, offset := range offsets {
		args = append(args, offset)
	}

	rows, err := h.db.Instance.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, video_id, chunk_index, content, vector_offset, created_at FROM chunks
		 WHERE vector_offset IN (%v);`, placeholders),
		args...,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	found, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	for _, chunk := range found {
		chunks[chunk.VectorOffset] = chunk
	}

	return chunks, nil
}

// SelectAllChunks retrieves every chunk ordered by vector offset. Used by
// index compaction to rebuild the vector file from live rows.
func (h *ChunksDBHandler) SelectAllChunks() ([]*model.Chunk, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT id, video_id, chunk_index, content, vector_offset, created_at FROM chunks ORDER BY vector_offset;`,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// CountChunksByVideo returns the number of chunks stored for a video.
func (h *ChunksDBHandler) CountChunksByVideo(videoID string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var count int
	err := h.db.Instance.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE video_id = ?;`,
		videoID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// UpdateChunkOffsetTx remaps a chunk to a new vector offset inside the given
// transaction. Compaction remaps in ascending offset order, so a target
// offset is never still held by a later row and the UNIQUE constraint holds
// throughout.
func (h *ChunksDBHandler) UpdateChunkOffsetTx(tx *sql.Tx, id string, offset int) error {
	result, err := tx.Exec(`UPDATE chunks SET vector_offset = ? WHERE id = ?;`, offset, id)
	if err != nil {
		return helper.NewError("exec", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return helper.NewError("rows affected", err)
	}
	if affected == 0 {
		return helper.NewError("update chunk offset", fmt.Errorf("chunk %v not found", id))
	}

	return nil
}

func scanChunks(rows *sql.Rows) ([]*model.Chunk, error) {
	chunks := []*model.Chunk{}
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(&chunk.ID, &chunk.VideoID, &chunk.ChunkIndex, &chunk.Content, &chunk.VectorOffset, &chunk.CreatedAt)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}
