package model

import (
	"fmt"
	"time"
)

// Chunk is one contiguous piece of a video transcript. Its embedding lives
// in the vector index at VectorOffset; the chunk row is the only way to
// reach that vector, so deleting the row tombstones the vector.
type Chunk struct {
	ID           string    `json:"chunk_id"`
	VideoID      string    `json:"video_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	VectorOffset int       `json:"vector_offset"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChunkID builds the deterministic chunk identifier for a video and
// chunk position, e.g. "dQw4w9WgXcQ_3".
func ChunkID(videoID string, index int) string {
	return fmt.Sprintf("%v_%v", videoID, index)
}
