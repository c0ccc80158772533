package model

import (
	"time"
)

// Video represents a processed video and its transcript metadata.
// A Video and its Chunks are created together when indexing succeeds
// and removed together on deletion; the record is immutable in between.
type Video struct {
	ID          string    `json:"video_id"`
	Title       string    `json:"title"`
	Duration    float64   `json:"duration"` // seconds
	Transcript  string    `json:"transcript,omitempty"`
	ChunkIDs    []string  `json:"chunk_ids,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// VideoSummary is the listing view of a processed video.
type VideoSummary struct {
	ID          string    `json:"video_id"`
	Title       string    `json:"title"`
	Duration    float64   `json:"duration"`
	ChunkCount  int       `json:"chunk_count"`
	ProcessedAt time.Time `json:"processed_at"`
}

// VideoInfo holds metadata probed from the video host without downloading.
type VideoInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Uploader string  `json:"uploader,omitempty"`
	FileSize int64   `json:"filesize_approx,omitempty"`
}
