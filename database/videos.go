package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
	loadSql "github.com/siherrmann/vidrag/sql"
)

// VideosDBHandlerFunctions defines the interface for Videos database operations.
type VideosDBHandlerFunctions interface {
	InsertVideoTx(tx *sql.Tx, video *model.Video, method model.AcquisitionMethod) error
	SelectVideo(id string) (*model.Video, error)
	SelectAllVideos() ([]*model.Video, error)
	VideoExists(id string) (bool, error)
	DeleteVideo(id string) error
	CountVideos() (int, error)
}

// VideosDBHandler handles video-related database operations
type VideosDBHandler struct {
	db *helper.Database
}

// NewVideosDBHandler creates a new videos database handler.
// It initializes the database connection and loads the videos schema.
// If force is true, it will reload the schema even if the tables exist.
func NewVideosDBHandler(db *helper.Database, force bool) (*VideosDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	videosDbHandler := &VideosDBHandler{
		db: db,
	}

	err := loadSql.LoadVideosSql(videosDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load videos sql", err)
	}

	db.Logger.Info("Initialized VideosDBHandler")

	return videosDbHandler, nil
}

// InsertVideoTx inserts a video row inside the given transaction. The caller
// commits it together with the chunk rows so a video never appears without
// its chunks.
func (h *VideosDBHandler) InsertVideoTx(tx *sql.Tx, video *model.Video, method model.AcquisitionMethod) error {
	if video == nil {
		return helper.NewError("video validation", fmt.Errorf("video is nil"))
	}
	if video.ID == "" {
		return helper.NewError("video validation", fmt.Errorf("video id is empty"))
	}

	metadata, err := video.Metadata.Marshal()
	if err != nil {
		return helper.NewError("marshal metadata", err)
	}

	_, err = tx.Exec(
		`INSERT INTO videos (id, title, duration, transcript, processing_method, metadata, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?);`,
		video.ID, video.Title, video.Duration, video.Transcript, string(method), string(metadata), video.ProcessedAt,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	return nil
}

// SelectVideo retrieves a video by id. Returns model.ErrVideoNotProcessed
// if the video is not in the store.
func (h *VideosDBHandler) SelectVideo(id string) (*model.Video, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	row := h.db.Instance.QueryRowContext(ctx,
		`SELECT id, title, duration, transcript, metadata, processed_at FROM videos WHERE id = ?;`,
		id,
	)

	video := &model.Video{}
	err := row.Scan(&video.ID, &video.Title, &video.Duration, &video.Transcript, &video.Metadata, &video.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select video", model.ErrVideoNotProcessed)
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return video, nil
}

// SelectAllVideos retrieves all videos ordered by processing time, newest first.
func (h *VideosDBHandler) SelectAllVideos() ([]*model.Video, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT id, title, duration, transcript, metadata, processed_at FROM videos ORDER BY processed_at DESC;`,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	videos := []*model.Video{}
	for rows.Next() {
		video := &model.Video{}
		err := rows.Scan(&video.ID, &video.Title, &video.Duration, &video.Transcript, &video.Metadata, &video.ProcessedAt)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return videos, nil
}

// VideoExists reports whether a video row exists for the given id.
func (h *VideosDBHandler) VideoExists(id string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var exists bool
	err := h.db.Instance.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM videos WHERE id = ?);`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, helper.NewError("scan", err)
	}

	return exists, nil
}

// DeleteVideo removes the video row. Chunk rows cascade; the vectors in the
// index file stay in place and become unreachable.
func (h *VideosDBHandler) DeleteVideo(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.db.Instance.ExecContext(ctx, `DELETE FROM videos WHERE id = ?;`, id)
	if err != nil {
		return helper.NewError("exec", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return helper.NewError("rows affected", err)
	}
	if affected == 0 {
		return helper.NewError("delete video", model.ErrVideoNotProcessed)
	}

	h.db.Logger.Info("Deleted video", "video_id", id)

	return nil
}

// CountVideos returns the number of processed videos.
func (h *VideosDBHandler) CountVideos() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos;`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}
