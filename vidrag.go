package vidrag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/siherrmann/vidrag/core/acquire"
	"github.com/siherrmann/vidrag/core/answer"
	"github.com/siherrmann/vidrag/core/pipeline"
	"github.com/siherrmann/vidrag/core/retrieval"
	"github.com/siherrmann/vidrag/core/tasks"
	"github.com/siherrmann/vidrag/database"
	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
)

const indexFileName = "index.vec"

// VidRAG provides a unified interface to transcript acquisition, indexing
// and question answering.
type VidRAG struct {
	Config       *helper.Configuration
	DB           *helper.Database
	Videos       *database.VideosDBHandler
	Chunks       *database.ChunksDBHandler
	Index        *retrieval.FlatIndex
	Engine       *retrieval.Engine
	Pipeline     *pipeline.Pipeline // Optional chunking pipeline
	Orchestrator *acquire.Orchestrator
	Captions     *acquire.CaptionFetcher
	Composer     *answer.Composer
	Tasks        *tasks.Queue
	// writeMu serializes index appends and the metadata writes that
	// accompany them (indexing, delete, compaction). Reads do not take it.
	writeMu sync.Mutex
	// Logging
	log *slog.Logger
}

// New creates a new VidRAG instance with all handlers initialized
func New(config *helper.Configuration) (*VidRAG, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize metadata database
	db, err := helper.NewDatabase("vidrag", config, logger)
	if err != nil {
		return nil, helper.NewError("initialize database", err)
	}

	// Create handlers in order, chunks reference videos
	videos, err := database.NewVideosDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create videos handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	// Load the vector index from disk, empty if none exists yet
	index, err := retrieval.LoadFlatIndex(filepath.Join(config.DataDir, indexFileName), config.EmbeddingDim)
	if err != nil {
		return nil, helper.NewError("load vector index", err)
	}
	logger.Info("Loaded vector index", "vectors", index.Len())

	// Acquisition stack
	downloader := acquire.NewYtDlpDownloader(config.YtDlpPath, config.DownloadTimeout, logger)
	transcriber := acquire.NewWhisperTranscriber(config.WhisperPath, config.TranscribeTimeout, logger)
	local := acquire.NewLocalAcquirer(downloader, transcriber, config.FFmpegPath, config.ScratchDir, logger)
	captions := acquire.NewCaptionFetcher(config.CaptionTimeout, logger)
	orchestrator := acquire.NewOrchestrator(local, captions, downloader, logger)

	v := &VidRAG{
		Config:       config,
		DB:           db,
		Videos:       videos,
		Chunks:       chunks,
		Index:        index,
		Orchestrator: orchestrator,
		Captions:     captions,
		Composer:     answer.NewComposer(logger),
		Tasks:        tasks.NewQueue(2, logger),
		log:          logger,
	}

	return v, nil
}

// Close stops background work and closes the database connection
func (v *VidRAG) Close() error {
	if v.Tasks != nil {
		v.Tasks.Close()
	}
	if v.DB != nil && v.DB.Instance != nil {
		return v.DB.Instance.Close()
	}
	return nil
}

// SetPipeline sets the chunking pipeline and wires everything that depends
// on its embedder: the retrieval engine and the extractive answer backend.
func (v *VidRAG) SetPipeline(p *pipeline.Pipeline) {
	v.Pipeline = p
	v.Engine = retrieval.NewEngine(v.Index, v.Chunks, p.Embedder)
	v.Composer.Register(model.BackendExtractive, answer.NewExtractive(p.Embedder))
}

// UseDefaultPipeline sets up the default chunking and embedding pipeline.
// This uses OverlapChunker with 1000 char chunks and 200 char overlap,
// and DefaultEmbedder with the all-MiniLM-L6-v2 model (384 dimensions)
func (v *VidRAG) UseDefaultPipeline() error {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	chunking := model.DefaultChunkingConfig()
	p := pipeline.NewPipeline(pipeline.OverlapChunker(chunking.Size, chunking.Overlap), embedder)
	p.MaxParallel = v.Config.MaxParallelEmbeds
	v.SetPipeline(p)

	return nil
}

// UseGenerativeBackend registers the Gemini answer backend using the
// configured API key and model.
func (v *VidRAG) UseGenerativeBackend(ctx context.Context) error {
	generative, err := answer.NewGenerative(ctx, v.Config.GeminiAPIKey, v.Config.GeminiModel)
	if err != nil {
		return helper.NewError("create generative backend", err)
	}
	v.Composer.Register(model.BackendGenerative, generative)
	return nil
}

// ProcessVideo acquires the transcript for a video locator and schedules
// chunking and indexing in the background. The returned acknowledgment
// carries the acquisition outcome; indexing progress is visible through
// TaskStatus.
func (v *VidRAG) ProcessVideo(ctx context.Context, locator string, options model.AcquireOptions) (*model.ProcessingAck, error) {
	if v.Pipeline == nil {
		return nil, helper.NewError("process video", fmt.Errorf("pipeline not set, use UseDefaultPipeline() first"))
	}

	videoID, err := acquire.ResolveLocator(locator)
	if err != nil {
		return nil, err
	}

	exists, err := v.Videos.VideoExists(videoID)
	if err != nil {
		return nil, err
	}
	if exists {
		video, err := v.Videos.SelectVideo(videoID)
		if err != nil {
			return nil, err
		}
		return &model.ProcessingAck{
			VideoID:          videoID,
			Title:            video.Title,
			Duration:         video.Duration,
			TranscriptLength: len(video.Transcript),
			Status:           "already_processed",
		}, nil
	}

	result, err := v.Orchestrator.Acquire(ctx, videoID, options)
	if err != nil {
		return nil, err
	}

	if _, err := v.Tasks.Enqueue(videoID, func(taskCtx context.Context) error {
		return v.IndexTranscript(taskCtx, result)
	}); err != nil {
		return nil, err
	}

	return &model.ProcessingAck{
		VideoID:          videoID,
		Title:            result.Title,
		Duration:         result.Duration,
		TranscriptLength: len(result.Transcript.Text),
		Method:           result.Method,
		Status:           "processing",
	}, nil
}

// IndexTranscript chunks, embeds and persists an acquired transcript. The
// vector appends and the metadata rows commit under the single writer lock;
// a failed commit leaves only orphan vectors, which filtered search never
// returns.
func (v *VidRAG) IndexTranscript(ctx context.Context, result *model.AcquisitionResult) error {
	if v.Pipeline == nil {
		return helper.NewError("index transcript", fmt.Errorf("pipeline not set, use UseDefaultPipeline() first"))
	}
	if result == nil || result.Transcript == nil || result.Transcript.Text == "" {
		return helper.NewError("index transcript", fmt.Errorf("transcript is empty"))
	}

	embedded, err := v.Pipeline.Process(ctx, result.Transcript.Text)
	if err != nil {
		return helper.NewError("process transcript", err)
	}
	if len(embedded) == 0 {
		return helper.NewError("index transcript", fmt.Errorf("transcript produced no chunks"))
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	tx, err := v.DB.Instance.Begin()
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	video := &model.Video{
		ID:         result.VideoID,
		Title:      result.Title,
		Duration:   result.Duration,
		Transcript: result.Transcript.Text,
		Metadata: model.Metadata{
			"language": result.Transcript.Language,
		},
		ProcessedAt: time.Now().UTC(),
	}
	if err := v.Videos.InsertVideoTx(tx, video, result.Method); err != nil {
		return err
	}

	for _, span := range embedded {
		offset, err := v.Index.Append(span.Embedding)
		if err != nil {
			return helper.NewError(fmt.Sprintf("append vector %v", span.Index), err)
		}

		chunk := &model.Chunk{
			ID:           model.ChunkID(result.VideoID, span.Index),
			VideoID:      result.VideoID,
			ChunkIndex:   span.Index,
			Content:      span.Content,
			VectorOffset: offset,
			CreatedAt:    time.Now().UTC(),
		}
		if err := v.Chunks.InsertChunkTx(tx, chunk); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit transaction", err)
	}

	if err := v.saveIndexLocked(); err != nil {
		return err
	}

	v.log.Info("Indexed transcript", "video_id", result.VideoID, "chunks", len(embedded))
	return nil
}

// Ask answers a question over the indexed transcripts. When config.VideoID
// is set, the video must be processed and retrieval is restricted to it.
func (v *VidRAG) Ask(ctx context.Context, question string, config *model.QueryConfig) (*model.Answer, error) {
	if v.Engine == nil {
		return nil, helper.NewError("ask question", fmt.Errorf("pipeline not set, use UseDefaultPipeline() first"))
	}
	if config == nil {
		defaultConfig := model.DefaultQueryConfig()
		config = &defaultConfig
	}

	if config.VideoID != "" {
		exists, err := v.Videos.VideoExists(config.VideoID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, helper.NewError("ask question", model.ErrVideoNotProcessed)
		}
	}

	results, err := v.Engine.Retrieve(ctx, question, config)
	if err != nil {
		return nil, err
	}

	return v.Composer.Compose(ctx, question, results, config)
}

// ListVideos returns a summary of every processed video, newest first.
func (v *VidRAG) ListVideos() ([]*model.VideoSummary, error) {
	videos, err := v.Videos.SelectAllVideos()
	if err != nil {
		return nil, err
	}

	summaries := make([]*model.VideoSummary, 0, len(videos))
	for _, video := range videos {
		count, err := v.Chunks.CountChunksByVideo(video.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, &model.VideoSummary{
			ID:          video.ID,
			Title:       video.Title,
			Duration:    video.Duration,
			ChunkCount:  count,
			ProcessedAt: video.ProcessedAt,
		})
	}

	return summaries, nil
}

// IsProcessed reports whether the video's transcript is fully indexed.
func (v *VidRAG) IsProcessed(videoID string) (bool, error) {
	return v.Videos.VideoExists(videoID)
}

// TaskStatus returns the background indexing status for a video, or nil
// when no task exists for it.
func (v *VidRAG) TaskStatus(videoID string) *tasks.Task {
	return v.Tasks.Status(videoID)
}

// DeleteVideo removes a video and its chunk rows. The vectors stay in the
// index as tombstones until CompactIndex reclaims them.
func (v *VidRAG) DeleteVideo(videoID string) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	return v.Videos.DeleteVideo(videoID)
}

// CompactIndex rebuilds the vector index from live chunk rows, dropping
// tombstoned vectors and remapping offsets atomically.
func (v *VidRAG) CompactIndex() error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	chunks, err := v.Chunks.SelectAllChunks()
	if err != nil {
		return err
	}

	vectors := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := v.Index.Vector(chunk.VectorOffset)
		if err != nil {
			return helper.NewError(fmt.Sprintf("read vector for chunk %v", chunk.ID), err)
		}
		vectors = append(vectors, vector)
	}

	// Stage the compacted index on disk before committing the remap, so the
	// swap after the commit is a bare rename.
	staged, err := retrieval.NewFlatIndex(v.Index.Dim())
	if err != nil {
		return err
	}
	if err := staged.Replace(vectors); err != nil {
		return err
	}
	stagedPath := filepath.Join(v.Config.DataDir, indexFileName+".compact")
	if err := staged.Save(stagedPath); err != nil {
		return helper.NewError("stage compacted index", err)
	}
	defer os.Remove(stagedPath)

	tx, err := v.DB.Instance.Begin()
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	// Chunks are ordered by old offset, so ascending targets never collide.
	for newOffset, chunk := range chunks {
		if chunk.VectorOffset == newOffset {
			continue
		}
		if err := v.Chunks.UpdateChunkOffsetTx(tx, chunk.ID, newOffset); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit transaction", err)
	}

	if err := os.Rename(stagedPath, filepath.Join(v.Config.DataDir, indexFileName)); err != nil {
		return helper.NewError("swap index file", err)
	}

	if err := v.Index.Replace(vectors); err != nil {
		return err
	}

	v.log.Info("Compacted index", "vectors", len(vectors))
	return nil
}

// Probe fetches title and duration for a locator without downloading.
func (v *VidRAG) Probe(ctx context.Context, locator string) (*model.VideoInfo, error) {
	videoID, err := acquire.ResolveLocator(locator)
	if err != nil {
		return nil, err
	}
	return v.Orchestrator.Prober.Probe(ctx, videoID)
}

// CheckTranscript reports whether captions are available for a locator and
// in which languages, without indexing anything.
func (v *VidRAG) CheckTranscript(ctx context.Context, locator string) (bool, []string, error) {
	videoID, err := acquire.ResolveLocator(locator)
	if err != nil {
		return false, nil, err
	}

	return v.Captions.Available(ctx, videoID)
}

// StorageInfo reports the state of the scratch directory.
func (v *VidRAG) StorageInfo() (*acquire.ScratchInfo, error) {
	return acquire.InspectScratch(v.Config.ScratchDir)
}

// CleanupDownloads removes leftover media from the scratch directory and
// returns the number of removed files.
func (v *VidRAG) CleanupDownloads() (int, error) {
	return acquire.CleanupScratch(v.Config.ScratchDir)
}

func (v *VidRAG) saveIndexLocked() error {
	path := filepath.Join(v.Config.DataDir, indexFileName)
	if err := v.Index.Save(path); err != nil {
		return helper.NewError("save vector index", err)
	}
	return nil
}
