package helper

import (
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

// Configuration holds all runtime settings, loaded from the environment.
type Configuration struct {
	// DataDir holds the metadata database and the vector index file.
	DataDir string
	// ScratchDir holds temporary downloads and extracted audio.
	ScratchDir string

	// External tool paths. Resolved via PATH when left as the bare name.
	YtDlpPath   string
	FFmpegPath  string
	WhisperPath string
	// WhisperModel is the default model size (tiny, base, small, medium, large).
	WhisperModel string

	// Gemini settings for the generative answer backend.
	GeminiAPIKey string
	GeminiModel  string

	// EmbeddingDim is the dimensionality of the embedding model.
	EmbeddingDim int
	// MaxParallelEmbeds bounds concurrent embedding computations.
	MaxParallelEmbeds int

	// Per-attempt timeouts.
	DownloadTimeout   time.Duration
	TranscribeTimeout time.Duration
	CaptionTimeout    time.Duration
}

// NewConfiguration loads the configuration from a .env file (if present)
// and the process environment. Missing optional values fall back to
// defaults; only the data directory is required.
func NewConfiguration() (*Configuration, error) {
	// A missing .env file is fine, the environment may be set directly.
	_ = godotenv.Load()

	dataDir := os.Getenv("VIDRAG_DATA_DIR")
	if dataDir == "" {
		return nil, NewError("load configuration", fmt.Errorf("VIDRAG_DATA_DIR not set"))
	}

	config := &Configuration{
		DataDir:           dataDir,
		ScratchDir:        envOrDefault("VIDRAG_SCRATCH_DIR", os.TempDir()),
		YtDlpPath:         envOrDefault("VIDRAG_YTDLP_PATH", "yt-dlp"),
		FFmpegPath:        envOrDefault("VIDRAG_FFMPEG_PATH", "ffmpeg"),
		WhisperPath:       envOrDefault("VIDRAG_WHISPER_PATH", "whisper"),
		WhisperModel:      envOrDefault("VIDRAG_WHISPER_MODEL", "base"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       envOrDefault("VIDRAG_GEMINI_MODEL", "gemini-1.5-flash"),
		EmbeddingDim:      384,
		MaxParallelEmbeds: 4,
		DownloadTimeout:   10 * time.Minute,
		TranscribeTimeout: 30 * time.Minute,
		CaptionTimeout:    30 * time.Second,
	}

	if v := os.Getenv("VIDRAG_EMBEDDING_DIM"); v != "" {
		dim, err := strconv.Atoi(v)
		if err != nil {
			return nil, NewError("parse VIDRAG_EMBEDDING_DIM", err)
		}
		config.EmbeddingDim = dim
	}

	if v := os.Getenv("VIDRAG_MAX_PARALLEL_EMBEDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, NewError("parse VIDRAG_MAX_PARALLEL_EMBEDS", err)
		}
		config.MaxParallelEmbeds = n
	}

	if v := os.Getenv("VIDRAG_DOWNLOAD_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, NewError("parse VIDRAG_DOWNLOAD_TIMEOUT", err)
		}
		config.DownloadTimeout = d
	}

	return config, nil
}

// SetTestConfigEnvs sets the environment variables for tests, pointing
// all storage into a temporary directory.
func SetTestConfigEnvs(t *testing.T, dataDir string) {
	t.Setenv("VIDRAG_DATA_DIR", dataDir)
	t.Setenv("VIDRAG_SCRATCH_DIR", dataDir)
	t.Setenv("VIDRAG_WHISPER_MODEL", "tiny")
}

func envOrDefault(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
