package acquire

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
)

// LocalAcquirer produces transcripts the heavy way: download the media,
// extract the audio with ffmpeg, transcribe it with speech to text.
type LocalAcquirer struct {
	Downloader  Downloader
	Transcriber SpeechToText
	FFmpegPath  string
	ScratchDir  string
	Logger      *slog.Logger
}

// NewLocalAcquirer wires the local acquisition path.
func NewLocalAcquirer(downloader Downloader, transcriber SpeechToText, ffmpegPath string, scratchDir string, logger *slog.Logger) *LocalAcquirer {
	return &LocalAcquirer{
		Downloader:  downloader,
		Transcriber: transcriber,
		FFmpegPath:  ffmpegPath,
		ScratchDir:  scratchDir,
		Logger:      logger,
	}
}

// Acquire downloads, extracts and transcribes one video. Scratch files are
// removed on every path, success included, before returning.
func (a *LocalAcquirer) Acquire(ctx context.Context, videoID string, options model.AcquireOptions) (*model.AcquisitionResult, error) {
	workDir, err := os.MkdirTemp(a.ScratchDir, "vidrag-"+videoID+"-")
	if err != nil {
		return nil, helper.NewError("create scratch directory", err)
	}
	defer os.RemoveAll(workDir)

	// A failed probe only costs the title and duration, the download itself
	// may still succeed.
	info, err := a.Downloader.Probe(ctx, videoID)
	if err != nil {
		a.Logger.Warn("Metadata probe failed", "video_id", videoID, "error", err.Error())
		info = &model.VideoInfo{}
	}

	mediaPath, err := a.Downloader.Download(ctx, videoID, workDir)
	if err != nil {
		return nil, err
	}

	audioPath, err := a.extractAudio(ctx, mediaPath)
	if err != nil {
		return nil, err
	}

	transcript, err := a.Transcriber.Transcribe(ctx, audioPath, options.Language, options.ModelSize)
	if err != nil {
		return nil, err
	}

	a.Logger.Info("Local acquisition complete", "video_id", videoID, "transcript_length", len(transcript.Text))

	return &model.AcquisitionResult{
		VideoID:    videoID,
		Title:      info.Title,
		Duration:   info.Duration,
		Transcript: transcript,
		Method:     model.MethodLocalWhisper,
	}, nil
}

// extractAudio converts the downloaded media to mp3 for transcription.
func (a *LocalAcquirer) extractAudio(ctx context.Context, mediaPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	audioPath := mediaPath[:len(mediaPath)-len(filepath.Ext(mediaPath))] + ".mp3"

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.FFmpegPath,
		"-i", mediaPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", "192k",
		"-y",
		audioPath,
	)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", helper.NewError("extract audio", fmt.Errorf("%v: %v", err, firstLine(stderr.String())))
	}

	return audioPath, nil
}
