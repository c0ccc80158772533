package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
)

// SpeechToText turns an audio file into a transcript.
type SpeechToText interface {
	Transcribe(ctx context.Context, audioPath string, language string, modelSize string) (*model.Transcript, error)
}

// WhisperTranscriber shells out to the whisper CLI.
type WhisperTranscriber struct {
	Binary  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewWhisperTranscriber creates a transcriber using the given whisper binary.
func NewWhisperTranscriber(binary string, timeout time.Duration, logger *slog.Logger) *WhisperTranscriber {
	return &WhisperTranscriber{
		Binary:  binary,
		Timeout: timeout,
		Logger:  logger,
	}
}

// whisperOutput mirrors whisper's JSON output file.
type whisperOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe runs whisper on the audio file and parses its JSON output.
// Cancellation is best effort: a kill may land after whisper finished
// writing, which is harmless.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string, language string, modelSize string) (*model.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	if modelSize == "" {
		modelSize = "base"
	}

	outputDir := filepath.Dir(audioPath)
	args := []string{
		audioPath,
		"--model", modelSize,
		"--output_format", "json",
		"--output_dir", outputDir,
	}
	if language != "" {
		args = append(args, "--language", language)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.Binary, args...)
	cmd.Stderr = &stderr

	w.Logger.Info("Transcribing audio", "audio", filepath.Base(audioPath), "model", modelSize)

	if err := cmd.Run(); err != nil {
		return nil, helper.NewError("run whisper",
			fmt.Errorf("%w: %v: %v", model.ErrTranscriptionFailure, err, firstLine(stderr.String())))
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	outputPath := filepath.Join(outputDir, base+".json")

	raw, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, helper.NewError("read whisper output",
			fmt.Errorf("%w: %v", model.ErrTranscriptionFailure, err))
	}
	defer os.Remove(outputPath)

	output := whisperOutput{}
	if err := json.Unmarshal(raw, &output); err != nil {
		return nil, helper.NewError("parse whisper output",
			fmt.Errorf("%w: %v", model.ErrTranscriptionFailure, err))
	}

	text := strings.TrimSpace(output.Text)
	if text == "" {
		return nil, helper.NewError("validate whisper output",
			fmt.Errorf("%w: empty transcript", model.ErrTranscriptionFailure))
	}

	segments := make([]model.Segment, 0, len(output.Segments))
	for _, segment := range output.Segments {
		segments = append(segments, model.Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  strings.TrimSpace(segment.Text),
		})
	}

	return &model.Transcript{
		Text:     text,
		Language: output.Language,
		Segments: segments,
	}, nil
}
