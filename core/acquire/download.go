package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
)

// formatCascade is the quality ladder tried in order. Moderate resolutions
// come first because audio quality is all that matters for transcription.
var formatCascade = []string{
	"best[height<=720]",
	"best[height<=480]",
	"best[height<=360]",
	"worst[height>=240]",
	"best",
	"worst",
}

// Downloader fetches media and metadata from the video host.
type Downloader interface {
	Probe(ctx context.Context, videoID string) (*model.VideoInfo, error)
	Download(ctx context.Context, videoID string, destDir string) (string, error)
}

// YtDlpDownloader shells out to yt-dlp.
type YtDlpDownloader struct {
	Binary  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewYtDlpDownloader creates a downloader using the given yt-dlp binary.
func NewYtDlpDownloader(binary string, timeout time.Duration, logger *slog.Logger) *YtDlpDownloader {
	return &YtDlpDownloader{
		Binary:  binary,
		Timeout: timeout,
		Logger:  logger,
	}
}

// Probe fetches video metadata without downloading any media.
func (d *YtDlpDownloader) Probe(ctx context.Context, videoID string) (*model.VideoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.Binary,
		"--dump-json",
		"--skip-download",
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		watchURL(videoID),
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, helper.NewError("probe video", classifyDownloadError(stderr.String(), err))
	}

	info := &model.VideoInfo{}
	if err := json.Unmarshal(stdout.Bytes(), info); err != nil {
		return nil, helper.NewError("parse video info", err)
	}

	return info, nil
}

// Download fetches the video media into destDir, walking the format cascade
// until a selector succeeds. Transient failures of a selector are retried
// with exponential backoff before moving on to the next format; terminal
// classifications (bot detection, restricted access, unavailable video) skip
// the per-format retries and, once the cascade is exhausted, surface as
// themselves instead of the generic exhaustion error.
func (d *YtDlpDownloader) Download(ctx context.Context, videoID string, destDir string) (string, error) {
	strategies := make([]Strategy[string], 0, len(formatCascade))
	for _, format := range formatCascade {
		strategies = append(strategies, Strategy[string]{
			Name: format,
			Run: func(ctx context.Context) (string, error) {
				return d.downloadFormat(ctx, videoID, destDir, format)
			},
		})
	}

	path, format, attempts, err := TryInOrder(ctx, strategies, func(name string, attemptErr error) {
		d.Logger.Debug("Download format failed", "video_id", videoID, "format", name, "error", attemptErr.Error())
	})
	if err != nil {
		// Terminal classifications surface as themselves, everything else
		// as an exhausted cascade.
		for _, sentinel := range []error{model.ErrBotDetectionBlocked, model.ErrAccessRestricted, model.ErrVideoUnavailable} {
			if containsSentinel(attempts, sentinel) {
				return "", helper.NewError("download video", sentinel)
			}
		}
		return "", helper.NewError("download video", fmt.Errorf("%w: %v", model.ErrDownloadExhausted, err))
	}

	d.Logger.Info("Downloaded video", "video_id", videoID, "format", format)
	return path, nil
}

func (d *YtDlpDownloader) downloadFormat(ctx context.Context, videoID string, destDir string, format string) (string, error) {
	run := func() (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, d.Timeout)
		defer cancel()

		var stderr bytes.Buffer
		cmd := exec.CommandContext(attemptCtx, d.Binary,
			"--format", format,
			"--output", filepath.Join(destDir, "%(id)s.%(ext)s"),
			"--no-playlist",
			"--quiet",
			"--no-warnings",
			watchURL(videoID),
		)
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return "", classifyDownloadError(stderr.String(), err)
		}

		path, err := findDownloadedFile(destDir, videoID)
		if err != nil {
			return "", err
		}
		return path, nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)

	var path string
	err := backoff.Retry(func() error {
		var runErr error
		path, runErr = run()
		if runErr == nil {
			return nil
		}
		if isTerminalDownloadError(runErr) {
			return backoff.Permanent(runErr)
		}
		return runErr
	}, policy)
	if err != nil {
		return "", err
	}

	return path, nil
}

// classifyDownloadError maps yt-dlp stderr output to the sentinel taxonomy.
func classifyDownloadError(stderr string, err error) error {
	message := strings.ToLower(stderr)

	switch {
	case strings.Contains(message, "not a bot"):
		return fmt.Errorf("%w: %v", model.ErrBotDetectionBlocked, firstLine(stderr))
	case strings.Contains(message, "private video"),
		strings.Contains(message, "members-only"),
		strings.Contains(message, "age-restricted"),
		strings.Contains(message, "sign in to confirm your age"):
		return fmt.Errorf("%w: %v", model.ErrAccessRestricted, firstLine(stderr))
	case strings.Contains(message, "video unavailable"),
		strings.Contains(message, "has been removed"),
		strings.Contains(message, "no longer available"):
		return fmt.Errorf("%w: %v", model.ErrVideoUnavailable, firstLine(stderr))
	case strings.Contains(message, "requested format is not available"),
		strings.Contains(message, "format is not available"):
		return fmt.Errorf("%w: %v", model.ErrFormatUnavailable, firstLine(stderr))
	}

	if stderr != "" {
		return fmt.Errorf("%v: %v", err, firstLine(stderr))
	}
	return err
}

// isTerminalDownloadError reports whether retrying the same format is
// pointless.
func isTerminalDownloadError(err error) bool {
	for _, sentinel := range []error{
		model.ErrBotDetectionBlocked,
		model.ErrAccessRestricted,
		model.ErrVideoUnavailable,
		model.ErrFormatUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func containsSentinel(attempts []AttemptError, sentinel error) bool {
	for _, attempt := range attempts {
		if errors.Is(attempt.Err, sentinel) {
			return true
		}
	}
	return false
}

func findDownloadedFile(destDir string, videoID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(destDir, videoID+".*"))
	if err != nil {
		return "", err
	}
	for _, match := range matches {
		if !strings.HasSuffix(match, ".part") {
			return match, nil
		}
	}
	return "", fmt.Errorf("downloaded file for %v not found in %v", videoID, destDir)
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// ScratchInfo describes the state of the scratch directory.
type ScratchInfo struct {
	Path      string `json:"path"`
	FileCount int    `json:"file_count"`
	TotalSize int64  `json:"total_size_bytes"`
}

// InspectScratch reports the files accumulated in the scratch directory.
func InspectScratch(dir string) (*ScratchInfo, error) {
	info := &ScratchInfo{Path: dir}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return info, nil
	} else if err != nil {
		return nil, helper.NewError("read scratch directory", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileInfo, err := entry.Info()
		if err != nil {
			continue
		}
		info.FileCount++
		info.TotalSize += fileInfo.Size()
	}

	return info, nil
}

// CleanupScratch removes media leftovers from the scratch directory.
func CleanupScratch(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	} else if err != nil {
		return 0, helper.NewError("read scratch directory", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}

	return removed, nil
}
