package acquire

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/siherrmann/vidrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDownloadError(t *testing.T) {
	base := fmt.Errorf("exit status 1")

	cases := []struct {
		name   string
		stderr string
		want   error
	}{
		{"Bot detection", "ERROR: Sign in to confirm you're not a bot", model.ErrBotDetectionBlocked},
		{"Bot detection alternate wording", "ERROR: confirm that you are not a bot to continue", model.ErrBotDetectionBlocked},
		{"Private video", "ERROR: Private video. Sign in if you've been granted access", model.ErrAccessRestricted},
		{"Members only", "ERROR: Join this channel to get access to members-only content", model.ErrAccessRestricted},
		{"Age restricted", "ERROR: Sign in to confirm your age", model.ErrAccessRestricted},
		{"Video unavailable", "ERROR: Video unavailable", model.ErrVideoUnavailable},
		{"Video removed", "ERROR: This video has been removed by the uploader", model.ErrVideoUnavailable},
		{"Format unavailable", "ERROR: Requested format is not available", model.ErrFormatUnavailable},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := classifyDownloadError(c.stderr, base)
			assert.ErrorIs(t, err, c.want, "Expected %q to classify as %v", c.stderr, c.want)
		})
	}

	t.Run("Unknown stderr stays transient", func(t *testing.T) {
		err := classifyDownloadError("ERROR: connection reset by peer", base)
		assert.False(t, isTerminalDownloadError(err), "Expected unknown errors to be retryable")
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("Empty stderr returns the original error", func(t *testing.T) {
		err := classifyDownloadError("", base)
		assert.Equal(t, base, err)
	})
}

func TestIsTerminalDownloadError(t *testing.T) {
	t.Run("Sentinels are terminal", func(t *testing.T) {
		for _, sentinel := range []error{
			model.ErrBotDetectionBlocked,
			model.ErrAccessRestricted,
			model.ErrVideoUnavailable,
			model.ErrFormatUnavailable,
		} {
			assert.True(t, isTerminalDownloadError(fmt.Errorf("wrapped: %w", sentinel)))
		}
	})

	t.Run("Other errors are not terminal", func(t *testing.T) {
		assert.False(t, isTerminalDownloadError(fmt.Errorf("timeout")))
	})
}

func TestFindDownloadedFile(t *testing.T) {
	t.Run("Finds the media file and skips partial downloads", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "dQw4w9WgXcQ.mp4.part"), []byte("partial"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "dQw4w9WgXcQ.mp4"), []byte("media"), 0644))

		path, err := findDownloadedFile(dir, "dQw4w9WgXcQ")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "dQw4w9WgXcQ.mp4"), path)
	})

	t.Run("Missing file errors", func(t *testing.T) {
		_, err := findDownloadedFile(t.TempDir(), "dQw4w9WgXcQ")
		assert.Error(t, err)
	})
}

func TestScratchInspection(t *testing.T) {
	t.Run("InspectScratch counts files and sizes", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("12345"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mp3"), []byte("123"), 0644))

		info, err := InspectScratch(dir)
		require.NoError(t, err)
		assert.Equal(t, 2, info.FileCount)
		assert.Equal(t, int64(8), info.TotalSize)
	})

	t.Run("InspectScratch on missing directory is empty", func(t *testing.T) {
		info, err := InspectScratch(filepath.Join(t.TempDir(), "missing"))
		require.NoError(t, err)
		assert.Equal(t, 0, info.FileCount)
	})

	t.Run("CleanupScratch removes files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("12345"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mp3"), []byte("123"), 0644))

		removed, err := CleanupScratch(dir)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		info, err := InspectScratch(dir)
		require.NoError(t, err)
		assert.Equal(t, 0, info.FileCount)
	})
}
