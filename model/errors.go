package model

import "errors"

// Sentinel errors shared across the acquisition and retrieval packages.
// Callers match them with errors.Is; wrapping layers add operation context
// without losing the class.
var (
	// ErrInvalidLocator means the input could not be resolved to a video id.
	ErrInvalidLocator = errors.New("invalid video locator")
	// ErrVideoUnavailable means the host reports the video as gone or never
	// existing.
	ErrVideoUnavailable = errors.New("video unavailable")
	// ErrBotDetectionBlocked means the host refused the download because it
	// suspects automated access. Retrying locally is pointless; the captions
	// path may still succeed.
	ErrBotDetectionBlocked = errors.New("download blocked by bot detection")
	// ErrAccessRestricted covers private, members-only and age-restricted
	// videos.
	ErrAccessRestricted = errors.New("video access restricted")
	// ErrFormatUnavailable means one format selector of the cascade did not
	// match; the next selector should be tried.
	ErrFormatUnavailable = errors.New("requested format unavailable")
	// ErrDownloadExhausted means every format selector of the cascade failed.
	ErrDownloadExhausted = errors.New("all download formats exhausted")
	// ErrTranscriptionFailure means the media was downloaded but speech to
	// text did not produce a transcript.
	ErrTranscriptionFailure = errors.New("transcription failed")
	// ErrCaptionsUnavailable means the video has no caption track at all.
	ErrCaptionsUnavailable = errors.New("no caption track available")
	// ErrNoTranscript means every acquisition strategy failed for the video.
	ErrNoTranscript = errors.New("no transcript could be acquired")
	// ErrVideoNotProcessed means the requested video is not in the store.
	ErrVideoNotProcessed = errors.New("video not processed")
	// ErrNoRelevantContent means retrieval found nothing usable for the
	// question.
	ErrNoRelevantContent = errors.New("no relevant content found")
)
