package acquire

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
)

// State is the orchestrator's phase for one acquisition.
type State string

const (
	StateInit           State = "init"
	StateTryingPrimary  State = "trying_primary"
	StateTryingFallback State = "trying_fallback"
	StateResolved       State = "resolved"
	StateFailed         State = "failed"
)

// TranscriptAcquirer is the heavy acquisition path (download + speech to
// text), satisfied by LocalAcquirer.
type TranscriptAcquirer interface {
	Acquire(ctx context.Context, videoID string, options model.AcquireOptions) (*model.AcquisitionResult, error)
}

// TranscriptFetcher is the light acquisition path, satisfied by
// CaptionFetcher.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string, preferredLanguage string) (*model.Transcript, error)
}

// Prober resolves video metadata without downloading media.
type Prober interface {
	Probe(ctx context.Context, videoID string) (*model.VideoInfo, error)
}

// Orchestrator arbitrates between the local acquisition path and the
// captions service. Strategies run strictly one after another, never
// racing, so the heavy local path is not wasted once captions succeed
// and vice versa.
type Orchestrator struct {
	Local    TranscriptAcquirer
	Captions TranscriptFetcher
	Prober   Prober
	Logger   *slog.Logger
}

// NewOrchestrator creates a new acquisition orchestrator.
func NewOrchestrator(local TranscriptAcquirer, captions TranscriptFetcher, prober Prober, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		Local:    local,
		Captions: captions,
		Prober:   prober,
		Logger:   logger,
	}
}

// Acquire resolves a transcript for the video according to the requested
// mode. In local mode the local path runs first and the captions service is
// the fallback; in transcript_api mode only the captions service runs, with
// no fallback to the heavier path. The result records which strategy won
// and carries diagnostics from strategies that lost.
func (o *Orchestrator) Acquire(ctx context.Context, videoID string, options model.AcquireOptions) (*model.AcquisitionResult, error) {
	state := StateInit
	o.logState(videoID, state)

	strategies := o.strategiesFor(videoID, options)

	state = StateTryingPrimary
	o.logState(videoID, state)

	result, winner, attempts, err := TryInOrder(ctx, strategies, func(name string, attemptErr error) {
		o.Logger.Warn("Acquisition strategy failed", "video_id", videoID, "strategy", name, "error", attemptErr.Error())
		o.logState(videoID, StateTryingFallback)
	})
	if err != nil {
		o.logState(videoID, StateFailed)
		return nil, helper.NewError("acquire transcript", fmt.Errorf("%w: %v", model.ErrNoTranscript, err))
	}

	for _, attempt := range attempts {
		result.Diagnostics = append(result.Diagnostics, attempt.Error())
	}

	o.logState(videoID, StateResolved)
	o.Logger.Info("Transcript acquired", "video_id", videoID, "method", string(result.Method), "strategy", winner)

	return result, nil
}

func (o *Orchestrator) strategiesFor(videoID string, options model.AcquireOptions) []Strategy[*model.AcquisitionResult] {
	local := Strategy[*model.AcquisitionResult]{
		Name: "local_whisper",
		Run: func(ctx context.Context) (*model.AcquisitionResult, error) {
			return o.Local.Acquire(ctx, videoID, options)
		},
	}

	captions := Strategy[*model.AcquisitionResult]{
		Name: "transcript_api",
		Run: func(ctx context.Context) (*model.AcquisitionResult, error) {
			return o.acquireFromCaptions(ctx, videoID, options)
		},
	}

	if options.Mode == model.ModeTranscriptAPI {
		return []Strategy[*model.AcquisitionResult]{captions}
	}
	return []Strategy[*model.AcquisitionResult]{local, captions}
}

// acquireFromCaptions fetches captions and pairs them with probed metadata.
// A failed probe is tolerated, a transcript with an unknown title is still
// useful.
func (o *Orchestrator) acquireFromCaptions(ctx context.Context, videoID string, options model.AcquireOptions) (*model.AcquisitionResult, error) {
	transcript, err := o.Captions.Fetch(ctx, videoID, options.Language)
	if err != nil {
		return nil, err
	}
	if transcript == nil {
		return nil, helper.NewError("fetch captions", model.ErrCaptionsUnavailable)
	}

	result := &model.AcquisitionResult{
		VideoID:    videoID,
		Transcript: transcript,
		Method:     model.MethodTranscriptAPI,
	}

	if o.Prober != nil {
		info, probeErr := o.Prober.Probe(ctx, videoID)
		if probeErr != nil {
			o.Logger.Warn("Metadata probe failed", "video_id", videoID, "error", probeErr.Error())
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("probe: %v", probeErr))
		} else {
			result.Title = info.Title
			result.Duration = info.Duration
		}
	}

	return result, nil
}

func (o *Orchestrator) logState(videoID string, state State) {
	o.Logger.Debug("Acquisition state", "video_id", videoID, "state", string(state))
}
