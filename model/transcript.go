package model

// Segment is a time-bounded piece of a transcript.
type Segment struct {
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
	Text  string  `json:"text"`
}

// Transcript is the full text spoken in a video, optionally with
// time-aligned segments (caption tracks and speech-to-text provide them,
// some sources only provide the flattened text).
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

// AcquisitionMethod identifies which strategy produced a transcript.
type AcquisitionMethod string

const (
	MethodLocalWhisper  AcquisitionMethod = "local_whisper"
	MethodTranscriptAPI AcquisitionMethod = "transcript_api"
)

// ProcessingMode selects the acquisition strategy requested by the caller.
// ModeLocal tries local download+transcription first and falls back to the
// captions API. ModeTranscriptAPI uses the captions API only, with no
// automatic fallback to the heavier local path.
type ProcessingMode string

const (
	ModeLocal         ProcessingMode = "local"
	ModeTranscriptAPI ProcessingMode = "transcript_api"
)

// AcquireOptions carries the caller-supplied hints for one acquisition.
type AcquireOptions struct {
	Mode      ProcessingMode `json:"mode"`
	Language  string         `json:"language,omitempty"`
	ModelSize string         `json:"model_size,omitempty"` // whisper model: tiny, base, small, medium, large
}

// DefaultAcquireOptions returns the default acquisition options.
func DefaultAcquireOptions() AcquireOptions {
	return AcquireOptions{
		Mode:      ModeLocal,
		ModelSize: "base",
	}
}

// AcquisitionResult is the terminal outcome of a successful acquisition.
type AcquisitionResult struct {
	VideoID    string            `json:"video_id"`
	Title      string            `json:"title"`
	Duration   float64           `json:"duration"`
	Transcript *Transcript       `json:"transcript"`
	Method     AcquisitionMethod `json:"processing_method"`
	// Diagnostics retains failure detail from strategies that were tried
	// and lost before the winning one, e.g. a bot-detection block on the
	// local path that forced the captions fallback.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// ProcessingAck is the immediate acknowledgment returned to the caller
// while chunking and indexing continue in the background.
type ProcessingAck struct {
	VideoID          string            `json:"video_id"`
	Title            string            `json:"title"`
	Duration         float64           `json:"duration"`
	TranscriptLength int               `json:"transcript_length"`
	Method           AcquisitionMethod `json:"processing_method"`
	Status           string            `json:"status"`
}
