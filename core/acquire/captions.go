package acquire

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
)

// languagePriorities is the preferred caption language order. Each group is
// tried as a whole before moving to the next; within a group the first
// available track wins. When no group matches, the first available track of
// any language is accepted.
var languagePriorities = [][]string{
	{"vi", "vi-VN"},
	{"en", "en-US", "en-GB", "en-CA", "en-AU"},
	{"zh", "zh-CN", "zh-TW"},
	{"ja", "ja-JP"},
	{"ko", "ko-KR"},
	{"es", "es-ES"},
	{"fr", "fr-FR"},
	{"de", "de-DE"},
	{"it", "it-IT"},
	{"pt", "pt-BR", "pt-PT"},
	{"ru", "ru-RU"},
}

// captionTrack is one entry of the watch page's captionTracks JSON.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind,omitempty"`
}

// timedText is the XML payload of a caption track.
type timedText struct {
	XMLName xml.Name       `xml:"transcript"`
	Texts   []timedTextCue `xml:"text"`
}

type timedTextCue struct {
	Start    float64 `xml:"start,attr"`
	Duration float64 `xml:"dur,attr"`
	Body     string  `xml:",chardata"`
}

// CaptionFetcher retrieves transcripts from the captions service without
// touching the media itself. A nil transcript with a nil error is a benign
// terminal outcome: the video exists but has no usable captions (disabled,
// none published, or malformed payload). Errors are reserved for transport
// failures where retrying or falling back makes sense.
type CaptionFetcher struct {
	// BaseURL of the video host, overridable for tests.
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

// NewCaptionFetcher creates a caption fetcher with the given per-attempt
// timeout.
func NewCaptionFetcher(timeout time.Duration, logger *slog.Logger) *CaptionFetcher {
	return &CaptionFetcher{
		BaseURL: "https://www.youtube.com",
		Client:  &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

// Fetch retrieves the best available caption track for the video. The
// preferredLanguage, when non-empty, is tried before the built-in priority
// groups.
func (f *CaptionFetcher) Fetch(ctx context.Context, videoID string, preferredLanguage string) (*model.Transcript, error) {
	tracks, err := f.listTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		f.Logger.Info("No caption tracks available", "video_id", videoID)
		return nil, nil
	}

	track := pickTrack(tracks, preferredLanguage)

	transcript, err := f.fetchTrack(ctx, track)
	if err != nil {
		return nil, err
	}
	if transcript == nil {
		f.Logger.Warn("Caption track payload unusable", "video_id", videoID, "language", track.LanguageCode)
		return nil, nil
	}

	f.Logger.Info("Fetched captions", "video_id", videoID, "language", track.LanguageCode, "length", len(transcript.Text))
	return transcript, nil
}

// Available reports whether the video has at least one caption track, and
// which languages are published.
func (f *CaptionFetcher) Available(ctx context.Context, videoID string) (bool, []string, error) {
	tracks, err := f.listTracks(ctx, videoID)
	if err != nil {
		return false, nil, err
	}

	languages := make([]string, 0, len(tracks))
	for _, track := range tracks {
		languages = append(languages, track.LanguageCode)
	}
	return len(tracks) > 0, languages, nil
}

// listTracks fetches the watch page and extracts the captionTracks list.
// An unparseable page means no captions, not a transport failure.
func (f *CaptionFetcher) listTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	pageURL := fmt.Sprintf("%v/watch?v=%v", f.BaseURL, videoID)
	body, err := f.get(ctx, pageURL)
	if err != nil {
		return nil, helper.NewError("fetch watch page", err)
	}

	raw, ok := extractCaptionTracksJSON(body)
	if !ok {
		return nil, nil
	}

	tracks := []captionTrack{}
	if err := json.Unmarshal([]byte(raw), &tracks); err != nil {
		f.Logger.Warn("Malformed captionTracks JSON", "video_id", videoID)
		return nil, nil
	}

	return tracks, nil
}

func (f *CaptionFetcher) fetchTrack(ctx context.Context, track captionTrack) (*model.Transcript, error) {
	trackURL := track.BaseURL
	if strings.HasPrefix(trackURL, "/") {
		trackURL = f.BaseURL + trackURL
	}

	body, err := f.get(ctx, trackURL)
	if err != nil {
		return nil, helper.NewError("fetch caption track", err)
	}

	parsed := timedText{}
	if err := xml.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, nil
	}
	if len(parsed.Texts) == 0 {
		return nil, nil
	}

	segments := make([]model.Segment, 0, len(parsed.Texts))
	parts := make([]string, 0, len(parsed.Texts))
	for _, cue := range parsed.Texts {
		text := strings.TrimSpace(html.UnescapeString(cue.Body))
		if text == "" {
			continue
		}
		segments = append(segments, model.Segment{
			Start: cue.Start,
			End:   cue.Start + cue.Duration,
			Text:  text,
		})
		parts = append(parts, text)
	}
	if len(parts) == 0 {
		return nil, nil
	}

	return &model.Transcript{
		Text:     strings.Join(parts, " "),
		Language: track.LanguageCode,
		Segments: segments,
	}, nil
}

func (f *CaptionFetcher) get(ctx context.Context, rawURL string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	request.Header.Set("Accept-Language", "en-us,en;q=0.5")

	response, err := f.Client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %v", response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// pickTrack selects the best track: the preferred language first, then the
// priority groups, then whatever is available.
func pickTrack(tracks []captionTrack, preferredLanguage string) captionTrack {
	if preferredLanguage != "" {
		for _, track := range tracks {
			if strings.EqualFold(track.LanguageCode, preferredLanguage) {
				return track
			}
		}
	}

	for _, group := range languagePriorities {
		for _, language := range group {
			for _, track := range tracks {
				if strings.EqualFold(track.LanguageCode, language) {
					return track
				}
			}
		}
	}

	return tracks[0]
}

// extractCaptionTracksJSON pulls the captionTracks array out of the watch
// page HTML. The array is embedded in a larger JSON blob, so the end is
// found by bracket counting.
func extractCaptionTracksJSON(page string) (string, bool) {
	const marker = `"captionTracks":`
	start := strings.Index(page, marker)
	if start < 0 {
		return "", false
	}
	start += len(marker)

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(page); i++ {
		c := page[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return page[start : i+1], true
			}
		}
	}

	return "", false
}
