package acquire

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
)

var locatorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#/]+)`),
	regexp.MustCompile(`youtube\.com/v/([^&\n?#/]+)`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([^&\n?#/]+)`),
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ResolveLocator normalizes a video locator (watch URL, short URL, embed
// URL or a bare 11-character id) to the canonical video id. Returns
// model.ErrInvalidLocator when the input matches no known shape.
func ResolveLocator(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", helper.NewError("resolve locator", model.ErrInvalidLocator)
	}

	// A bare id needs no parsing.
	if videoIDPattern.MatchString(locator) {
		return locator, nil
	}

	for _, pattern := range locatorPatterns {
		if match := pattern.FindStringSubmatch(locator); match != nil {
			return match[1], nil
		}
	}

	// Fall back to URL parsing for unusual but valid query orders.
	parsed, err := url.Parse(locator)
	if err == nil {
		switch parsed.Hostname() {
		case "www.youtube.com", "youtube.com", "m.youtube.com":
			if id := parsed.Query().Get("v"); id != "" {
				return id, nil
			}
		case "youtu.be":
			if id := strings.TrimPrefix(parsed.Path, "/"); id != "" {
				return id, nil
			}
		}
	}

	return "", helper.NewError("resolve locator", fmt.Errorf("%w: %v", model.ErrInvalidLocator, locator))
}
