// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import (
	"fmt"

	"github.com/llehouerou/lineup/internal/resource"
)

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Resource operations
	OpResourceLoad    Op = "load media"
	OpResourceReload  Op = "reload media"
	OpLicenseAcquire  Op = "acquire content license"
	OpTokenAuthorize  Op = "authorize media request"
	OpResourceResolve Op = "resolve media"

	// Queue operations
	OpQueueSet     Op = "update queue"
	OpQueueRestore Op = "restore queue"
	OpQueueSave    Op = "save queue"

	// Playback operations
	OpPlaybackStart Op = "start playback"
	OpPlaybackSeek  Op = "seek"

	// Tracking
	OpNowPlaying Op = "update now playing"
	OpScrobble   Op = "scrobble"

	// File operations
	OpFileLoad Op = "load file"

	// Initialization
	OpConfigLoad Op = "load configuration"
	OpInitialize Op = "initialize player"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}

// ForResource describes what a placeholder resource shows to the user.
// Playable resources have no message.
func ForResource(title string, res resource.Resource) string {
	switch res.Kind() {
	case resource.KindFailed:
		return FormatWith(OpResourceLoad, title, res.Err())
	case resource.KindLoading:
		if title == "" {
			return "Loading…"
		}
		return fmt.Sprintf("Loading '%s'…", title)
	default:
		return ""
	}
}
