// Package hls pulls an HLS stream (manifest, variant playlist, segments) and
// feeds it to a presentation surface, reporting ready/error/progress events.
package hls

import (
	"errors"
	"fmt"

	"github.com/livesitter/livesitter/internal/domain/session/ports"
)

var (
	// ErrAutoplayBlocked is returned by a surface that refuses to start
	// playback without a user gesture.
	ErrAutoplayBlocked = ports.ErrAutoplayBlocked
	// ErrMediaDecode is returned by a surface that cannot decode a segment.
	ErrMediaDecode = errors.New("media decode error")
	// ErrNoVariants means a master playlist carried no playable variant.
	ErrNoVariants = errors.New("master playlist has no variants")
	// ErrInvalidManifest means the manifest locator is not an http(s) URL.
	ErrInvalidManifest = errors.New("invalid manifest locator")
)

// fetchError is returned once a retry budget is exhausted.
type fetchError struct {
	kind     string
	url      string
	attempts int
	err      error
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("%s fetch failed after %d attempts (%s): %v", e.kind, e.attempts, e.url, e.err)
}

func (e *fetchError) Unwrap() error { return e.err }
