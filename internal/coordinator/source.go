package coordinator

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidSource   = errors.New("invalid source locator")
	ErrInvalidStreamID = errors.New("invalid stream id")
)

var streamIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateSourceLocator accepts rtsp:// URLs with a host, file:// URLs and
// absolute paths.
func ValidateSourceLocator(source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return fmt.Errorf("%w: RTSP URL is required", ErrInvalidSource)
	}
	if strings.HasPrefix(source, "file://") || strings.HasPrefix(source, "/") {
		return nil
	}
	u, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("%w: invalid URL format", ErrInvalidSource)
	}
	if u.Scheme != "rtsp" {
		return fmt.Errorf("%w: URL must use RTSP protocol or file:// for local files", ErrInvalidSource)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: URL must contain a network location", ErrInvalidSource)
	}
	return nil
}

// ValidateStreamID rejects ids that cannot be used as a path segment.
func ValidateStreamID(id string) error {
	if !streamIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidStreamID, id)
	}
	return nil
}

// GenerateStreamID returns stream_<unix-ms>_<9 random chars>.
func GenerateStreamID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("stream_%d_%s", now.UnixMilli(), random)
}

// ManifestLocator derives the playlist URL of a stream.
func ManifestLocator(base, streamID string) string {
	return strings.TrimRight(base, "/") + "/streams/" + url.PathEscape(streamID) + "/playlist.m3u8"
}
