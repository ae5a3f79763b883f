package hls

import (
	"context"
	"fmt"
	"sync"
)

const tsPacketSize = 188

// Segment is one media chunk handed to a surface.
type Segment struct {
	Seq      uint64
	URI      string
	Duration float64
	Data     []byte
}

// Surface is the presentation target of an attachment.
type Surface interface {
	// Append queues a segment for decoding. ErrMediaDecode (wrapped) reports
	// undecodable data.
	Append(ctx context.Context, seg Segment) error
	// Play starts playback. gesture is true when a user asked for it.
	// ErrAutoplayBlocked reports a refused automatic start.
	Play(gesture bool) error
	Pause()
	// ResetDecoder drops decoder state after a media error.
	ResetDecoder()
}

// SurfaceFactory builds the surface for a new attachment.
type SurfaceFactory func(sessionID string) Surface

// ProbeSurface is a headless surface that validates container framing. It
// accepts MPEG-TS (sync byte every 188 bytes) and fragmented MP4.
type ProbeSurface struct {
	mu       sync.Mutex
	autoplay bool
	playing  bool
	broken   bool
	appended int
	bytes    int
	resets   int
}

// NewProbeSurface returns a surface. With autoplay false, Play(false) is
// refused with ErrAutoplayBlocked.
func NewProbeSurface(autoplay bool) *ProbeSurface {
	return &ProbeSurface{autoplay: autoplay}
}

// ProbeSurfaceFactory returns a factory producing ProbeSurfaces.
func ProbeSurfaceFactory(autoplay bool) SurfaceFactory {
	return func(string) Surface { return NewProbeSurface(autoplay) }
}

func (s *ProbeSurface) Append(ctx context.Context, seg Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return fmt.Errorf("segment %d: decoder needs reset: %w", seg.Seq, ErrMediaDecode)
	}
	if err := validateContainer(seg.Data); err != nil {
		s.broken = true
		return fmt.Errorf("segment %d: %w", seg.Seq, err)
	}
	s.appended++
	s.bytes += len(seg.Data)
	return nil
}

func (s *ProbeSurface) Play(gesture bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !gesture && !s.autoplay {
		return ErrAutoplayBlocked
	}
	s.playing = true
	return nil
}

func (s *ProbeSurface) Pause() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
}

func (s *ProbeSurface) ResetDecoder() {
	s.mu.Lock()
	s.broken = false
	s.resets++
	s.mu.Unlock()
}

// Playing reports whether playback is running.
func (s *ProbeSurface) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Appended returns the number of accepted segments.
func (s *ProbeSurface) Appended() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appended
}

// Resets returns how often the decoder was reset.
func (s *ProbeSurface) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

var mp4Boxes = map[string]struct{}{
	"ftyp": {}, "styp": {}, "moof": {}, "moov": {}, "sidx": {},
}

func validateContainer(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty segment: %w", ErrMediaDecode)
	}
	if data[0] == 0x47 {
		if len(data)%tsPacketSize != 0 {
			return fmt.Errorf("truncated transport stream (%d bytes): %w", len(data), ErrMediaDecode)
		}
		for off := 0; off < len(data); off += tsPacketSize {
			if data[off] != 0x47 {
				return fmt.Errorf("lost sync at offset %d: %w", off, ErrMediaDecode)
			}
		}
		return nil
	}
	if len(data) >= 8 {
		if _, ok := mp4Boxes[string(data[4:8])]; ok {
			return nil
		}
	}
	return fmt.Errorf("unknown container: %w", ErrMediaDecode)
}
