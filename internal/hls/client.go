package hls

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/livesitter/livesitter/internal/domain/session/ports"
	"github.com/livesitter/livesitter/internal/log"
	"github.com/livesitter/livesitter/internal/metrics"
)

const (
	eventBuffer = 16
	// defaultReload is used when a live playlist advertises no target duration.
	defaultReload = time.Second
)

// Client creates attachments that pull HLS over HTTP.
type Client struct {
	http       *http.Client
	policy     RetryPolicy
	newSurface SurfaceFactory
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the fetch budgets.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithSurfaceFactory sets the presentation surface for new attachments.
func WithSurfaceFactory(f SurfaceFactory) Option {
	return func(c *Client) { c.newSurface = f }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		http:       httpClient,
		policy:     DefaultRetryPolicy(),
		newSurface: ProbeSurfaceFactory(true),
		logger:     log.WithComponent("hls"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach implements ports.Attacher.
func (c *Client) Attach(ctx context.Context, sessionID, manifest string) (ports.Attachment, error) {
	h, err := c.Open(ctx, sessionID, manifest)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Open starts pulling manifest for sessionID. The attachment outlives ctx's
// cancellation but keeps its values; only Detach stops it.
func (c *Client) Open(ctx context.Context, sessionID, manifest string) (*Handle, error) {
	u, err := url.Parse(manifest)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidManifest, manifest)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{
		sessionID: sessionID,
		manifest:  u,
		http:      c.http,
		policy:    c.policy,
		surface:   c.newSurface(sessionID),
		logger:    c.logger.With().Str(log.FieldSessionID, sessionID).Logger(),
		events:    make(chan ports.Event, eventBuffer),
		recover:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	go h.run(runCtx)
	return h, nil
}

// Handle is a live attachment. It owns one surface and one fetch loop.
type Handle struct {
	sessionID string
	manifest  *url.URL
	http      *http.Client
	policy    RetryPolicy
	surface   Surface
	logger    zerolog.Logger

	events  chan ports.Event
	recover chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
	once    sync.Once

	// owned by run
	nextSeq  uint64
	seenSeq  uint64
	seen     bool
	position float64
	total    float64
}

func (h *Handle) Events() <-chan ports.Event { return h.events }

// Play requests playback on behalf of a user gesture.
func (h *Handle) Play() error { return h.surface.Play(true) }

func (h *Handle) Pause() { h.surface.Pause() }

func (h *Handle) RecoverMedia() {
	select {
	case h.recover <- struct{}{}:
	default:
	}
}

// Detach stops the fetch loop and waits for it to exit.
func (h *Handle) Detach() {
	h.once.Do(h.cancel)
	<-h.done
}

// Surface returns the presentation surface of this attachment.
func (h *Handle) Surface() Surface { return h.surface }

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)
	defer close(h.events)

	mediaURL, body, err := h.loadInitial(ctx)
	if err != nil {
		h.failAndWait(ctx, err)
		return
	}

	blocked := false
	if err := h.surface.Play(false); err != nil {
		if !errors.Is(err, ErrAutoplayBlocked) {
			h.failAndWait(ctx, &ports.PlaybackError{Category: ports.CategoryOther, Fatal: true, Details: "play", Err: err})
			return
		}
		blocked = true
	}
	h.logger.Info().Str(log.FieldEvent, "hls.ready").Bool("autoplay_blocked", blocked).Msg("manifest loaded")
	if !h.emit(ctx, ports.Event{Kind: ports.EventReady, AutoplayBlocked: blocked}) {
		return
	}

	for {
		entries, ended, target, perr := h.mediaPlaylist(body)
		if perr != nil {
			h.failAndWait(ctx, perr)
			return
		}
		progressed, err := h.feed(ctx, mediaURL, entries)
		if err != nil {
			h.failAndWait(ctx, err)
			return
		}
		if ended {
			<-ctx.Done()
			return
		}

		wait := target
		if !progressed {
			wait /= 2
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}

		body, err = h.fetch(ctx, KindLevel, mediaURL.String())
		if err != nil {
			h.failAndWait(ctx, err)
			return
		}
	}
}

// loadInitial fetches the manifest and, for a master playlist, the selected
// variant. It returns the media playlist URL and body.
func (h *Handle) loadInitial(ctx context.Context) (*url.URL, []byte, error) {
	body, err := h.fetch(ctx, KindManifest, h.manifest.String())
	if err != nil {
		return nil, nil, err
	}
	master, _, err := parsePlaylist(body)
	if err != nil {
		return nil, nil, manifestParseError(err)
	}
	if master == nil {
		return h.manifest, body, nil
	}

	variant, err := selectVariant(master)
	if err != nil {
		return nil, nil, &ports.PlaybackError{Category: ports.CategoryOther, Fatal: true, Details: "variant selection", Err: err}
	}
	mediaURL, err := resolve(h.manifest, variant.URI)
	if err != nil {
		return nil, nil, manifestParseError(err)
	}
	h.logger.Debug().
		Str(log.FieldEvent, "hls.variant_selected").
		Uint32("bandwidth", variant.Bandwidth).
		Str(log.FieldURL, mediaURL.String()).
		Msg("variant selected")
	body, err = h.fetch(ctx, KindLevel, mediaURL.String())
	if err != nil {
		return nil, nil, err
	}
	return mediaURL, body, nil
}

func (h *Handle) mediaPlaylist(body []byte) ([]playlistEntry, bool, time.Duration, error) {
	_, media, err := parsePlaylist(body)
	if err != nil {
		return nil, false, 0, manifestParseError(err)
	}
	if media == nil {
		return nil, false, 0, manifestParseError(errors.New("variant is not a media playlist"))
	}
	target := time.Duration(float64(media.TargetDuration) * float64(time.Second))
	if target <= 0 {
		target = defaultReload
	}
	return mediaEntries(media), media.Closed, target, nil
}

// feed appends every not yet fed segment in order. It reports whether any
// new segment appeared.
func (h *Handle) feed(ctx context.Context, base *url.URL, entries []playlistEntry) (bool, error) {
	progressed := false
	for _, e := range entries {
		if h.seen && e.seq < h.seenSeq {
			continue
		}
		progressed = true
		h.seen = true
		h.seenSeq = e.seq + 1
		h.total += e.duration
	}

	for _, e := range entries {
		if e.seq < h.nextSeq {
			continue
		}
		segURL, err := resolve(base, e.uri)
		if err != nil {
			return progressed, manifestParseError(err)
		}
		data, err := h.fetch(ctx, KindSegment, segURL.String())
		if err != nil {
			return progressed, err
		}

		seg := Segment{Seq: e.seq, URI: segURL.String(), Duration: e.duration, Data: data}
		if err := h.surface.Append(ctx, seg); err != nil {
			if ctx.Err() != nil {
				return progressed, ctx.Err()
			}
			if !h.awaitMediaRecovery(ctx, seg, err) {
				return progressed, ctx.Err()
			}
			h.nextSeq = e.seq + 1
			continue
		}
		metrics.IncSegmentAppended()
		h.nextSeq = e.seq + 1
		h.position += e.duration
		if !h.emit(ctx, ports.Event{Kind: ports.EventProgress, Time: h.position, Duration: h.total}) {
			return progressed, ctx.Err()
		}
	}
	return progressed, nil
}

// awaitMediaRecovery reports a fatal media error and blocks until the owner
// asks for a decoder reset or detaches. It returns false on detach.
func (h *Handle) awaitMediaRecovery(ctx context.Context, seg Segment, cause error) bool {
	metrics.IncMediaDecodeError()
	h.logger.Warn().
		Str(log.FieldEvent, "hls.media_error").
		Uint64(log.FieldSequence, seg.Seq).
		Err(cause).
		Msg("surface rejected segment")
	perr := &ports.PlaybackError{Category: ports.CategoryMedia, Fatal: true, Details: "bufferAppendError", Err: cause}
	if !h.emit(ctx, ports.Event{Kind: ports.EventError, Err: perr}) {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-h.recover:
	}
	h.surface.ResetDecoder()
	h.logger.Info().
		Str(log.FieldEvent, "hls.media_recovered").
		Uint64(log.FieldSequence, seg.Seq).
		Msg("decoder reset, skipping segment")
	return true
}

// failAndWait reports err as fatal and parks until detach. A cancelled
// context is not a failure.
func (h *Handle) failAndWait(ctx context.Context, err error) {
	if ctx.Err() != nil || isCanceled(err) {
		return
	}
	var perr *ports.PlaybackError
	if !errors.As(err, &perr) {
		perr = &ports.PlaybackError{Category: ports.CategoryNetwork, Fatal: true, Details: "fetch", Err: err}
	}
	h.logger.Error().
		Str(log.FieldEvent, "hls.fatal").
		Str(log.FieldCategory, string(perr.Category)).
		Err(err).
		Msg("attachment failed")
	if !h.emit(ctx, ports.Event{Kind: ports.EventError, Err: perr}) {
		return
	}
	<-ctx.Done()
}

func (h *Handle) emit(ctx context.Context, ev ports.Event) bool {
	select {
	case h.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func manifestParseError(err error) *ports.PlaybackError {
	return &ports.PlaybackError{Category: ports.CategoryNetwork, Fatal: true, Details: "manifestParsingError", Err: err}
}
