package overlay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/livesitter/livesitter/internal/log"
	"github.com/livesitter/livesitter/internal/metrics"
)

// ErrNotFound is returned for overlay ids the board does not hold.
var ErrNotFound = errors.New("overlay not found")

// Store is the persistent overlay collection. The backend client implements it.
type Store interface {
	ListOverlays(ctx context.Context) ([]Overlay, error)
	CreateOverlay(ctx context.Context, req CreateRequest) (string, error)
	UpdateOverlay(ctx context.Context, id string, req UpdateRequest) error
	DeleteOverlay(ctx context.Context, id string) error
}

// Prober checks whether an image reference can be loaded.
type Prober interface {
	Probe(ctx context.Context, ref string) error
}

// Errors holds one message per concern: the overlay list as a whole and each
// overlay's image.
type Errors struct {
	List   string            `json:"list,omitempty"`
	Images map[string]string `json:"images,omitempty"`
}

// Board keeps the locally known overlay set in sync with the Store. Every
// mutation is followed by a full refetch; concurrent edits are last-write-wins.
type Board struct {
	store  Store
	prober Prober
	logger zerolog.Logger

	probeCtx    context.Context
	probeCancel context.CancelFunc
	probes      sync.WaitGroup

	mu        sync.RWMutex
	issued    uint64 // last refetch generation started
	applied   uint64 // generation of the installed list
	overlays  []Overlay
	listErr   string
	failures  FailureSet
	imageErrs map[string]string
	probed    map[string]string
}

// BoardOption customises a Board.
type BoardOption func(*Board)

// WithProber enables background image probing after each refetch.
func WithProber(p Prober) BoardOption {
	return func(b *Board) { b.prober = p }
}

// WithLogger overrides the board logger.
func WithLogger(l zerolog.Logger) BoardOption {
	return func(b *Board) { b.logger = l }
}

// NewBoard creates an empty board. Call Refresh or Run to load it and Close
// to stop outstanding probes.
func NewBoard(store Store, opts ...BoardOption) *Board {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Board{
		store:       store,
		logger:      log.WithComponent("overlay"),
		probeCtx:    ctx,
		probeCancel: cancel,
		failures:    FailureSet{},
		imageErrs:   map[string]string{},
		probed:      map[string]string{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run refreshes immediately and then every interval until ctx is done. A
// non-positive interval performs the initial refresh only.
func (b *Board) Run(ctx context.Context, interval time.Duration) {
	if err := b.Refresh(ctx); err != nil {
		b.logger.Warn().Err(err).Str(log.FieldEvent, "overlay.refresh_failed").Msg("initial overlay fetch failed")
	}
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Refresh(ctx); err != nil {
				b.logger.Warn().Err(err).Str(log.FieldEvent, "overlay.refresh_failed").Msg("overlay refetch failed")
			}
		}
	}
}

// Refresh replaces the local set with the store's current contents.
func (b *Board) Refresh(ctx context.Context) error {
	b.clearListError()
	return b.refetch(ctx)
}

// refetch installs the store's list unless a refetch started later has
// already installed a newer one.
func (b *Board) refetch(ctx context.Context) error {
	b.mu.Lock()
	b.issued++
	gen := b.issued
	b.mu.Unlock()

	list, err := b.store.ListOverlays(ctx)
	metrics.RecordOverlayRefetch(err == nil)

	b.mu.Lock()
	if gen < b.applied {
		b.mu.Unlock()
		b.logger.Debug().Str(log.FieldEvent, "overlay.stale_refetch").Msg("dropped out-of-order overlay list")
		return err
	}
	if err != nil {
		b.listErr = err.Error()
		b.mu.Unlock()
		return err
	}
	b.applied = gen
	b.overlays = make([]Overlay, len(list))
	for i, o := range list {
		b.overlays[i] = o.Clone()
	}
	toProbe := b.pruneLocked()
	b.mu.Unlock()

	for _, o := range toProbe {
		b.probe(o)
	}
	return nil
}

// pruneLocked drops image state for overlays that vanished or changed
// content and returns the image overlays that still need a probe.
func (b *Board) pruneLocked() []Overlay {
	current := make(map[string]Overlay, len(b.overlays))
	for _, o := range b.overlays {
		current[o.ID] = o
	}
	for id, content := range b.failures {
		if o, ok := current[id]; !ok || o.Content != content {
			delete(b.failures, id)
			delete(b.imageErrs, id)
		}
	}
	for id, content := range b.probed {
		if o, ok := current[id]; !ok || o.Content != content {
			delete(b.probed, id)
		}
	}

	if b.prober == nil {
		return nil
	}
	var pending []Overlay
	for _, o := range b.overlays {
		if o.Kind != KindImage || !o.IsActive {
			continue
		}
		if _, done := b.probed[o.ID]; done {
			continue
		}
		b.probed[o.ID] = o.Content
		pending = append(pending, o)
	}
	return pending
}

func (b *Board) probe(o Overlay) {
	b.probes.Add(1)
	go func() {
		defer b.probes.Done()
		err := b.prober.Probe(b.probeCtx, o.Content)
		if b.probeCtx.Err() != nil {
			return
		}
		metrics.RecordImageProbe(err == nil)
		if err != nil {
			_ = b.MarkImageFailed(o.ID, o.Content, err.Error())
			return
		}
		b.clearImageFailure(o.ID, o.Content)
	}()
}

// Create validates req, stores it and refetches. Validation failures never
// reach the store.
func (b *Board) Create(ctx context.Context, req CreateRequest) (string, error) {
	b.clearListError()
	if err := req.Normalize(); err != nil {
		return "", err
	}
	id, err := b.store.CreateOverlay(ctx, req)
	if err != nil {
		b.setListError(err)
		return "", fmt.Errorf("create overlay: %w", err)
	}
	b.logger.Info().Str(log.FieldEvent, "overlay.created").Str(log.FieldOverlayID, id).Str("name", req.Name).Msg("overlay created")
	b.refetchAfterMutation(ctx)
	return id, nil
}

// Update validates req, applies it and refetches.
func (b *Board) Update(ctx context.Context, id string, req UpdateRequest) error {
	b.clearListError()
	if err := req.Normalize(); err != nil {
		return err
	}
	if err := b.store.UpdateOverlay(ctx, id, req); err != nil {
		b.setListError(err)
		return fmt.Errorf("update overlay %s: %w", id, err)
	}
	b.logger.Info().Str(log.FieldEvent, "overlay.updated").Str(log.FieldOverlayID, id).Msg("overlay updated")
	b.refetchAfterMutation(ctx)
	return nil
}

// Delete removes the overlay and refetches.
func (b *Board) Delete(ctx context.Context, id string) error {
	b.clearListError()
	if err := b.store.DeleteOverlay(ctx, id); err != nil {
		b.setListError(err)
		return fmt.Errorf("delete overlay %s: %w", id, err)
	}
	b.logger.Info().Str(log.FieldEvent, "overlay.deleted").Str(log.FieldOverlayID, id).Msg("overlay deleted")
	b.refetchAfterMutation(ctx)
	return nil
}

func (b *Board) refetchAfterMutation(ctx context.Context) {
	if err := b.refetch(ctx); err != nil {
		b.logger.Warn().Err(err).Str(log.FieldEvent, "overlay.refresh_failed").Msg("refetch after mutation failed")
	}
}

// MarkImageFailed hides the overlay's box until its content changes. content
// must match the overlay's current image reference.
func (b *Board) MarkImageFailed(id, content, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.findLocked(id)
	if !ok {
		return ErrNotFound
	}
	if o.Kind != KindImage {
		return &ValidationError{Field: "type", Reason: "only image overlays can fail to load"}
	}
	if content == "" {
		content = o.Content
	}
	if content != o.Content {
		return nil
	}
	if reason == "" {
		reason = "image failed to load"
	}
	b.failures[id] = content
	b.imageErrs[id] = reason
	b.logger.Warn().Str(log.FieldEvent, "overlay.image_failed").Str(log.FieldOverlayID, id).Str(log.FieldReason, reason).Msg("overlay image failed to load")
	return nil
}

func (b *Board) clearImageFailure(id, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures[id] == content {
		delete(b.failures, id)
		delete(b.imageErrs, id)
	}
}

func (b *Board) findLocked(id string) (Overlay, bool) {
	for _, o := range b.overlays {
		if o.ID == id {
			return o, true
		}
	}
	return Overlay{}, false
}

func (b *Board) clearListError() {
	b.mu.Lock()
	b.listErr = ""
	b.mu.Unlock()
}

func (b *Board) setListError(err error) {
	b.mu.Lock()
	b.listErr = err.Error()
	b.mu.Unlock()
}

// Get returns a copy of the overlay with the given id.
func (b *Board) Get(id string) (Overlay, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.findLocked(id)
	if !ok {
		return Overlay{}, false
	}
	return o.Clone(), true
}

// Overlays returns a copy of the current set in store order.
func (b *Board) Overlays() []Overlay {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Overlay, len(b.overlays))
	for i, o := range b.overlays {
		out[i] = o.Clone()
	}
	return out
}

// Errors returns the current per-concern messages.
func (b *Board) Errors() Errors {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e := Errors{List: b.listErr}
	if len(b.imageErrs) > 0 {
		e.Images = make(map[string]string, len(b.imageErrs))
		for id, msg := range b.imageErrs {
			e.Images[id] = msg
		}
	}
	return e
}

// Render composes the current set for vp.
func (b *Board) Render(vp Viewport) []RenderItem {
	b.mu.RLock()
	overlays := b.overlays
	failed := make(FailureSet, len(b.failures))
	for id, c := range b.failures {
		failed[id] = c
	}
	b.mu.RUnlock()
	// overlays is replaced wholesale on refetch, never mutated in place.
	return Compose(overlays, vp, failed)
}

// Frame builds the render frame for one tick.
func (b *Board) Frame(tick uint64, at time.Time, vp Viewport, clock *Clock) Frame {
	return Frame{
		Tick:     tick,
		At:       at,
		Viewport: vp,
		Items:    b.Render(vp),
		Clock:    clock,
	}
}

// WaitProbes blocks until every probe started so far has reported.
func (b *Board) WaitProbes() {
	b.probes.Wait()
}

// Close cancels outstanding image probes and waits for them.
func (b *Board) Close() {
	b.probeCancel()
	b.probes.Wait()
}
