package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grafov/m3u8"

	"github.com/livesitter/livesitter/internal/overlay"
)

const (
	tsPacketSize      = 188
	mockPacketsPerSeg = 8
)

// MockServer provides an in-memory backend for tests: overlays, settings,
// health, stream control and generated HLS output per stream.
type MockServer struct {
	*httptest.Server

	mu       sync.Mutex
	now      func() time.Time
	lastTS   time.Time
	overlays map[string]overlay.Overlay
	streams  map[string]*mockStream
	settings Settings
	healthy  bool
	delay    map[string]time.Duration // artificial delay per route pattern
	failures map[string]int           // 500 responses before success per route pattern
	requests map[string]int
}

type mockStream struct {
	info            StreamInfo
	segmentDuration float64
	window          int
	firstSeq        uint64
	count           int
	ended           bool
	segmentFailures map[uint64]int
	corrupt         map[uint64]int
	manifestFails   int
}

// NewMockServer starts a mock backend. Callers must Close it.
func NewMockServer() *MockServer {
	m := &MockServer{
		now:      time.Now,
		overlays: map[string]overlay.Overlay{},
		streams:  map[string]*mockStream{},
		settings: DefaultSettings(),
		healthy:  true,
		delay:    map[string]time.Duration{},
		failures: map[string]int{},
		requests: map[string]int{},
	}

	mux := http.NewServeMux()
	m.route(mux, "POST /streams/start", m.handleStartStream)
	m.route(mux, "POST /streams/stop", m.handleStopStream)
	m.route(mux, "GET /streams/status", m.handleStreamStatus)
	m.route(mux, "GET /streams/{id}/playlist.m3u8", m.handlePlaylist)
	m.route(mux, "GET /streams/{id}/{segment}", m.handleSegment)
	m.route(mux, "GET /settings/health", m.handleHealth)
	m.route(mux, "GET /settings/{$}", m.handleGetSettings)
	m.route(mux, "POST /settings/{$}", m.handleUpdateSettings)
	m.route(mux, "GET /overlays/{$}", m.handleListOverlays)
	m.route(mux, "POST /overlays/{$}", m.handleCreateOverlay)
	m.route(mux, "GET /overlays/{id}", m.handleGetOverlay)
	m.route(mux, "PUT /overlays/{id}", m.handleUpdateOverlay)
	m.route(mux, "DELETE /overlays/{id}", m.handleDeleteOverlay)

	m.Server = httptest.NewServer(mux)
	return m
}

func (m *MockServer) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests[pattern]++
		delay := m.delay[pattern]
		fail := m.failures[pattern] > 0
		if fail {
			m.failures[pattern]--
		}
		m.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if fail {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "injected failure"})
			return
		}
		h(w, r)
	})
}

// SetDelay delays every response of the route pattern (e.g. "GET /settings/health").
func (m *MockServer) SetDelay(pattern string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay[pattern] = d
}

// SetFailures makes the next count requests of the route pattern fail with 500.
func (m *MockServer) SetFailures(pattern string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[pattern] = count
}

// SetHealthy toggles the health endpoint between 200 and 503.
func (m *MockServer) SetHealthy(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = ok
}

// Requests returns how often a route pattern was hit.
func (m *MockServer) Requests(pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[pattern]
}

// AddStream registers a stream with count ended segments without going
// through the start endpoint.
func (m *MockServer) AddStream(id string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addStreamLocked(id, "rtsp://mock/"+id, count)
}

func (m *MockServer) addStreamLocked(id, source string, count int) *mockStream {
	s := &mockStream{
		info: StreamInfo{
			StreamID:    id,
			RTSPURL:     source,
			StartedAt:   m.now().UTC(),
			Status:      "running",
			PlaylistURL: "/api/streams/" + id + "/playlist.m3u8",
		},
		segmentDuration: 2,
		count:           count,
		ended:           true,
		segmentFailures: map[uint64]int{},
		corrupt:         map[uint64]int{},
	}
	m.streams[id] = s
	return s
}

// SetLive turns a stream into a sliding-window live playlist of window
// segments. Use AppendSegments to advance it.
func (m *MockServer) SetLive(id string, window int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[id]; ok {
		s.ended = false
		s.window = window
	}
}

// AppendSegments publishes n more segments; end closes the playlist.
func (m *MockServer) AppendSegments(id string, n int, end bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[id]; ok {
		s.count += n
		s.ended = end
	}
}

// SetSegmentDuration changes the advertised segment duration in seconds.
func (m *MockServer) SetSegmentDuration(id string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[id]; ok {
		s.segmentDuration = seconds
	}
}

// FailSegment answers the segment with 404 for the next count requests.
func (m *MockServer) FailSegment(id string, seq uint64, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[id]; ok {
		s.segmentFailures[seq] = count
	}
}

// CorruptSegment serves undecodable bytes for the next count requests.
func (m *MockServer) CorruptSegment(id string, seq uint64, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[id]; ok {
		s.corrupt[seq] = count
	}
}

// FailManifest answers the stream playlist with 404 for the next count requests.
func (m *MockServer) FailManifest(id string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.streams[id]; ok {
		s.manifestFails = count
	}
}

// Stream returns the converter view of a stream.
func (m *MockServer) Stream(id string) (StreamInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[id]
	if !ok {
		return StreamInfo{}, false
	}
	return s.info, true
}

// ManifestURL is the playlist locator for a stream on this server.
func (m *MockServer) ManifestURL(id string) string {
	return m.URL + "/streams/" + id + "/playlist.m3u8"
}

// MockSegment returns count MPEG-TS packets carrying the sequence number.
func MockSegment(seq uint64, packets int) []byte {
	buf := make([]byte, packets*tsPacketSize)
	for i := 0; i < packets; i++ {
		p := buf[i*tsPacketSize : (i+1)*tsPacketSize]
		p[0] = 0x47
		p[1] = byte(seq >> 8)
		p[2] = byte(seq)
		p[3] = byte(i)
	}
	return buf
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *MockServer) handleStartStream(w http.ResponseWriter, r *http.Request) {
	var req StartStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No JSON data provided"})
		return
	}
	if req.RTSPURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "RTSP URL is required"})
		return
	}
	if req.StreamID == "" {
		req.StreamID = "stream_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	}

	m.mu.Lock()
	s, ok := m.streams[req.StreamID]
	if !ok {
		s = m.addStreamLocked(req.StreamID, req.RTSPURL, 5)
	}
	s.info.RTSPURL = req.RTSPURL
	s.info.Status = "running"
	info := s.info
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, StartStreamResponse{
		PlaylistURL: info.PlaylistURL,
		StreamID:    info.StreamID,
		Status:      "success",
		Message:     "Stream started successfully",
	})
}

func (m *MockServer) handleStopStream(w http.ResponseWriter, r *http.Request) {
	var req stopStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StreamID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Stream ID is required"})
		return
	}
	m.mu.Lock()
	_, ok := m.streams[req.StreamID]
	delete(m.streams, req.StreamID)
	m.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Stream not found or already stopped"})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Stream stopped successfully", Status: "success"})
}

func (m *MockServer) handleStreamStatus(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	out := StreamStatus{Status: "success", ActiveStreams: []StreamInfo{}}
	for _, s := range m.streams {
		out.ActiveStreams = append(out.ActiveStreams, s.info)
	}
	m.mu.Unlock()
	slices.SortFunc(out.ActiveStreams, func(a, b StreamInfo) int { return strings.Compare(a.StreamID, b.StreamID) })
	out.TotalStreams = len(out.ActiveStreams)
	writeJSON(w, http.StatusOK, out)
}

func (m *MockServer) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m.mu.Lock()
	s, ok := m.streams[id]
	if ok && s.manifestFails > 0 {
		s.manifestFails--
		ok = false
	}
	var snapshot mockStream
	if ok {
		snapshot = *s
	}
	m.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Playlist not available. Stream may not be ready yet."})
		return
	}

	body, err := encodePlaylist(snapshot)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error serving playlist"})
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	_, _ = w.Write(body)
}

func encodePlaylist(s mockStream) ([]byte, error) {
	first := s.firstSeq
	if s.window > 0 && s.count > s.window {
		first = s.firstSeq + uint64(s.count-s.window)
	}
	total := s.firstSeq + uint64(s.count)
	capacity := uint(max(s.count, 1))

	p, err := m3u8.NewMediaPlaylist(0, capacity)
	if err != nil {
		return nil, err
	}
	p.SeqNo = first
	for seq := first; seq < total; seq++ {
		if err := p.Append(fmt.Sprintf("segment_%03d.ts", seq), s.segmentDuration, ""); err != nil {
			return nil, err
		}
	}
	if s.ended {
		p.Close()
	}
	return p.Encode().Bytes(), nil
}

func (m *MockServer) handleSegment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var seq uint64
	if _, err := fmt.Sscanf(r.PathValue("segment"), "segment_%d.ts", &seq); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Segment not found"})
		return
	}

	m.mu.Lock()
	s, ok := m.streams[id]
	status := http.StatusOK
	corrupt := false
	switch {
	case !ok || seq < s.firstSeq || seq >= s.firstSeq+uint64(s.count):
		status = http.StatusNotFound
	case s.segmentFailures[seq] > 0:
		s.segmentFailures[seq]--
		status = http.StatusNotFound
	case s.corrupt[seq] > 0:
		s.corrupt[seq]--
		corrupt = true
	}
	m.mu.Unlock()

	if status != http.StatusOK {
		writeJSON(w, status, errorResponse{Error: "Segment not found"})
		return
	}
	body := MockSegment(seq, mockPacketsPerSeg)
	if corrupt {
		body[0] = 0x00
	}
	w.Header().Set("Content-Type", "video/mp2t")
	_, _ = w.Write(body)
}

func (m *MockServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	ok := m.healthy
	m.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "connected"})
}

func (m *MockServer) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	s := m.settings
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, settingsResponse{Settings: s})
}

func (m *MockServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var u SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid type for setting"})
		return
	}
	m.mu.Lock()
	m.settings = u.Apply(m.settings)
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, messageResponse{Message: "Settings updated successfully", Status: "success"})
}

// timestampLocked returns a strictly increasing UTC time.
func (m *MockServer) timestampLocked() time.Time {
	ts := m.now().UTC()
	if !ts.After(m.lastTS) {
		ts = m.lastTS.Add(time.Millisecond)
	}
	m.lastTS = ts
	return ts
}

func (m *MockServer) handleListOverlays(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	list := make([]overlay.Overlay, 0, len(m.overlays))
	for _, o := range m.overlays {
		if o.IsActive {
			list = append(list, o.Clone())
		}
	}
	m.mu.Unlock()
	slices.SortFunc(list, func(a, b overlay.Overlay) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	writeJSON(w, http.StatusOK, overlaysResponse{Overlays: list, Count: len(list)})
}

func (m *MockServer) handleCreateOverlay(w http.ResponseWriter, r *http.Request) {
	var req overlay.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No JSON data provided"})
		return
	}
	if req.Name == "" || req.Kind == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing required field: name, type or content"})
		return
	}

	m.mu.Lock()
	ts := m.timestampLocked()
	o := overlay.Overlay{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
		Name:      req.Name,
		Kind:      req.Kind,
		Content:   req.Content,
		Position:  req.Position,
		Size:      req.Size,
		Style:     req.Style.Clone(),
		IsActive:  req.IsActive == nil || *req.IsActive,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	m.overlays[o.ID] = o
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, createOverlayResponse{ID: o.ID, Message: "Overlay created successfully"})
}

func (m *MockServer) handleGetOverlay(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	o, ok := m.overlays[r.PathValue("id")]
	m.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Overlay not found"})
		return
	}
	writeJSON(w, http.StatusOK, overlayResponse{Overlay: o})
}

func (m *MockServer) handleUpdateOverlay(w http.ResponseWriter, r *http.Request) {
	var req overlay.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No JSON data provided"})
		return
	}
	id := r.PathValue("id")
	m.mu.Lock()
	o, ok := m.overlays[id]
	if ok {
		o = req.Apply(o)
		o.UpdatedAt = m.timestampLocked()
		m.overlays[id] = o
	}
	m.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Overlay not found"})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Overlay updated successfully", Status: "success"})
}

func (m *MockServer) handleDeleteOverlay(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	m.mu.Lock()
	_, ok := m.overlays[id]
	delete(m.overlays, id)
	m.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Overlay not found"})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Overlay deleted successfully", Status: "success"})
}
