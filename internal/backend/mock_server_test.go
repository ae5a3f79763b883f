package backend

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/grafov/m3u8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchPlaylist(t *testing.T, mock *MockServer, id string) *m3u8.MediaPlaylist {
	t.Helper()
	resp, err := mock.Client().Get(mock.ManifestURL(id))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), true)
	require.NoError(t, err)
	require.Equal(t, m3u8.MEDIA, listType)
	return p.(*m3u8.MediaPlaylist)
}

func TestMockPlaylistEnded(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.AddStream("s1", 3)

	p := fetchPlaylist(t, mock, "s1")
	assert.True(t, p.Closed)
	assert.Equal(t, uint(3), p.Count())
	assert.Equal(t, "segment_000.ts", p.Segments[0].URI)
	assert.Equal(t, 2.0, p.TargetDuration)
}

func TestMockPlaylistLiveWindow(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.AddStream("s1", 3)
	mock.SetLive("s1", 2)

	p := fetchPlaylist(t, mock, "s1")
	assert.False(t, p.Closed)
	assert.Equal(t, uint64(1), p.SeqNo)
	assert.Equal(t, uint(2), p.Count())

	mock.AppendSegments("s1", 2, true)
	p = fetchPlaylist(t, mock, "s1")
	assert.True(t, p.Closed)
	assert.Equal(t, uint64(3), p.SeqNo)
}

func TestMockSegmentInjection(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.AddStream("s1", 2)
	mock.FailSegment("s1", 0, 1)
	mock.CorruptSegment("s1", 1, 1)

	get := func(name string) (int, []byte) {
		resp, err := mock.Client().Get(mock.URL + "/streams/s1/" + name)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, body
	}

	status, _ := get("segment_000.ts")
	assert.Equal(t, http.StatusNotFound, status)
	status, body := get("segment_000.ts")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, byte(0x47), body[0])

	_, body = get("segment_001.ts")
	assert.NotEqual(t, byte(0x47), body[0])
	_, body = get("segment_001.ts")
	assert.Equal(t, byte(0x47), body[0])

	status, _ = get("segment_002.ts")
	assert.Equal(t, http.StatusNotFound, status)
}
