package overlay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logo.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
		case "/raw.png":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte{0x89})
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewHTTPProber(srv.Client(), 100)
	ctx := context.Background()

	assert.NoError(t, p.Probe(ctx, srv.URL+"/logo.png"))
	assert.NoError(t, p.Probe(ctx, srv.URL+"/raw.png"))
	assert.Error(t, p.Probe(ctx, srv.URL+"/page"))
	assert.Error(t, p.Probe(ctx, srv.URL+"/missing.png"))
	assert.NoError(t, p.Probe(ctx, "data:image/png;base64,AAAA"))
	assert.Error(t, p.Probe(ctx, "data:text/plain,hi"))
	assert.NoError(t, p.Probe(ctx, "/static/local.png"))
}
