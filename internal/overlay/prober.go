package overlay

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

// HTTPProber loads image references over HTTP. A shared limiter keeps a burst
// of new image overlays from hammering the image host.
type HTTPProber struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPProber returns a prober issuing at most rps probes per second.
func NewHTTPProber(client *http.Client, rps float64) *HTTPProber {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &HTTPProber{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Probe fetches ref and checks that it serves an image. References that are
// not http(s) URLs cannot be checked from here and are accepted; data URIs
// must declare an image media type.
func (p *HTTPProber) Probe(ctx context.Context, ref string) error {
	if strings.HasPrefix(ref, "data:") {
		if !strings.HasPrefix(ref, "data:image/") {
			return fmt.Errorf("data uri is not an image")
		}
		return nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("parse image reference: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("load image: status %d", resp.StatusCode)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return nil
	case (mediaType == "" || mediaType == "application/octet-stream") && LooksLikeImageURL(u.Path):
		return nil
	default:
		return fmt.Errorf("load image: unexpected content type %q", mediaType)
	}
}
