package hls

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"

	"github.com/grafov/m3u8"
)

// parsePlaylist decodes a manifest body. Exactly one of the results is non-nil
// on success.
func parsePlaylist(body []byte) (*m3u8.MasterPlaylist, *m3u8.MediaPlaylist, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("#EXTM3U")) {
		return nil, nil, errors.New("missing #EXTM3U header")
	}
	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, nil, err
	}
	switch listType {
	case m3u8.MASTER:
		return p.(*m3u8.MasterPlaylist), nil, nil
	case m3u8.MEDIA:
		return nil, p.(*m3u8.MediaPlaylist), nil
	default:
		return nil, nil, fmt.Errorf("unknown playlist type %v", listType)
	}
}

// selectVariant picks the highest-bandwidth variant.
func selectVariant(master *m3u8.MasterPlaylist) (*m3u8.Variant, error) {
	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return nil, ErrNoVariants
	}
	return best, nil
}

func resolve(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(u), nil
}

type playlistEntry struct {
	seq      uint64
	uri      string
	duration float64
}

func mediaEntries(p *m3u8.MediaPlaylist) []playlistEntry {
	out := make([]playlistEntry, 0, p.Count())
	var i uint64
	for _, seg := range p.Segments {
		if seg == nil {
			continue
		}
		out = append(out, playlistEntry{seq: p.SeqNo + i, uri: seg.URI, duration: seg.Duration})
		i++
	}
	return out
}
