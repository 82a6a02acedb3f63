// Package parser imports HLS playlists as clip sequences.
package parser

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/grafov/m3u8"

	"github.com/agleyzer/seqplay/internal/sequence"
)

// Options controls how playlist segments become clips.
type Options struct {
	// Name is the sequence name. Defaults to the playlist file name.
	Name string

	// Transition is applied at every segment boundary.
	// Nil, or a discontinuity in the source, gives a hard cut.
	Transition *sequence.TransitionSpec
}

// ParsePlaylist loads an HLS playlist from a URL or a local file and returns
// its segments as a sequence. A master playlist is resolved to its highest
// bandwidth variant.
func ParsePlaylist(source string, opts Options) (*sequence.Sequence, error) {
	playlist, listType, err := decode(source)
	if err != nil {
		return nil, err
	}

	if listType == m3u8.MASTER {
		variantSource, err := selectVariant(playlist, source)
		if err != nil {
			return nil, err
		}

		playlist, listType, err = decode(variantSource)
		if err != nil {
			return nil, fmt.Errorf("failed to parse variant media playlist: %w", err)
		}
		if listType != m3u8.MEDIA {
			return nil, fmt.Errorf("expected media playlist, got master playlist")
		}
		source = variantSource
	}

	mediaPlaylist, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type")
	}

	descriptors, err := descriptorsFromMedia(mediaPlaylist, source, opts.Transition)
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = defaultName(source)
	}

	return sequence.New(name, descriptors), nil
}

// descriptorsFromMedia turns each segment into a clip. A discontinuity before
// a segment makes the boundary into it a hard cut.
func descriptorsFromMedia(mediaPlaylist *m3u8.MediaPlaylist, source string, t *sequence.TransitionSpec) ([]sequence.Descriptor, error) {
	var descriptors []sequence.Descriptor
	for i, seg := range mediaPlaylist.Segments {
		if seg == nil {
			break
		}

		segmentSource, err := resolveSource(source, seg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve segment URL: %w", err)
		}

		if seg.Discontinuity && len(descriptors) > 0 {
			descriptors[len(descriptors)-1].Transition = nil
		}

		name := strings.TrimSpace(seg.Title)
		if name == "" {
			name = fmt.Sprintf("seg%03d", i)
		}

		d := sequence.Descriptor{
			Name:     name,
			Source:   segmentSource,
			Duration: time.Duration(math.Round(seg.Duration * float64(time.Second))),
		}
		if t != nil {
			spec := *t
			d.Transition = &spec
		}
		descriptors = append(descriptors, d)
	}

	if len(descriptors) == 0 {
		return nil, fmt.Errorf("playlist contains no segments")
	}

	return descriptors, nil
}

// selectVariant returns the location of the highest bandwidth variant.
func selectVariant(playlist m3u8.Playlist, masterSource string) (string, error) {
	masterPlaylist, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return "", fmt.Errorf("unexpected playlist type")
	}

	var best *m3u8.Variant
	for _, v := range masterPlaylist.Variants {
		if v == nil {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return "", fmt.Errorf("master playlist contains no variants")
	}

	variantSource, err := resolveSource(masterSource, best.URI)
	if err != nil {
		return "", fmt.Errorf("failed to resolve variant URL: %w", err)
	}
	return variantSource, nil
}

// defaultName derives a sequence name from the playlist file name.
func defaultName(source string) string {
	p := filepath.ToSlash(source)
	if isRemote(source) {
		if u, err := url.Parse(source); err == nil {
			p = u.Path
		}
	}

	base := path.Base(p)
	name := strings.TrimSuffix(base, path.Ext(base))
	if name == "" || name == "." || name == "/" {
		return "playlist"
	}
	return name
}

func decode(source string) (m3u8.Playlist, m3u8.ListType, error) {
	body, err := open(source)
	if err != nil {
		return nil, 0, err
	}
	defer body.Close()

	playlist, listType, err := m3u8.DecodeFrom(body, true)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse playlist: %w", err)
	}
	return playlist, listType, nil
}

func open(source string) (io.ReadCloser, error) {
	if !isRemote(source) {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open playlist: %w", err)
		}
		return f, nil
	}

	body, err := FetchContent(source)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	return body, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// resolveSource resolves a segment or variant reference against the playlist
// that named it, as a URL for remote playlists and a file path otherwise.
func resolveSource(base, ref string) (string, error) {
	if isRemote(base) {
		return resolveURL(base, ref)
	}
	if isRemote(ref) || filepath.IsAbs(ref) {
		return ref, nil
	}
	return filepath.Join(filepath.Dir(base), filepath.FromSlash(ref)), nil
}

// resolveURL resolves a possibly relative URL against a base URL.
func resolveURL(baseURL, relativeURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	rel, err := url.Parse(relativeURL)
	if err != nil {
		return "", fmt.Errorf("invalid relative URL: %w", err)
	}

	resolved := base.ResolveReference(rel)
	return resolved.String(), nil
}

// FetchContent fetches content from a URL.
func FetchContent(url string) (io.ReadCloser, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return resp.Body, nil
}
