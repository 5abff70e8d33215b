// Package snapshot reads a saved HTML snapshot of a web player. Media
// elements carry their live state as data attributes and the media session
// metadata is exposed as meta tags:
//
//	<meta name="media-session:title" content="...">
//	<meta name="media-session:artist" content="...">
//	<link rel="media-session:artwork" href="...">
//	<audio data-current-time="12.5" data-duration="200" data-paused="false"
//	       data-ready-state="4" data-muted="false"></audio>
//
// The file is re-parsed whenever its modification time changes.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"karolbroda.com/lyricfloat/internal/hostpage"
	"karolbroda.com/lyricfloat/internal/timeline"
	"karolbroda.com/lyricfloat/internal/track"
)

const (
	ProfileSpotify = "spotify"
	ProfileYTMusic = "ytmusic"
	ProfileGeneric = "generic"

	// readyState at which an element can report its position
	haveCurrentData = 2
)

var _ hostpage.Host = (*Host)(nil)

var ErrNoSnapshot = errors.New("no snapshot loaded")

type titleSelectors struct {
	title  string
	artist string
}

var profileTitles = map[string]titleSelectors{
	ProfileSpotify: {
		title:  `[data-testid="context-item-info-title"]`,
		artist: `[data-testid="context-item-info-artist"]`,
	},
	ProfileYTMusic: {
		title:  `.ytmusic-player-bar .title`,
		artist: `.ytmusic-player-bar .byline a`,
	},
}

var coverSelectors = []string{
	`[data-testid="now-playing-widget"] img`,
	`img[data-testid="cover-art-image"]`,
	`.ytmusic-player-bar img`,
}

type Host struct {
	path    string
	profile string

	mu      sync.Mutex
	doc     *goquery.Document
	modTime time.Time
}

// Open watches the snapshot at path. The file may not exist yet.
func Open(path string, profile string) (*Host, error) {
	if path == "" {
		return nil, errors.New("snapshot path is empty")
	}
	profile, err := normalizeProfile(profile)
	if err != nil {
		return nil, err
	}
	return &Host{path: path, profile: profile}, nil
}

// Parse builds a host from a fixed document.
func Parse(r io.Reader, profile string) (*Host, error) {
	profile, err := normalizeProfile(profile)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &Host{profile: profile, doc: doc}, nil
}

func normalizeProfile(profile string) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(profile)); p {
	case "":
		return ProfileSpotify, nil
	case ProfileSpotify, ProfileYTMusic, ProfileGeneric:
		return p, nil
	default:
		return "", fmt.Errorf("unknown host profile %q", profile)
	}
}

func (h *Host) Profile() string {
	return h.profile
}

// Selectors is the text fallback the timeline should use for this host.
func (h *Host) Selectors() *timeline.Selectors {
	return timeline.SelectorsFor(h.profile)
}

func (h *Host) Close() error {
	return nil
}

func (h *Host) NowPlaying() (track.Identity, error) {
	doc, err := h.document()
	if err != nil {
		return track.Identity{}, err
	}

	id := track.Identity{
		Title:      metaContent(doc, "media-session:title"),
		Artist:     metaContent(doc, "media-session:artist"),
		Album:      metaContent(doc, "media-session:album"),
		ArtworkURL: coverArt(doc),
	}

	if sel, ok := profileTitles[h.profile]; ok {
		if id.Title == "" {
			id.Title = text(doc, sel.title)
		}
		if id.Artist == "" {
			id.Artist = text(doc, sel.artist)
		}
	}

	if el, ok := firstReady(mediaElements(doc)); ok {
		id.DurationSecs = el.Duration
	}

	if !id.IsValid() {
		return track.Identity{}, fmt.Errorf("snapshot has no now-playing metadata (title=%q, artist=%q)", id.Title, id.Artist)
	}
	return id, nil
}

func (h *Host) MediaElements() []timeline.MediaElement {
	doc, err := h.document()
	if err != nil {
		return nil
	}
	return mediaElements(doc)
}

func (h *Host) Text(selector string) (string, bool) {
	doc, err := h.document()
	if err != nil {
		return "", false
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.Text()), true
}

func (h *Host) Attr(selector string, name string) (string, bool) {
	doc, err := h.document()
	if err != nil {
		return "", false
	}
	return doc.Find(selector).First().Attr(name)
}

// A snapshot is read-only; transport needs a live player.
func (h *Host) PlayPause() error { return hostpage.ErrUnsupported }

func (h *Host) Next() error { return hostpage.ErrUnsupported }

func (h *Host) Previous() error { return hostpage.ErrUnsupported }

func (h *Host) ToggleMute() error { return hostpage.ErrUnsupported }

func (h *Host) SeekFraction(float64) error { return hostpage.ErrUnsupported }

func (h *Host) document() (*goquery.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.path == "" {
		if h.doc == nil {
			return nil, ErrNoSnapshot
		}
		return h.doc, nil
	}

	info, err := os.Stat(h.path)
	if err != nil {
		if h.doc != nil {
			return h.doc, nil
		}
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	if h.doc != nil && info.ModTime().Equal(h.modTime) {
		return h.doc, nil
	}

	f, err := os.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	h.doc = doc
	h.modTime = info.ModTime()
	return doc, nil
}

func mediaElements(doc *goquery.Document) []timeline.MediaElement {
	var out []timeline.MediaElement
	doc.Find("video, audio").Each(func(_ int, s *goquery.Selection) {
		readyState, _ := strconv.Atoi(s.AttrOr("data-ready-state", "0"))
		out = append(out, timeline.MediaElement{
			Ready:       readyState >= haveCurrentData,
			Paused:      boolAttr(s, "data-paused", true),
			Muted:       boolAttr(s, "data-muted", false),
			CurrentTime: floatAttr(s, "data-current-time"),
			Duration:    floatAttr(s, "data-duration"),
		})
	})
	return out
}

func firstReady(elements []timeline.MediaElement) (timeline.MediaElement, bool) {
	for _, el := range elements {
		if el.Ready && el.Duration > 0 {
			return el, true
		}
	}
	return timeline.MediaElement{}, false
}

// coverArt prefers the media session artwork (the last entry is the largest),
// then the known player widgets.
func coverArt(doc *goquery.Document) string {
	artwork := doc.Find(`link[rel="media-session:artwork"]`)
	if artwork.Length() > 0 {
		if href, ok := artwork.Last().Attr("href"); ok && href != "" {
			return href
		}
	}

	for _, selector := range coverSelectors {
		if src, ok := doc.Find(selector).First().Attr("src"); ok && src != "" {
			return src
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func text(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func boolAttr(s *goquery.Selection, name string, fallback bool) bool {
	raw, ok := s.Attr(name)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

// floatAttr returns -1 for a missing or malformed value so the element is
// rejected by the direct read.
func floatAttr(s *goquery.Selection, name string) float64 {
	raw, ok := s.Attr(name)
	if !ok {
		return -1
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return -1
	}
	return v
}
