package lrclib

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"karolbroda.com/lyricfloat/internal/httpx"
	"karolbroda.com/lyricfloat/internal/lyrics"
)

const DefaultBaseURL = "https://lrclib.net/api"

type record struct {
	ID           int64   `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

func (r record) text() string {
	if r.SyncedLyrics != "" {
		return r.SyncedLyrics
	}
	return r.PlainLyrics
}

// Client talks to the lrclib api. It is the primary catalog.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) Source() lyrics.Source {
	return lyrics.PrimaryCatalog
}

func (c *Client) Search(ctx context.Context, q lyrics.Query) ([]lyrics.Candidate, error) {
	if q.Title == "" {
		return nil, errors.New("empty track title")
	}

	params := url.Values{}
	params.Set("track_name", q.Title)
	if q.Artist != "" {
		params.Set("artist_name", q.Artist)
	}

	var records []record
	err := httpx.GetJSON(ctx, c.http, c.baseURL+"/search?"+params.Encode(), httpx.UserAgent, &records)
	if err != nil {
		return nil, fmt.Errorf("lrclib search: %w", err)
	}

	candidates := make([]lyrics.Candidate, 0, len(records))
	for _, r := range records {
		candidates = append(candidates, lyrics.Candidate{
			ID:           strconv.FormatInt(r.ID, 10),
			Source:       lyrics.PrimaryCatalog,
			Name:         r.TrackName,
			Artist:       r.ArtistName,
			Album:        r.AlbumName,
			DurationSecs: r.Duration,
			Synced:       r.SyncedLyrics != "",
		})
	}
	return candidates, nil
}

// Lyrics fetches a record by id, preferring synced over plain text.
func (c *Client) Lyrics(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", errors.New("empty lrclib id")
	}

	var r record
	err := httpx.GetJSON(ctx, c.http, c.baseURL+"/get/"+url.PathEscape(id), httpx.UserAgent, &r)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("lrclib get %s: %w", id, err)
	}
	return r.text(), nil
}

// LyricsByTitleArtist is the exact-signature lookup. A miss is not an error.
func (c *Client) LyricsByTitleArtist(ctx context.Context, title string, artist string) (string, error) {
	if title == "" || artist == "" {
		return "", errors.New("track title or artist is empty")
	}

	params := url.Values{}
	params.Set("artist_name", artist)
	params.Set("track_name", title)

	var r record
	err := httpx.GetJSON(ctx, c.http, c.baseURL+"/get?"+params.Encode(), httpx.UserAgent, &r)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("lrclib get %s - %s: %w", artist, title, err)
	}
	return r.text(), nil
}
