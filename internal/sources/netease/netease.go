package netease

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

// DefaultBaseURL is the catalog host. Point it at a relay when the host is not
// reachable directly.
const DefaultBaseURL = "https://music.163.com"

const searchLimit = 5

type artist struct {
	Name string `json:"name"`
}

type song struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Ar         []artist `json:"ar"`
	Artists    []artist `json:"artists"`
	DurationMs int64    `json:"dt"`
	Al         struct {
		Name string `json:"name"`
	} `json:"al"`
}

func (s song) artistNames() string {
	list := s.Ar
	if len(list) == 0 {
		list = s.Artists
	}
	names := make([]string, 0, len(list))
	for _, a := range list {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

type searchResponse struct {
	Result struct {
		Songs []song `json:"songs"`
	} `json:"result"`
}

type lyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
}

// Client is the regional catalog.
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
	return lyrics.RegionalCatalog
}

// Search sends title and artist as a single free-text query.
func (c *Client) Search(ctx context.Context, q lyrics.Query) ([]lyrics.Candidate, error) {
	text := strings.TrimSpace(q.Title + " " + q.Artist)
	if text == "" {
		return nil, errors.New("empty search query")
	}

	params := url.Values{}
	params.Set("s", text)
	params.Set("type", "1")
	params.Set("limit", strconv.Itoa(searchLimit))
	params.Set("offset", "0")

	var resp searchResponse
	err := httpx.GetJSON(ctx, c.http, c.baseURL+"/api/cloudsearch/pc?"+params.Encode(), httpx.BrowserUserAgent, &resp)
	if err != nil {
		return nil, fmt.Errorf("netease search: %w", err)
	}

	candidates := make([]lyrics.Candidate, 0, len(resp.Result.Songs))
	for _, s := range resp.Result.Songs {
		candidates = append(candidates, lyrics.Candidate{
			ID:           strconv.FormatInt(s.ID, 10),
			Source:       lyrics.RegionalCatalog,
			Name:         s.Name,
			Artist:       s.artistNames(),
			Album:        s.Al.Name,
			DurationSecs: float64(s.DurationMs) / 1000,
		})
	}
	return candidates, nil
}

func (c *Client) Lyrics(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", errors.New("empty netease id")
	}

	params := url.Values{}
	params.Set("id", id)
	params.Set("lv", "1")
	params.Set("kv", "1")
	params.Set("tv", "-1")

	var resp lyricResponse
	err := httpx.GetJSON(ctx, c.http, c.baseURL+"/api/song/lyric?"+params.Encode(), httpx.BrowserUserAgent, &resp)
	if err != nil {
		return "", fmt.Errorf("netease lyric %s: %w", id, err)
	}
	return resp.Lrc.Lyric, nil
}
