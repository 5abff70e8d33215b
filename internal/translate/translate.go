package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"karolbroda.com/lyricfloat/internal/httpx"
)

const DefaultBaseURL = "https://translate.googleapis.com"

// Client wraps the public gtx endpoint, which answers with nested positional arrays.
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

// Romanize returns a Latin transliteration of text.
func (c *Client) Romanize(ctx context.Context, text string) (string, error) {
	rows, err := c.query(ctx, text, "en", "rm")
	if err != nil {
		return "", err
	}

	// [[[null, null, null, "romaji"]], ...]
	first, ok := index(rows, 0)
	if !ok {
		return "", nil
	}
	entry, ok := index(first, 0)
	if !ok {
		return "", nil
	}
	value, ok := index(entry, 3)
	if !ok {
		return "", nil
	}
	romaji, _ := value.(string)
	return romaji, nil
}

// Translate returns text rendered in lang.
func (c *Client) Translate(ctx context.Context, text string, lang string) (string, error) {
	if lang == "" {
		return "", errors.New("empty target language")
	}

	rows, err := c.query(ctx, text, lang, "t")
	if err != nil {
		return "", err
	}

	// [[["translated", "source", ...], ...], ...]
	first, ok := index(rows, 0)
	if !ok {
		return "", nil
	}
	segments, ok := first.([]any)
	if !ok {
		return "", nil
	}

	var out strings.Builder
	for _, seg := range segments {
		part, ok := index(seg, 0)
		if !ok {
			continue
		}
		if s, ok := part.(string); ok {
			out.WriteString(s)
		}
	}
	return out.String(), nil
}

func (c *Client) query(ctx context.Context, text string, target string, mode string) ([]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty text")
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", "auto")
	params.Set("tl", target)
	params.Set("dt", mode)
	params.Set("q", text)

	body, err := httpx.Get(ctx, c.http, c.baseURL+"/translate_a/single?"+params.Encode(), httpx.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("translate %s: %w", mode, err)
	}

	var rows []any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode translate response: %w", err)
	}
	return rows, nil
}

func index(v any, i int) (any, bool) {
	list, ok := v.([]any)
	if !ok || i >= len(list) || list[i] == nil {
		return nil, false
	}
	return list[i], true
}
