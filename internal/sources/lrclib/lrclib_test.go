package lrclib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"karolbroda.com/lyricfloat/internal/httpx"
	"karolbroda.com/lyricfloat/internal/lyrics"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("track_name") != "Lemon" || r.URL.Query().Get("artist_name") != "Kenshi Yonezu" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[
			{"id": 11, "trackName": "Lemon", "artistName": "Kenshi Yonezu", "albumName": "Bootleg", "duration": 255, "syncedLyrics": "[00:01.00]a"},
			{"id": 12, "trackName": "Lemon", "artistName": "Kenshi Yonezu", "duration": 254, "plainLyrics": "a"}
		]`))
	})
	mux.HandleFunc("/get/11", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 11, "syncedLyrics": "[00:01.00]synced", "plainLyrics": "plain"}`))
	})
	mux.HandleFunc("/get/12", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 12, "plainLyrics": "plain only"}`))
	})
	mux.HandleFunc("/get", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("track_name") == "Missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"id": 13, "syncedLyrics": "[00:02.00]by name"}`))
	})
	return httptest.NewServer(mux)
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c := New(srv.URL+"/", httpx.NewClient(2*time.Second))
	got, err := c.Search(context.Background(), lyrics.Query{Title: "Lemon", Artist: "Kenshi Yonezu"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates", len(got))
	}
	if got[0].ID != "11" || !got[0].Synced || got[0].Album != "Bootleg" || got[0].DurationSecs != 255 {
		t.Errorf("first candidate = %+v", got[0])
	}
	if got[1].Synced {
		t.Error("plain-only record reported as synced")
	}
}

func TestLyrics(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c := New(srv.URL, httpx.NewClient(2*time.Second))
	ctx := context.Background()

	tests := []struct {
		id   string
		want string
	}{
		{"11", "[00:01.00]synced"},
		{"12", "plain only"},
		{"99", ""},
	}
	for _, tt := range tests {
		got, err := c.Lyrics(ctx, tt.id)
		if err != nil {
			t.Errorf("Lyrics(%s): %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("Lyrics(%s) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestLyricsByTitleArtist(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c := New(srv.URL, httpx.NewClient(2*time.Second))
	got, err := c.LyricsByTitleArtist(context.Background(), "Lemon", "Kenshi Yonezu")
	if err != nil || got != "[00:02.00]by name" {
		t.Errorf("got %q, %v", got, err)
	}

	got, err = c.LyricsByTitleArtist(context.Background(), "Missing", "Nobody")
	if err != nil || got != "" {
		t.Errorf("miss should be empty without error, got %q, %v", got, err)
	}
}
