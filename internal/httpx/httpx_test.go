package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if got := r.Header.Get("User-Agent"); got != UserAgent {
				t.Errorf("user agent = %q", got)
			}
			w.Write([]byte(`{"name":"x"}`))
		case "/missing":
			http.NotFound(w, r)
		case "/broken":
			w.Write([]byte(`{`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		}
	}))
	defer srv.Close()

	client := NewClient(2 * time.Second)
	ctx := context.Background()

	var out struct {
		Name string `json:"name"`
	}
	if err := GetJSON(ctx, client, srv.URL+"/ok", UserAgent, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Name != "x" {
		t.Errorf("name = %q", out.Name)
	}

	if err := GetJSON(ctx, client, srv.URL+"/missing", UserAgent, &out); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := GetJSON(ctx, client, srv.URL+"/broken", UserAgent, &out); err == nil {
		t.Error("expected decode error")
	}

	err := GetJSON(ctx, client, srv.URL+"/other", UserAgent, &out)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusBadGateway || statusErr.Body != "upstream down" {
		t.Errorf("unexpected status error %+v", statusErr)
	}
}
