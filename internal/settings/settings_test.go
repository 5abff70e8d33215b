package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	s := Default()
	if s.ShowTranslation || s.TranslationLang != "id" || s.SyncOffsetMs != 400 {
		t.Errorf("Default() = %+v", s)
	}
	if s.EnrichLang() != "" {
		t.Error("translation is off by default")
	}
}

func TestOffsetFor(t *testing.T) {
	s := Default()
	s.SetTrackOffset("Band - Song", -200)

	if got := s.OffsetFor("Band - Song"); got != -200 {
		t.Errorf("track offset = %d", got)
	}
	if got := s.OffsetFor("Other - Song"); got != 400 {
		t.Errorf("fallback offset = %d", got)
	}
}

func TestOverrideValidate(t *testing.T) {
	tests := []struct {
		name string
		o    Override
		ok   bool
	}{
		{"local", Override{Kind: OverrideLocal, Text: "la la"}, true},
		{"local empty", Override{Kind: OverrideLocal}, false},
		{"network", Override{Kind: OverrideNetwork, Source: "lrclib", ID: "1"}, true},
		{"network missing id", Override{Kind: OverrideNetwork, Source: "lrclib"}, false},
		{"unknown kind", Override{Kind: "ftp"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.o.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, ok=%v", err, tt.ok)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := Default()
	s.SetOverride("k", Override{Kind: OverrideLocal, Text: "a"})
	c := s.Clone()
	c.SetOverride("k", Override{Kind: OverrideLocal, Text: "b"})
	if s.Overrides["k"].Text != "a" {
		t.Error("clone shares override map")
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Get().SyncOffsetMs != DefaultOffsetMs {
		t.Errorf("missing file should give defaults")
	}

	_, err = store.Update(func(s *Settings) error {
		s.ShowTranslation = true
		s.TranslationLang = "en"
		s.SetTrackOffset("Band - Song", 700)
		s.SetOverride("Band - Song", Override{Kind: OverrideNetwork, Source: "netease", ID: "99"})
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "show_translation = true") {
		t.Errorf("file content:\n%s", data)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := reopened.Get()
	if got.TranslationLang != "en" || got.OffsetFor("Band - Song") != 700 {
		t.Errorf("reopened = %+v", got)
	}
	if o, ok := got.OverrideFor("Band - Song"); !ok || o.ID != "99" {
		t.Errorf("override = %+v, %v", o, ok)
	}
}

func TestUpdateErrorWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	store, _ := Open(path, nil)

	_, err := store.Update(func(s *Settings) error {
		s.SyncOffsetMs = 1
		return errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file written despite error")
	}
	if store.Get().SyncOffsetMs != DefaultOffsetMs {
		t.Error("in-memory settings changed despite error")
	}
}

func TestSubscribeSeesLatest(t *testing.T) {
	store := NewMemory(Default())
	ch, cancel := store.Subscribe()
	defer cancel()

	for i := 1; i <= 3; i++ {
		store.Update(func(s *Settings) error {
			s.SyncOffsetMs = i * 100
			return nil
		})
	}

	select {
	case got := <-ch:
		if got.SyncOffsetMs != 300 {
			t.Errorf("subscriber saw %d, want latest 300", got.SyncOffsetMs)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	cancel()
	store.Update(func(s *Settings) error { return nil })
	select {
	case <-ch:
		t.Error("cancelled subscriber still notified")
	default:
	}
}

func TestReloadPicksUpOtherWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	viewer, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	ch, cancel := viewer.Subscribe()
	defer cancel()

	other, _ := Open(path, nil)
	other.Update(func(s *Settings) error {
		s.SyncOffsetMs = 900
		return nil
	})

	changed, err := viewer.Reload()
	if err != nil || !changed {
		t.Fatalf("Reload = %v, %v", changed, err)
	}
	if viewer.Get().SyncOffsetMs != 900 {
		t.Errorf("offset = %d", viewer.Get().SyncOffsetMs)
	}
	if got := <-ch; got.SyncOffsetMs != 900 {
		t.Errorf("notification = %+v", got)
	}

	if changed, _ := viewer.Reload(); changed {
		t.Error("second reload without a write should be a no-op")
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	store, _ := Open(path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return")
	}
}
