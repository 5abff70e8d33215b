package track

import "math"

// Identity is the now-playing guess read from the host. It is never persisted.
type Identity struct {
	Title        string
	Artist       string
	Album        string
	DurationSecs float64
	ArtworkURL   string
	TrackID      string
}

func (t Identity) IsValid() bool {
	return t.Title != "" && t.Artist != ""
}

// Key is the lookup key for per-track settings.
func (t Identity) Key() string {
	if !t.IsValid() {
		return ""
	}
	return t.Artist + " - " + t.Title
}

func (t Identity) IsSameTrack(other Identity) bool {
	if t.TrackID != "" && other.TrackID != "" {
		return t.TrackID == other.TrackID
	}
	return t.Title == other.Title && t.Artist == other.Artist
}

func (t Identity) RoundedDuration() int64 {
	if t.DurationSecs <= 0 {
		return 0
	}
	return int64(math.Round(t.DurationSecs))
}
