package mpris

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"karolbroda.com/lyricfloat/internal/hostpage"
	"karolbroda.com/lyricfloat/internal/timeline"
	"karolbroda.com/lyricfloat/internal/track"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisRootIface   = "org.mpris.MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisPrefix      = "org.mpris.MediaPlayer2."

	DefaultService = "org.mpris.MediaPlayer2.spotify"
)

var _ hostpage.Host = (*Host)(nil)

// Host reads a single MPRIS player. The player has no DOM, so the timeline
// always takes the direct-read path through MediaElements.
type Host struct {
	bus     *dbus.Conn
	service string
	obj     dbus.BusObject

	mu          sync.Mutex
	savedVolume float64
}

// Connect opens the session bus and binds to service. Close releases the bus.
func Connect(service string) (*Host, error) {
	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	h, err := New(bus, service)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return h, nil
}

func New(bus *dbus.Conn, service string) (*Host, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}
	if service == "" {
		return nil, errors.New("empty mpris service name")
	}
	return &Host{
		bus:     bus,
		service: service,
		obj:     bus.Object(service, mprisPath),
	}, nil
}

func newWithObject(service string, obj dbus.BusObject) *Host {
	return &Host{service: service, obj: obj}
}

func (h *Host) Service() string {
	return h.service
}

func (h *Host) Close() error {
	if h.bus == nil {
		return nil
	}
	return h.bus.Close()
}

func (h *Host) NowPlaying() (track.Identity, error) {
	metadata, err := h.metadata()
	if err != nil {
		return track.Identity{}, err
	}
	id := identityFromMetadata(metadata)
	if !id.IsValid() {
		return track.Identity{}, fmt.Errorf("missing title or artist in metadata (title=%q, artist=%q)", id.Title, id.Artist)
	}
	return id, nil
}

// MediaElements presents the player as a single media element.
func (h *Host) MediaElements() []timeline.MediaElement {
	metadata, err := h.metadata()
	if err != nil {
		return nil
	}
	duration := durationSeconds(metadata)

	position, err := h.positionMicros()
	if err != nil {
		return nil
	}

	status, _ := h.stringProperty("PlaybackStatus")
	volume, volErr := h.floatProperty("Volume")

	return []timeline.MediaElement{{
		Ready:       duration > 0,
		Paused:      status != "Playing",
		Muted:       volErr == nil && volume == 0,
		CurrentTime: float64(position) / 1_000_000,
		Duration:    duration,
	}}
}

func (h *Host) Text(string) (string, bool) {
	return "", false
}

func (h *Host) Attr(string, string) (string, bool) {
	return "", false
}

func (h *Host) PlayPause() error {
	return h.call("PlayPause")
}

func (h *Host) Next() error {
	return h.call("Next")
}

func (h *Host) Previous() error {
	return h.call("Previous")
}

// ToggleMute drops the volume to zero and restores the previous level on the
// next call.
func (h *Host) ToggleMute() error {
	volume, err := h.floatProperty("Volume")
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	next := 0.0
	if volume == 0 {
		next = h.savedVolume
		if next <= 0 {
			next = 1
		}
	} else {
		h.savedVolume = volume
	}

	if err := h.obj.SetProperty(mprisPlayerIface+".Volume", dbus.MakeVariant(next)); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	return nil
}

func (h *Host) SeekFraction(fraction float64) error {
	if fraction < 0 || fraction > 1 {
		return fmt.Errorf("seek fraction %v outside [0, 1]", fraction)
	}

	metadata, err := h.metadata()
	if err != nil {
		return err
	}
	duration := durationSeconds(metadata)
	if duration <= 0 {
		return hostpage.ErrUnsupported
	}
	target := int64(fraction * duration * 1_000_000)

	if trackID := extractTrackID(metadata); trackID != "" {
		return h.call("SetPosition", dbus.ObjectPath(trackID), target)
	}

	// players without a track id only take relative seeks
	position, err := h.positionMicros()
	if err != nil {
		return err
	}
	return h.call("Seek", target-position)
}

// Watch forwards metadata changes until ctx is done.
func (h *Host) Watch(ctx context.Context, fn func(track.Identity)) error {
	if h.bus == nil {
		return hostpage.ErrUnsupported
	}

	match := fmt.Sprintf(
		"type='signal',sender='%s',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',path='%s'",
		h.service, mprisPath,
	)
	if err := h.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, match).Err; err != nil {
		return fmt.Errorf("add properties match: %w", err)
	}

	signals := make(chan *dbus.Signal, 10)
	h.bus.Signal(signals)

	go func() {
		defer h.bus.RemoveSignal(signals)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if id, ok := identityFromSignal(sig); ok {
					fn(id)
				}
			}
		}
	}()
	return nil
}

// Player is one MPRIS service on the bus.
type Player struct {
	Service  string
	Identity string
}

func ListPlayers(bus *dbus.Conn) ([]Player, error) {
	var names []string
	if err := bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("list dbus names: %w", err)
	}

	var players []Player
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		p := Player{Service: name}
		if v, err := bus.Object(name, mprisPath).GetProperty(mprisRootIface + ".Identity"); err == nil {
			p.Identity, _ = v.Value().(string)
		}
		players = append(players, p)
	}

	sort.Slice(players, func(i, j int) bool {
		return players[i].Service < players[j].Service
	})
	return players, nil
}

func (h *Host) call(method string, args ...any) error {
	if err := h.obj.Call(mprisPlayerIface+"."+method, 0, args...).Err; err != nil {
		return fmt.Errorf("mpris %s: %w", method, err)
	}
	return nil
}

func (h *Host) metadata() (map[string]dbus.Variant, error) {
	prop, err := h.obj.GetProperty(mprisPlayerIface + ".Metadata")
	if err != nil {
		return nil, fmt.Errorf("get metadata property: %w", err)
	}
	metadata, ok := prop.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("unexpected metadata type %T", prop.Value())
	}
	return metadata, nil
}

func (h *Host) positionMicros() (int64, error) {
	prop, err := h.obj.GetProperty(mprisPlayerIface + ".Position")
	if err != nil {
		return 0, fmt.Errorf("get position property: %w", err)
	}
	position, ok := prop.Value().(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected position type %T", prop.Value())
	}
	if position < 0 {
		return 0, nil
	}
	return position, nil
}

func (h *Host) stringProperty(name string) (string, error) {
	prop, err := h.obj.GetProperty(mprisPlayerIface + "." + name)
	if err != nil {
		return "", err
	}
	s, ok := prop.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s type %T", name, prop.Value())
	}
	return s, nil
}

func (h *Host) floatProperty(name string) (float64, error) {
	prop, err := h.obj.GetProperty(mprisPlayerIface + "." + name)
	if err != nil {
		return 0, err
	}
	f, ok := prop.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected %s type %T", name, prop.Value())
	}
	return f, nil
}

func identityFromSignal(sig *dbus.Signal) (track.Identity, bool) {
	if sig == nil || sig.Name != "org.freedesktop.DBus.Properties.PropertiesChanged" || len(sig.Body) < 2 {
		return track.Identity{}, false
	}
	if iface, ok := sig.Body[0].(string); !ok || iface != mprisPlayerIface {
		return track.Identity{}, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return track.Identity{}, false
	}
	variant, ok := changed["Metadata"]
	if !ok {
		return track.Identity{}, false
	}
	metadata, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		return track.Identity{}, false
	}

	id := identityFromMetadata(metadata)
	return id, id.IsValid()
}

func identityFromMetadata(metadata map[string]dbus.Variant) track.Identity {
	return track.Identity{
		Title:        extractString(metadata, "xesam:title"),
		Artist:       extractArtist(metadata, "xesam:artist"),
		Album:        extractString(metadata, "xesam:album"),
		ArtworkURL:   extractString(metadata, "mpris:artUrl"),
		TrackID:      extractTrackID(metadata),
		DurationSecs: durationSeconds(metadata),
	}
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	variant, ok := metadata[key]
	if !ok {
		return ""
	}
	text, _ := variant.Value().(string)
	return text
}

// some players send the track id as an object path, others as a string
func extractTrackID(metadata map[string]dbus.Variant) string {
	variant, ok := metadata["mpris:trackid"]
	if !ok {
		return ""
	}
	switch typed := variant.Value().(type) {
	case dbus.ObjectPath:
		return string(typed)
	case string:
		return typed
	}
	return ""
}

func extractArtist(metadata map[string]dbus.Variant, key string) string {
	variant, ok := metadata[key]
	if !ok {
		return ""
	}
	switch typed := variant.Value().(type) {
	case []string:
		return strings.Join(typed, ", ")
	case string:
		return typed
	}
	return ""
}

func durationSeconds(metadata map[string]dbus.Variant) float64 {
	variant, ok := metadata["mpris:length"]
	if !ok {
		return 0
	}
	switch typed := variant.Value().(type) {
	case int64:
		if typed > 0 {
			return float64(typed) / 1_000_000
		}
	case uint64:
		return float64(typed) / 1_000_000
	}
	return 0
}
