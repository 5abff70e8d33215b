package control

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseArgs builds a command from ctl-style words, e.g. "offset +100" or
// "select lrclib 123". The result is validated.
func ParseArgs(args []string) (Command, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no command given", ErrInvalidCommand)
	}

	name, rest := strings.ToLower(args[0]), args[1:]
	var cmd Command

	switch name {
	case "translate", "translation":
		t := ToggleTranslation{}
		if len(rest) > 0 {
			on, err := parseSwitch(rest[0])
			if err != nil {
				return nil, err
			}
			t.Enabled = &on
		}
		cmd = t
	case "lang", "language":
		if len(rest) != 1 {
			return nil, fmt.Errorf("%w: usage: lang <code>", ErrInvalidCommand)
		}
		cmd = SetLanguage{Lang: rest[0]}
	case "offset":
		if len(rest) != 1 {
			return nil, fmt.Errorf("%w: usage: offset <+ms|-ms>", ErrInvalidCommand)
		}
		delta, err := strconv.Atoi(strings.TrimPrefix(rest[0], "+"))
		if err != nil {
			return nil, fmt.Errorf("%w: offset %q is not a number", ErrInvalidCommand, rest[0])
		}
		cmd = AdjustOffset{DeltaMs: delta}
	case "select":
		if len(rest) != 2 {
			return nil, fmt.Errorf("%w: usage: select <source> <id>", ErrInvalidCommand)
		}
		cmd = SelectResult{Source: rest[0], ID: rest[1]}
	case "upload":
		cmd = UploadLocal{Text: strings.Join(rest, "\n")}
	case "clear":
		cmd = ClearOverride{}
	case "search":
		s := Search{}
		if len(rest) > 0 {
			s.Title = rest[0]
		}
		if len(rest) > 1 {
			s.Artist = strings.Join(rest[1:], " ")
		}
		cmd = s
	case "state", "status":
		cmd = QueryState{}
	case "play", "pause", "play-pause", "toggle":
		cmd = Transport{Action: ActionPlayPause}
	case "next":
		cmd = Transport{Action: ActionNext}
	case "prev", "previous":
		cmd = Transport{Action: ActionPrevious}
	case "mute":
		cmd = Transport{Action: ActionMute}
	case "captions", "cc":
		cmd = Transport{Action: ActionCaptions}
	case "seek":
		if len(rest) != 1 {
			return nil, fmt.Errorf("%w: usage: seek <fraction>", ErrInvalidCommand)
		}
		f, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: seek %q is not a number", ErrInvalidCommand, rest[0])
		}
		cmd = Transport{Action: ActionSeek, Fraction: f}
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, args[0])
	}

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func parseSwitch(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected on or off, got %q", ErrInvalidCommand, raw)
}
