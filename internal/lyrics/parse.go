package lyrics

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultPseudoDuration is used to spread plain lyrics when the track length is unknown.
const DefaultPseudoDuration = 200.0

var (
	leadingTags  = regexp.MustCompile(`^((?:\[\d+:\d+(?:\.\d+)?\])+)(.*)$`)
	timestampTag = regexp.MustCompile(`\[(\d+:\d+(?:\.\d+)?)\]`)
)

// Parse turns raw lyric text into time-ordered lines. Timestamped input is
// parsed as LRC; anything else is spread evenly across fallbackDuration.
func Parse(raw string, fallbackDuration float64) []Line {
	rows := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var lines []Line
	synced := false

	for _, row := range rows {
		stamps, text, ok := splitTimestamps(strings.TrimSpace(row))
		if !ok {
			continue
		}
		synced = true

		if text == "" {
			continue
		}
		for _, ts := range stamps {
			lines = append(lines, Line{Time: ts, Text: text})
		}
	}

	if synced {
		sort.SliceStable(lines, func(i, j int) bool {
			return lines[i].Time < lines[j].Time
		})
	} else {
		lines = pseudoSync(rows, fallbackDuration)
	}

	if len(lines) == 0 {
		return Sentinel(TextUnavailable)
	}
	return lines
}

// IsSynced reports whether raw carries at least one LRC timestamp line.
func IsSynced(raw string) bool {
	for _, row := range strings.Split(raw, "\n") {
		if _, _, ok := splitTimestamps(strings.TrimSpace(row)); ok {
			return true
		}
	}
	return false
}

func pseudoSync(rows []string, duration float64) []Line {
	var clean []string
	for _, row := range rows {
		if trimmed := strings.TrimSpace(row); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	if len(clean) == 0 {
		return nil
	}

	if duration <= 0 {
		duration = DefaultPseudoDuration
	}
	step := duration / float64(len(clean))

	lines := make([]Line, len(clean))
	for i, text := range clean {
		lines[i] = Line{Time: float64(i) * step, Text: text}
	}
	return lines
}

// splitTimestamps handles rows like "[00:12.50][01:02.00]text". Metadata tags
// such as [ar:...] never match.
func splitTimestamps(row string) ([]float64, string, bool) {
	if !strings.HasPrefix(row, "[") {
		return nil, "", false
	}

	match := leadingTags.FindStringSubmatch(row)
	if match == nil {
		return nil, "", false
	}

	var stamps []float64
	for _, tag := range timestampTag.FindAllStringSubmatch(match[1], -1) {
		seconds, err := parseLrcTime(tag[1])
		if err != nil {
			continue
		}
		stamps = append(stamps, seconds)
	}
	if len(stamps) == 0 {
		return nil, "", false
	}

	return stamps, strings.TrimSpace(match[2]), true
}

func parseLrcTime(raw string) (float64, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", raw)
	}

	minutes, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse minutes %q: %w", parts[0], err)
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse seconds %q: %w", parts[1], err)
	}

	total := minutes*60 + seconds
	if total < 0 {
		return 0, errors.New("negative time not allowed")
	}
	return total, nil
}
