package lyrics

import "sort"

const (
	TextNotFound     = "No lyrics found"
	TextUnavailable  = "No Lyrics Available"
	TextNetworkError = "Network Error"
)

// Line is one displayed lyric row. Romaji and Translation start empty and are
// filled in later by the enrichment pipeline.
type Line struct {
	Time        float64
	Text        string
	Romaji      string
	Translation string
}

func Sentinel(text string) []Line {
	return []Line{{Time: 0, Text: text}}
}

// SentinelText reports which placeholder the lines hold, if any.
func SentinelText(lines []Line) (string, bool) {
	if len(lines) != 1 || lines[0].Time != 0 {
		return "", false
	}
	switch lines[0].Text {
	case TextNotFound, TextUnavailable, TextNetworkError:
		return lines[0].Text, true
	}
	return "", false
}

func Clone(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}

// FindActiveIndex returns the last line whose time is <= position, or 0 when
// position is before the first line.
func FindActiveIndex(lines []Line, position float64) int {
	if len(lines) == 0 {
		return 0
	}

	idx := sort.Search(len(lines), func(i int) bool {
		return lines[i].Time > position
	}) - 1

	if idx < 0 {
		return 0
	}
	return idx
}
