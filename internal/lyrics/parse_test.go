package lyrics

import (
	"math"
	"testing"
)

func TestParseSortsOutOfOrderLrc(t *testing.T) {
	lines := Parse("[00:12.50]Hello\n[00:08.00]World", 0)

	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Text != "World" || lines[0].Time != 8.0 {
		t.Errorf("first line = %+v", lines[0])
	}
	if lines[1].Text != "Hello" || lines[1].Time != 12.5 {
		t.Errorf("second line = %+v", lines[1])
	}
}

func TestParsePseudoSync(t *testing.T) {
	lines := Parse("Line one\nLine two\n\n  Line three  ", 180)

	want := []float64{0, 60, 120}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i, w := range want {
		if lines[i].Time != w {
			t.Errorf("line %d time = %v, want %v", i, lines[i].Time, w)
		}
	}
	if lines[2].Text != "Line three" {
		t.Errorf("text not trimmed: %q", lines[2].Text)
	}
}

func TestParsePseudoSyncDefaultDuration(t *testing.T) {
	lines := Parse("a\nb", 0)
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[1].Time != DefaultPseudoDuration/2 {
		t.Errorf("second line time = %v", lines[1].Time)
	}
}

func TestParseEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Line
	}{
		{
			name: "empty",
			raw:  "",
			want: []Line{{Time: 0, Text: TextUnavailable}},
		},
		{
			name: "blank only",
			raw:  "\n   \n",
			want: []Line{{Time: 0, Text: TextUnavailable}},
		},
		{
			name: "timestamps without text",
			raw:  "[00:01.00]\n[00:02.00]   ",
			want: []Line{{Time: 0, Text: TextUnavailable}},
		},
		{
			name: "metadata tags skipped",
			raw:  "[ar:Someone]\n[ti:Song]\n\n[00:01.00]first",
			want: []Line{{Time: 1, Text: "first"}},
		},
		{
			name: "repeated tags",
			raw:  "[00:05.00][00:01.00]chorus\n[00:03.00]verse",
			want: []Line{{Time: 1, Text: "chorus"}, {Time: 3, Text: "verse"}, {Time: 5, Text: "chorus"}},
		},
		{
			name: "crlf and no fraction",
			raw:  "[01:02]one\r\n[01:03.5]two",
			want: []Line{{Time: 62, Text: "one"}, {Time: 63.5, Text: "two"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw, 0)
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if math.Abs(got[i].Time-tt.want[i].Time) > 1e-9 || got[i].Text != tt.want[i].Text {
					t.Errorf("line %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseMonotonic(t *testing.T) {
	inputs := []string{
		"[00:30.00]c\n[00:10.00]a\n[00:20.00]b\n[00:20.00]b2",
		"[02:00.00]late\nplain row\n[00:00.10]early",
		"one\ntwo\nthree\nfour\nfive",
	}

	for _, raw := range inputs {
		lines := Parse(raw, 123)
		for i := 0; i+1 < len(lines); i++ {
			if lines[i].Time > lines[i+1].Time {
				t.Errorf("%q: line %d (%v) after line %d (%v)", raw, i, lines[i].Time, i+1, lines[i+1].Time)
			}
		}
	}
}

func TestIsSynced(t *testing.T) {
	if !IsSynced("[ar:x]\n[00:01.00]hi") {
		t.Error("expected synced")
	}
	if IsSynced("just words\n[ar:x]") {
		t.Error("expected unsynced")
	}
}

func TestFindActiveIndex(t *testing.T) {
	lines := []Line{{Time: 5}, {Time: 10}, {Time: 10}, {Time: 20}}

	tests := []struct {
		pos  float64
		want int
	}{
		{0, 0},
		{4.99, 0},
		{5, 0},
		{9.9, 0},
		{10, 2},
		{19.99, 2},
		{20, 3},
		{500, 3},
	}

	for _, tt := range tests {
		if got := FindActiveIndex(lines, tt.pos); got != tt.want {
			t.Errorf("FindActiveIndex(%v) = %d, want %d", tt.pos, got, tt.want)
		}
	}

	if got := FindActiveIndex(nil, 3); got != 0 {
		t.Errorf("empty lines = %d, want 0", got)
	}
}

func TestSentinelText(t *testing.T) {
	if text, ok := SentinelText(Sentinel(TextNetworkError)); !ok || text != TextNetworkError {
		t.Errorf("got %q %v", text, ok)
	}
	if _, ok := SentinelText([]Line{{Time: 0, Text: "real lyric"}}); ok {
		t.Error("real lyric reported as sentinel")
	}
}
