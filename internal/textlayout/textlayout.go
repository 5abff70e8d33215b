// Package textlayout word-wraps text against a pixel width and memoizes the
// result, since measuring is the expensive part of laying out a frame.
package textlayout

import (
	"strings"
	"sync"
)

const defaultCacheLimit = 4096

// Font describes how a run of text is drawn. It is comparable and used as part
// of the wrap cache key.
type Font struct {
	Family string
	Size   float64
	Weight int
	Italic bool
}

// Measurer returns the drawn width of text in pixels.
type Measurer interface {
	Measure(text string, font Font) float64
}

type MeasureFunc func(text string, font Font) float64

func (f MeasureFunc) Measure(text string, font Font) float64 {
	return f(text, font)
}

type wrapKey struct {
	text  string
	width float64
	font  Font
}

type Engine struct {
	measurer Measurer
	limit    int

	mu    sync.Mutex
	cache map[wrapKey][]string
}

func New(measurer Measurer) *Engine {
	return &Engine{
		measurer: measurer,
		limit:    defaultCacheLimit,
		cache:    make(map[wrapKey][]string),
	}
}

// Wrap splits text into rows no wider than width. Words are kept whole unless a
// single word is wider than the row, in which case it is broken between runes.
// Empty text has no rows.
func (e *Engine) Wrap(text string, width float64, font Font) []string {
	if text == "" {
		return nil
	}

	key := wrapKey{text: text, width: width, font: font}

	e.mu.Lock()
	rows, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		return rows
	}

	rows = e.wrap(text, width, font)

	e.mu.Lock()
	if len(e.cache) >= e.limit {
		e.cache = make(map[wrapKey][]string)
	}
	e.cache[key] = rows
	e.mu.Unlock()

	return rows
}

func (e *Engine) LineCount(text string, width float64, font Font) int {
	return len(e.Wrap(text, width, font))
}

func (e *Engine) Measure(text string, font Font) float64 {
	return e.measurer.Measure(text, font)
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

func (e *Engine) Reset() {
	e.mu.Lock()
	e.cache = make(map[wrapKey][]string)
	e.mu.Unlock()
}

func (e *Engine) wrap(text string, width float64, font Font) []string {
	words := strings.Split(text, " ")

	var rows []string
	line := ""

	for n, word := range words {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}

		if e.measurer.Measure(candidate, font) > width && n > 0 && line != "" {
			rows = append(rows, line)
			line = word
		} else {
			line = candidate
		}

		if e.measurer.Measure(line, font) > width {
			broken := e.breakRunes(line, width, font)
			rows = append(rows, broken[:len(broken)-1]...)
			line = broken[len(broken)-1]
		}
	}
	rows = append(rows, line)

	return rows
}

func (e *Engine) breakRunes(word string, width float64, font Font) []string {
	var rows []string
	var current []rune

	for _, r := range word {
		next := append(current, r)
		if len(current) > 0 && e.measurer.Measure(string(next), font) > width {
			rows = append(rows, string(current))
			current = []rune{r}
			continue
		}
		current = next
	}
	return append(rows, string(current))
}
