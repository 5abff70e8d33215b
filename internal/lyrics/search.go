package lyrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

type Source int

const (
	PrimaryCatalog Source = iota
	RegionalCatalog
)

func (s Source) String() string {
	switch s {
	case PrimaryCatalog:
		return "lrclib"
	case RegionalCatalog:
		return "netease"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

func ParseSource(raw string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "lrclib", "primary", "api":
		return PrimaryCatalog, nil
	case "netease", "regional":
		return RegionalCatalog, nil
	}
	return 0, fmt.Errorf("unknown lyric source %q", raw)
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Candidate is one search hit. It lives only for the duration of a search.
type Candidate struct {
	ID           string  `json:"id"`
	Source       Source  `json:"source"`
	Name         string  `json:"name"`
	Artist       string  `json:"artist"`
	Album        string  `json:"album,omitempty"`
	DurationSecs float64 `json:"duration"`
	Synced       bool    `json:"synced"`
	Score        int     `json:"score"`
}

// Catalog is a remote lyric database.
type Catalog interface {
	Source() Source
	Search(ctx context.Context, q Query) ([]Candidate, error)
	Lyrics(ctx context.Context, id string) (string, error)
}

type Engine struct {
	primary  Catalog
	regional Catalog
	logger   *slog.Logger
}

func NewEngine(primary Catalog, regional Catalog, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		primary:  primary,
		regional: regional,
		logger:   logger,
	}
}

func (e *Engine) Catalog(src Source) (Catalog, bool) {
	switch src {
	case PrimaryCatalog:
		return e.primary, e.primary != nil
	case RegionalCatalog:
		return e.regional, e.regional != nil
	}
	return nil, false
}

// SearchAndScore queries both catalogs at once and returns the merged hits,
// best first. A failing catalog contributes nothing; it never fails the search.
func (e *Engine) SearchAndScore(ctx context.Context, q Query) []Candidate {
	var (
		g        errgroup.Group
		primary  []Candidate
		regional []Candidate
	)

	if e.primary != nil {
		g.Go(func() error {
			primary = e.query(ctx, e.primary, q)
			return nil
		})
	}

	if e.regional != nil {
		regionalQuery := Query{
			Title:        NormalizeText(q.Title),
			Artist:       NormalizeText(q.Artist),
			DurationSecs: q.DurationSecs,
		}
		g.Go(func() error {
			regional = e.query(ctx, e.regional, regionalQuery)
			return nil
		})
	}

	_ = g.Wait()

	merged := make([]Candidate, 0, len(primary)+len(regional))
	merged = append(merged, primary...)
	merged = append(merged, regional...)

	for i := range merged {
		merged[i].Score = ScoreMatch(q, merged[i])
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	return merged
}

func (e *Engine) query(ctx context.Context, catalog Catalog, q Query) (found []Candidate) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("catalog search panicked", "source", catalog.Source().String(), "panic", r)
			found = nil
		}
	}()

	results, err := catalog.Search(ctx, q)
	if err != nil {
		e.logger.Debug("catalog search failed", "source", catalog.Source().String(), "error", err)
		return nil
	}

	for i := range results {
		results[i].Source = catalog.Source()
	}
	return results
}
