package enrich

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"karolbroda.com/lyricfloat/internal/lyrics"
)

// MaxInFlight caps simultaneous enrichment tasks to stay under the translation
// service's rate limits.
const MaxInFlight = 3

// Task asks for romanization and/or translation of one lyric line. TrackKey and
// Generation identify the line array the result is meant for.
type Task struct {
	TrackKey    string
	Generation  uint64
	Index       int
	Text        string
	Romanize    bool
	TranslateTo string
}

type Result struct {
	Task
	Romaji      string
	Translation string
}

type Translator interface {
	Romanize(ctx context.Context, text string) (string, error)
	Translate(ctx context.Context, text string, lang string) (string, error)
}

// Sink stores results. Apply returns false when the result was stale and dropped.
type Sink interface {
	Apply(r Result) bool
}

type SinkFunc func(r Result) bool

func (f SinkFunc) Apply(r Result) bool { return f(r) }

type Stats struct {
	Applied   int64
	Discarded int64
	Peak      int64
}

type Scheduler struct {
	translator Translator
	sink       Sink
	logger     *slog.Logger
	sem        *semaphore.Weighted

	mu    sync.Mutex
	queue []Task
	wake  chan struct{}

	wg        sync.WaitGroup
	inFlight  atomic.Int64
	peak      atomic.Int64
	applied   atomic.Int64
	discarded atomic.Int64
}

func New(translator Translator, sink Sink, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		translator: translator,
		sink:       sink,
		logger:     logger,
		sem:        semaphore.NewWeighted(MaxInFlight),
		wake:       make(chan struct{}, 1),
	}
}

func (s *Scheduler) Enqueue(tasks ...Task) {
	if len(tasks) == 0 {
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, tasks...)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Clear drops every queued task that has not been dispatched yet. Tasks
// already running finish and are filtered by the sink.
func (s *Scheduler) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	s.queue = nil
	return n
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) InFlight() int {
	return int(s.inFlight.Load())
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Applied:   s.applied.Load(),
		Discarded: s.discarded.Load(),
		Peak:      s.peak.Load(),
	}
}

// Run dispatches queued tasks until ctx is cancelled. A slot is taken before a
// task is popped, so Clear never races a task that is about to start.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.wg.Wait()

	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return err
		}

		task, err := s.next(ctx)
		if err != nil {
			s.sem.Release(1)
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			defer s.inFlight.Add(-1)
			s.process(ctx, task)
		}()
	}
}

// WaitIdle blocks until nothing is queued or running.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.Pending() == 0 && s.InFlight() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) next(ctx context.Context) (Task, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			task := s.queue[0]
			s.queue = s.queue[1:]
			// counted before unlock so WaitIdle never sees an empty queue with nothing running
			s.started()
			s.mu.Unlock()
			return task, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Task{}, ctx.Err()
		case <-s.wake:
		}
	}
}

func (s *Scheduler) started() {
	n := s.inFlight.Add(1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (s *Scheduler) process(ctx context.Context, task Task) {
	res := Result{Task: task}

	var g errgroup.Group
	if task.Romanize {
		g.Go(func() error {
			romaji, err := s.translator.Romanize(ctx, task.Text)
			if err != nil {
				s.logger.Debug("romanize failed", "track", task.TrackKey, "line", task.Index, "error", err)
				return nil
			}
			res.Romaji = romaji
			return nil
		})
	}
	if task.TranslateTo != "" {
		g.Go(func() error {
			translated, err := s.translator.Translate(ctx, task.Text, task.TranslateTo)
			if err != nil {
				s.logger.Debug("translate failed", "track", task.TrackKey, "line", task.Index, "error", err)
				return nil
			}
			res.Translation = translated
			return nil
		})
	}
	_ = g.Wait()

	if res.Romaji == "" && res.Translation == "" {
		return
	}

	if s.sink.Apply(res) {
		s.applied.Add(1)
		return
	}
	s.discarded.Add(1)
	s.logger.Debug("discarded stale enrichment", "track", task.TrackKey, "generation", task.Generation, "line", task.Index)
}

// Plan builds the tasks needed for lines. Lines with CJK or Hangul text get
// romanized; every line gets translated when lang is set.
func Plan(trackKey string, generation uint64, lines []lyrics.Line, lang string) []Task {
	if _, ok := lyrics.SentinelText(lines); ok {
		return nil
	}

	var tasks []Task
	for i, line := range lines {
		task := Task{
			TrackKey:   trackKey,
			Generation: generation,
			Index:      i,
			Text:       line.Text,
			Romanize:   line.Romaji == "" && ContainsCJK(line.Text),
		}
		if lang != "" && line.Translation == "" {
			task.TranslateTo = lang
		}
		if task.Romanize || task.TranslateTo != "" {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

func ContainsCJK(text string) bool {
	for _, r := range text {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han, unicode.Hangul) {
			return true
		}
	}
	return false
}
