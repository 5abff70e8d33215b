package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"

	"karolbroda.com/lyricfloat/internal/lyrics"
)

type slowTranslator struct {
	delay      time.Duration
	current    atomic.Int64
	peak       atomic.Int64
	failTransl bool
}

func (s *slowTranslator) enter() func() {
	n := s.current.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return func() { s.current.Add(-1) }
}

func (s *slowTranslator) Romanize(ctx context.Context, text string) (string, error) {
	defer s.enter()()
	time.Sleep(s.delay)
	return "romaji:" + text, nil
}

func (s *slowTranslator) Translate(ctx context.Context, text string, lang string) (string, error) {
	time.Sleep(s.delay)
	if s.failTransl {
		return "", errors.New("rate limited")
	}
	return lang + ":" + text, nil
}

type recordingSink struct {
	mu      sync.Mutex
	liveKey string
	results []Result
}

func (r *recordingSink) Apply(res Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.TrackKey != r.liveKey {
		return false
	}
	r.results = append(r.results, res)
	return true
}

func (r *recordingSink) setKey(key string) {
	r.mu.Lock()
	r.liveKey = key
	r.mu.Unlock()
}

func (r *recordingSink) snapshot() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	return out
}

func runScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.WaitIdle(ctx); err != nil {
		t.Fatalf("scheduler never went idle: %v", err)
	}
}

func TestConcurrencyCeiling(t *testing.T) {
	tr := &slowTranslator{delay: 20 * time.Millisecond}
	sink := &recordingSink{liveKey: "a - b"}
	s := New(tr, sink, nil)

	var tasks []Task
	for i := 0; i < 20; i++ {
		tasks = append(tasks, Task{TrackKey: "a - b", Index: i, Text: "歌", Romanize: true})
	}
	s.Enqueue(tasks...)
	runScheduler(t, s)
	waitIdle(t, s)

	if got := s.Stats().Peak; got > MaxInFlight {
		t.Errorf("scheduler peak = %d, want <= %d", got, MaxInFlight)
	}
	if got := tr.peak.Load(); got > MaxInFlight {
		t.Errorf("translator saw %d concurrent requests, want <= %d", got, MaxInFlight)
	}
	if got := len(sink.snapshot()); got != 20 {
		t.Errorf("applied %d results, want 20", got)
	}
}

func TestFIFOOrderWithSingleSlot(t *testing.T) {
	var mu sync.Mutex
	var order []int

	sink := SinkFunc(func(r Result) bool {
		mu.Lock()
		order = append(order, r.Index)
		mu.Unlock()
		return true
	})
	s := New(&slowTranslator{}, sink, nil)
	s.sem = semaphore.NewWeighted(1)

	for i := 0; i < 5; i++ {
		s.Enqueue(Task{TrackKey: "k", Index: i, Text: "x", TranslateTo: "en"})
	}
	runScheduler(t, s)
	waitIdle(t, s)

	mu.Lock()
	defer mu.Unlock()
	for i, idx := range order {
		if idx != i {
			t.Fatalf("dispatch order = %v, want ascending", order)
		}
	}
}

func TestStaleResultsDiscarded(t *testing.T) {
	tr := &slowTranslator{delay: 50 * time.Millisecond}
	sink := &recordingSink{liveKey: "old - song"}
	s := New(tr, sink, nil)

	runScheduler(t, s)
	s.Enqueue(Task{TrackKey: "old - song", Index: 0, Text: "夢", Romanize: true})

	deadline := time.Now().Add(time.Second)
	for s.InFlight() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	sink.setKey("new - song")
	waitIdle(t, s)

	if got := sink.snapshot(); len(got) != 0 {
		t.Errorf("stale result applied: %+v", got)
	}
	if s.Stats().Discarded != 1 {
		t.Errorf("discarded = %d, want 1", s.Stats().Discarded)
	}
}

func TestClearDropsPending(t *testing.T) {
	s := New(&slowTranslator{}, &recordingSink{}, nil)
	s.Enqueue(Task{Index: 0, Romanize: true}, Task{Index: 1, Romanize: true})
	if n := s.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if s.Pending() != 0 {
		t.Error("queue not empty after Clear")
	}
}

func TestFailureLeavesFieldEmpty(t *testing.T) {
	tr := &slowTranslator{failTransl: true}
	sink := &recordingSink{liveKey: "k"}
	s := New(tr, sink, nil)

	s.Enqueue(Task{TrackKey: "k", Text: "夢", Romanize: true, TranslateTo: "id"})
	runScheduler(t, s)
	waitIdle(t, s)

	got := sink.snapshot()
	if len(got) != 1 {
		t.Fatalf("got %d results", len(got))
	}
	if got[0].Romaji != "romaji:夢" || got[0].Translation != "" {
		t.Errorf("result = %+v", got[0])
	}
}

func TestPlan(t *testing.T) {
	lines := []lyrics.Line{
		{Time: 0, Text: "Hello"},
		{Time: 1, Text: "夢ならば"},
		{Time: 2, Text: "사랑해", Romaji: "saranghae"},
	}

	tasks := Plan("k", 7, lines, "")
	if len(tasks) != 1 || tasks[0].Index != 1 || !tasks[0].Romanize || tasks[0].TranslateTo != "" {
		t.Errorf("romanize-only plan = %+v", tasks)
	}

	tasks = Plan("k", 7, lines, "id")
	if len(tasks) != 3 {
		t.Fatalf("translate plan = %+v", tasks)
	}
	if tasks[0].Romanize || tasks[0].TranslateTo != "id" || tasks[0].Generation != 7 {
		t.Errorf("latin line task = %+v", tasks[0])
	}
	if tasks[2].Romanize {
		t.Error("already romanized line requested again")
	}

	if got := Plan("k", 1, lyrics.Sentinel(lyrics.TextNotFound), "id"); got != nil {
		t.Errorf("sentinel should not be enriched: %+v", got)
	}
}

func TestContainsCJK(t *testing.T) {
	for _, s := range []string{"夢", "ひらがな", "カタカナ", "한국어", "mixed 中文"} {
		if !ContainsCJK(s) {
			t.Errorf("ContainsCJK(%q) = false", s)
		}
	}
	for _, s := range []string{"hello", "Beyoncé", strings.Repeat("a", 10)} {
		if ContainsCJK(s) {
			t.Errorf("ContainsCJK(%q) = true", s)
		}
	}
}
