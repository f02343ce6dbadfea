package coord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/tailfeed/internal/feed"
	"github.com/abelbrown/tailfeed/internal/fetch"
	"github.com/abelbrown/tailfeed/internal/store"
	"github.com/abelbrown/tailfeed/internal/ui"
)

// mockFetcher implements the fetcher interface for testing.
type mockFetcher struct {
	mu          sync.Mutex
	fetchedSrcs []fetch.Source
	failFor     map[string]error
	fetchDelay  time.Duration
	fetchCount  atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *mockFetcher) Fetch(ctx context.Context, src fetch.Source) ([]feed.Item, error) {
	m.fetchCount.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if m.fetchDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.fetchDelay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchedSrcs = append(m.fetchedSrcs, src)
	if err := m.failFor[src.Name]; err != nil {
		return nil, err
	}

	items := make([]feed.Item, 2)
	for i := range items {
		items[i] = feed.Item{ID: fmt.Sprintf("%s-%d", src.Name, i), Body: "entry"}
	}
	return items, nil
}

// recorder collects messages sent to the UI.
type recorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recorder) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) snapshot() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tea.Msg(nil), r.msgs...)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCoordinatorFetchesAllSources(t *testing.T) {
	s := openStore(t)
	f := &mockFetcher{}
	sources := []fetch.Source{
		{Name: "Alpha", URL: "http://a"},
		{Name: "Beta", URL: "http://b", Conversation: "beta-feed"},
	}

	c := NewCoordinatorWithFetcher(s, f, sources, Options{})
	rec := &recorder{}
	c.FetchAll(context.Background(), rec)

	if got := f.fetchCount.Load(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}

	for _, conv := range []string{"alpha", "beta-feed"} {
		items, err := s.Messages(conv, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 2 {
			t.Errorf("conversation %s has %d messages, want 2", conv, len(items))
		}
	}

	msgs := rec.snapshot()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 FetchComplete messages, got %d", len(msgs))
	}
	for _, m := range msgs {
		fc, ok := m.(ui.FetchComplete)
		if !ok {
			t.Fatalf("unexpected message %T", m)
		}
		if fc.NewItems != 2 || fc.Err != nil {
			t.Errorf("unexpected FetchComplete: %+v", fc)
		}
	}
}

func TestCoordinatorReportsErrorsPerSource(t *testing.T) {
	s := openStore(t)
	f := &mockFetcher{failFor: map[string]error{"Bad": errors.New("boom")}}
	sources := []fetch.Source{{Name: "Good"}, {Name: "Bad"}}

	c := NewCoordinatorWithFetcher(s, f, sources, Options{})
	rec := &recorder{}
	c.FetchAll(context.Background(), rec)

	var good, bad bool
	for _, m := range rec.snapshot() {
		fc := m.(ui.FetchComplete)
		switch fc.Source {
		case "Good":
			good = fc.Err == nil && fc.NewItems == 2
		case "Bad":
			bad = fc.Err != nil && fc.NewItems == 0
		}
	}
	if !good || !bad {
		t.Errorf("per-source results wrong: good=%v bad=%v", good, bad)
	}
}

func TestCoordinatorDuplicateFetchAddsNothing(t *testing.T) {
	s := openStore(t)
	f := &mockFetcher{}
	c := NewCoordinatorWithFetcher(s, f, []fetch.Source{{Name: "Alpha"}}, Options{})

	c.FetchAll(context.Background(), nil)
	rec := &recorder{}
	c.FetchAll(context.Background(), rec)

	fc := rec.snapshot()[0].(ui.FetchComplete)
	if fc.NewItems != 0 {
		t.Errorf("second fetch stored %d new messages, want 0", fc.NewItems)
	}
}

func TestCoordinatorLimitsConcurrency(t *testing.T) {
	s := openStore(t)
	f := &mockFetcher{fetchDelay: 20 * time.Millisecond}
	var sources []fetch.Source
	for i := 0; i < 10; i++ {
		sources = append(sources, fetch.Source{Name: fmt.Sprintf("src%d", i)})
	}

	c := NewCoordinatorWithFetcher(s, f, sources, Options{})
	c.FetchAll(context.Background(), nil)

	if got := f.maxInFlight.Load(); got > maxConcurrentFetches {
		t.Errorf("max in-flight fetches %d exceeds limit %d", got, maxConcurrentFetches)
	}
	if got := f.fetchCount.Load(); got != 10 {
		t.Errorf("expected 10 fetches, got %d", got)
	}
}

func TestCoordinatorStartCreatesConversationsAndStops(t *testing.T) {
	s := openStore(t)
	f := &mockFetcher{}
	c := NewCoordinatorWithFetcher(s, f, []fetch.Source{{Name: "Hacker News"}}, Options{FetchInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx, nil)

	deadline := time.Now().Add(2 * time.Second)
	for f.fetchCount.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop after cancel")
	}

	convs, err := s.Conversations()
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].ID != "hacker-news" || convs[0].Title != "Hacker News" {
		t.Errorf("unexpected conversations: %+v", convs)
	}
}

func TestCoordinatorStartWithoutSourcesIsNoop(t *testing.T) {
	s := openStore(t)
	c := NewCoordinatorWithFetcher(s, &mockFetcher{}, nil, Options{})
	c.Start(context.Background(), nil)
	c.Wait() // must not block
}

func TestWatchSendsOnChange(t *testing.T) {
	s := openStore(t)
	c := NewCoordinatorWithFetcher(s, &mockFetcher{}, nil, Options{WatchInterval: 5 * time.Millisecond})

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Wait()
	}()
	c.Watch(ctx, rec)

	// Let a few quiet ticks pass: nothing changed, nothing sent.
	time.Sleep(30 * time.Millisecond)
	if n := len(rec.snapshot()); n != 0 {
		t.Fatalf("watch sent %d messages without changes", n)
	}

	if _, err := s.AppendMessages("general", []feed.Item{{ID: "m1", Body: "hello"}}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	msgs := rec.snapshot()
	if len(msgs) == 0 {
		t.Fatal("watch did not report the append")
	}
	mc, ok := msgs[0].(ui.MessagesChanged)
	if !ok {
		t.Fatalf("unexpected message %T", msgs[0])
	}
	if mc.Watermark.Count != 1 {
		t.Errorf("watermark count %d, want 1", mc.Watermark.Count)
	}
}
