// Package coord runs tailfeed's background loops: tailing RSS sources into
// conversations and watching the store for messages written by other
// processes.
package coord

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/tailfeed/internal/feed"
	"github.com/abelbrown/tailfeed/internal/fetch"
	"github.com/abelbrown/tailfeed/internal/logging"
	"github.com/abelbrown/tailfeed/internal/otel"
	"github.com/abelbrown/tailfeed/internal/store"
	"github.com/abelbrown/tailfeed/internal/ui"
)

// maxConcurrentFetches limits parallel fetch operations.
const maxConcurrentFetches = 4

// DefaultWatchInterval is how often the store watermark is polled.
const DefaultWatchInterval = time.Second

// fetcher interface for dependency injection (testing).
type fetcher interface {
	Fetch(ctx context.Context, src fetch.Source) ([]feed.Item, error)
}

// Sender delivers messages to the UI. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Options tune the loops. Zero values take defaults.
type Options struct {
	FetchInterval time.Duration
	FetchTimeout  time.Duration
	WatchInterval time.Duration
}

// Coordinator manages background fetching and store watching.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	store   *store.Store
	fetcher fetcher
	sources []fetch.Source // IMMUTABLE: set at construction, never modified
	opts    Options
	events  *otel.Logger
	log     *log.Logger
	wg      sync.WaitGroup
}

// NewCoordinator creates a Coordinator with the real fetcher.
func NewCoordinator(s *store.Store, f *fetch.Fetcher, sources []fetch.Source, opts Options) *Coordinator {
	return NewCoordinatorWithFetcher(s, f, sources, opts)
}

// NewCoordinatorWithFetcher allows injecting a custom fetcher (for testing).
func NewCoordinatorWithFetcher(s *store.Store, f fetcher, sources []fetch.Source, opts Options) *Coordinator {
	sourcesCopy := make([]fetch.Source, len(sources))
	copy(sourcesCopy, sources)

	if opts.FetchInterval <= 0 {
		opts.FetchInterval = 5 * time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = DefaultWatchInterval
	}

	return &Coordinator{
		store:   s,
		fetcher: f,
		sources: sourcesCopy,
		opts:    opts,
		log:     logging.WithPrefix("coord"),
	}
}

// SetEvents attaches a structured event logger. Nil disables events.
func (c *Coordinator) SetEvents(l *otel.Logger) {
	c.events = l
}

// Start begins background fetching. Call with a cancellable context.
// Performs an initial fetch immediately, then one per interval. With no
// sources, Start does nothing.
func (c *Coordinator) Start(ctx context.Context, out Sender) {
	if len(c.sources) == 0 {
		return
	}

	for _, src := range c.sources {
		if err := c.store.EnsureConversation(src.ConversationID(), src.Name); err != nil {
			c.log.Warn("ensure conversation", "source", src.Name, "err", err)
		}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.FetchAll(ctx, out)

		ticker := time.NewTicker(c.opts.FetchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.FetchAll(ctx, out)
			}
		}
	}()
}

// Watch polls the store watermark and sends ui.MessagesChanged whenever
// it moves. This is how messages written by tfctl reach a running viewer.
func (c *Coordinator) Watch(ctx context.Context, out Sender) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		last, err := c.store.Watermark()
		if err != nil {
			c.log.Warn("read watermark", "err", err)
		}

		ticker := time.NewTicker(c.opts.WatchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w, err := c.store.Watermark()
				if err != nil {
					c.events.Error(otel.KindStoreError, "coord", err)
					continue
				}
				if w == last {
					continue
				}
				last = w
				if out != nil {
					out.Send(ui.MessagesChanged{Watermark: w})
				}
			}
		}
	}()
}

// Wait blocks until the background goroutines exit.
// Call after canceling the context passed to Start and Watch.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// FetchAll fetches all sources in parallel and blocks until done.
// Sends one ui.FetchComplete per source (order non-deterministic).
func (c *Coordinator) FetchAll(ctx context.Context, out Sender) {
	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)

	for _, src := range c.sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			c.fetchSource(ctx, src, out)
			return nil // never fail the group - errors reported per-source
		})
	}

	_ = g.Wait()
}

// fetchSource fetches and stores a single source with a timeout.
func (c *Coordinator) fetchSource(ctx context.Context, src fetch.Source, out Sender) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()

	conv := src.ConversationID()
	c.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFetchStart, Comp: "coord", Feed: conv, Source: src.Name})

	start := time.Now()
	items, err := c.fetcher.Fetch(fetchCtx, src)

	newItems := 0
	if err == nil && len(items) > 0 {
		newItems, err = c.store.AppendMessages(conv, items)
	}

	if err != nil {
		c.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFetchError, Comp: "coord", Feed: conv, Source: src.Name, Err: err.Error()})
		c.log.Warn("fetch failed", "source", src.Name, "err", err)
	} else {
		c.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFetchComplete, Comp: "coord", Feed: conv, Source: src.Name, Count: newItems, Dur: time.Since(start)})
	}

	if out != nil {
		out.Send(ui.FetchComplete{
			Source:       src.Name,
			Conversation: conv,
			NewItems:     newItems,
			Err:          err,
		})
	}
}
