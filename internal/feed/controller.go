package feed

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/quillfeed/quill/internal/apierr"
)

const defaultEventBuffer = 16

// Option configures a Controller.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	eventBuffer int
}

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEventBuffer sets the capacity of the Events channel.
func WithEventBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

// Controller pages through a feed, merging pages into an ordered collection
// without duplicate ids. At most one fetch is in flight at a time; requests
// made while fetching are dropped.
//
// The controller never touches the session. An unauthorized response, or a
// missing token, is reported as a SessionExpired event for the caller to act on.
type Controller[T Item] struct {
	fetcher Fetcher[T]
	tokens  TokenSource
	logger  *slog.Logger

	base       context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	// emitMu orders event delivery with state transitions. It is always
	// taken before mu.
	emitMu sync.Mutex
	events chan Event[T]

	mu     sync.Mutex
	items  []T
	seen   map[int64]struct{}
	cursor Cursor
	status Status
	err    error
	gen    uint64
	stale  chan struct{}
	cancel context.CancelFunc
	closed bool
}

// New creates an idle controller. Nothing is fetched until RequestNextPage
// or Reset is called.
func New[T Item](fetcher Fetcher[T], tokens TokenSource, opts ...Option) *Controller[T] {
	o := options{eventBuffer: defaultEventBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	base, cancel := context.WithCancel(context.Background())
	return &Controller[T]{
		fetcher:    fetcher,
		tokens:     tokens,
		logger:     o.logger,
		base:       base,
		baseCancel: cancel,
		events:     make(chan Event[T], o.eventBuffer),
		seen:       make(map[int64]struct{}),
		cursor:     initialCursor(),
		stale:      make(chan struct{}),
	}
}

// Events delivers fetch outcomes in the order the state changed. The channel
// is closed by Close.
func (c *Controller[T]) Events() <-chan Event[T] {
	return c.events
}

// RequestNextPage starts fetching the page at the cursor. It returns false
// without changing anything when a fetch is already in flight, when the feed
// has no more pages, or after Close.
func (c *Controller[T]) RequestNextPage(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx)
}

// Reset drops all items, rewinds the cursor to page 1 and immediately
// requests it. A fetch in flight is canceled and its result discarded, as is
// any event from an earlier generation still waiting in the Events channel.
func (c *Controller[T]) Reset(ctx context.Context) bool {
	// Release a sender blocked on a full channel; it holds emitMu.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.invalidateLocked()
	c.mu.Unlock()

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	// A fetch started between the two critical sections belongs to the
	// collection being dropped.
	c.invalidateLocked()
	c.dropStaleEventsLocked()

	c.items = nil
	c.seen = make(map[int64]struct{})
	c.cursor = initialCursor()
	c.status = StatusIdle
	c.err = nil
	return c.startLocked(ctx)
}

// invalidateLocked cancels the fetch in flight and moves to a new generation.
func (c *Controller[T]) invalidateLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	close(c.stale)
	c.stale = make(chan struct{})
}

// dropStaleEventsLocked removes buffered events from earlier generations,
// keeping the rest in order. The caller holds emitMu so no send can interleave.
func (c *Controller[T]) dropStaleEventsLocked() {
	var keep []Event[T]
drain:
	for {
		select {
		case ev := <-c.events:
			if ev.gen == c.gen {
				keep = append(keep, ev)
			}
		default:
			break drain
		}
	}
	for _, ev := range keep {
		c.events <- ev
	}
}

func (c *Controller[T]) startLocked(ctx context.Context) bool {
	if c.closed || c.status == StatusFetching || !c.cursor.HasMore {
		return false
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.base, cancel)

	c.status = StatusFetching
	c.cancel = cancel
	gen, stale := c.gen, c.stale
	page := c.cursor.CurrentPage

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer stop()
		defer cancel()
		c.fetch(fetchCtx, gen, stale, page)
	}()
	return true
}

func (c *Controller[T]) fetch(ctx context.Context, gen uint64, stale <-chan struct{}, page int) {
	c.logger.Debug("feed fetch started", "page", page)

	var (
		result Page[T]
		err    error
	)
	token, ok := c.tokens.Token(ctx)
	if !ok {
		err = apierr.Unauthenticated("fetch page")
	} else {
		result, err = c.fetcher.FetchPage(ctx, token, page)
	}

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	ev, current := c.apply(gen, page, result, err)
	if !current {
		c.logger.Debug("feed fetch discarded", "page", page)
		return
	}
	select {
	case c.events <- ev:
	case <-stale:
		c.logger.Debug("feed event dropped after reset", "page", page)
	case <-c.base.Done():
	}
}

// apply performs the state transition for a finished fetch. It reports false
// when the fetch was superseded by Reset or Close.
func (c *Controller[T]) apply(gen uint64, page int, result Page[T], err error) (Event[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen {
		return Event[T]{}, false
	}
	c.cancel = nil

	switch {
	case err == nil:
		added := c.mergeLocked(result.Items)
		served := result.CurrentPage
		if served <= 0 {
			served = page
		}
		c.cursor = Cursor{
			CurrentPage: served + 1,
			LastPage:    max(result.LastPage, served),
			HasMore:     served < result.LastPage,
		}
		c.status = StatusIdle
		c.err = nil
		c.logger.Debug("feed page appended",
			"page", served,
			"last_page", result.LastPage,
			"new_items", len(added),
			"total_items", len(c.items),
		)
		return Event[T]{Kind: PageAppended, Items: added, Page: served, gen: gen}, true

	case apierr.IsUnauthorized(err):
		c.status = StatusIdle
		c.err = err
		c.logger.Info("feed session expired", "page", page)
		return Event[T]{Kind: SessionExpired, Page: page, Err: err, gen: gen}, true

	default:
		c.status = StatusError
		c.err = err
		c.logger.Warn("feed fetch failed", "page", page, "error", err)
		return Event[T]{Kind: FetchFailed, Page: page, Err: err, gen: gen}, true
	}
}

func (c *Controller[T]) mergeLocked(items []T) []T {
	var added []T
	for _, item := range items {
		id := item.ItemID()
		if _, dup := c.seen[id]; dup {
			continue
		}
		c.seen[id] = struct{}{}
		c.items = append(c.items, item)
		added = append(added, item)
	}
	return added
}

// Items returns a copy of the merged items in arrival order.
func (c *Controller[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Snapshot returns items, cursor, status and the last error together.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot[T]{
		Items:  slices.Clone(c.items),
		Cursor: c.cursor,
		Status: c.status,
		Err:    c.err,
	}
}

// Remove drops the item with id from the collection, for example after the
// caller deleted it on the server. It reports whether the item was present.
func (c *Controller[T]) Remove(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[id]; !ok {
		return false
	}
	delete(c.seen, id)
	c.items = slices.DeleteFunc(c.items, func(item T) bool { return item.ItemID() == id })
	return true
}

// Close cancels any fetch in flight, waits for it to finish and closes the
// Events channel. Close is idempotent.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.baseCancel()
	c.wg.Wait()

	c.emitMu.Lock()
	close(c.events)
	c.emitMu.Unlock()
}
