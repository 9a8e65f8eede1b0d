package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfeed/quill/internal/apierr"
)

type post struct {
	ID int64
}

func (p post) ItemID() int64 { return p.ID }

func posts(ids ...int64) []post {
	out := make([]post, len(ids))
	for i, id := range ids {
		out[i] = post{ID: id}
	}
	return out
}

func ids(items []post) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

type response struct {
	page Page[post]
	err  error
}

// scriptedFetcher answers each call with the next scripted response. When
// gate is non-nil every call blocks until a value is received from it.
type scriptedFetcher struct {
	mu        sync.Mutex
	responses []response
	calls     []int
	tokens    []string
	gate      chan struct{}
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, token string, page int) (Page[post], error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	f.tokens = append(f.tokens, token)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Page[post]{}, apierr.Network("fetch page", ctx.Err())
		}
		if err := ctx.Err(); err != nil {
			return Page[post]{}, apierr.Network("fetch page", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return Page[post]{}, errors.New("unexpected call")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r.page, r.err
}

func (f *scriptedFetcher) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

type staticTokens struct {
	token string
}

func (s staticTokens) Token(context.Context) (string, bool) {
	return s.token, s.token != ""
}

func ok(current, last int, items ...int64) response {
	return response{page: Page[post]{Items: posts(items...), CurrentPage: current, LastPage: last}}
}

func fail(err error) response {
	return response{err: err}
}

func newController(t *testing.T, f *scriptedFetcher) *Controller[post] {
	t.Helper()
	c := New[post](f, staticTokens{token: "tok"})
	t.Cleanup(c.Close)
	return c
}

func nextEvent(t *testing.T, c *Controller[post]) Event[post] {
	t.Helper()
	select {
	case ev, open := <-c.Events():
		require.True(t, open, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event[post]{}
	}
}

func assertNoEvent(t *testing.T, c *Controller[post]) {
	t.Helper()
	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestController_InitialState(t *testing.T) {
	c := newController(t, &scriptedFetcher{})
	snap := c.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, Cursor{CurrentPage: 1, LastPage: 1, HasMore: true}, snap.Cursor)
	assert.False(t, snap.Empty(), "an unfetched feed is not empty yet")
}

func TestController_FirstPageScenario(t *testing.T) {
	f := &scriptedFetcher{responses: []response{ok(1, 3, 1, 2)}}
	c := newController(t, f)

	require.True(t, c.RequestNextPage(context.Background()))
	ev := nextEvent(t, c)

	assert.Equal(t, PageAppended, ev.Kind)
	assert.Equal(t, []int64{1, 2}, ids(ev.Items))
	assert.Equal(t, 1, ev.Page)

	snap := c.Snapshot()
	assert.Equal(t, []int64{1, 2}, ids(snap.Items))
	assert.True(t, snap.Cursor.HasMore)
	assert.Equal(t, 2, snap.Cursor.CurrentPage, "next request targets page 2")
	assert.Equal(t, 3, snap.Cursor.LastPage)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, []string{"tok"}, f.tokens)
}

func TestController_OverlappingPageIsDeduplicated(t *testing.T) {
	f := &scriptedFetcher{responses: []response{ok(1, 3, 1, 2), ok(2, 3, 2, 3)}}
	c := newController(t, f)

	require.True(t, c.RequestNextPage(context.Background()))
	nextEvent(t, c)
	require.True(t, c.RequestNextPage(context.Background()))
	ev := nextEvent(t, c)

	assert.Equal(t, []int64{3}, ids(ev.Items), "event carries only new items")
	assert.Equal(t, []int64{1, 2, 3}, ids(c.Items()))
	assert.Equal(t, []int{1, 2}, f.Calls())
}

func TestController_NoDuplicatesAcrossManyPages(t *testing.T) {
	f := &scriptedFetcher{responses: []response{
		ok(1, 4, 1, 2, 3),
		ok(2, 4, 3, 4, 1),
		ok(3, 4, 5, 5, 6),
		ok(4, 4, 6, 7, 2),
	}}
	c := newController(t, f)

	for i := 0; i < 4; i++ {
		require.True(t, c.RequestNextPage(context.Background()))
		nextEvent(t, c)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, ids(c.Items()))
	assert.False(t, c.Snapshot().Cursor.HasMore)
	assert.False(t, c.RequestNextPage(context.Background()), "no request past the last page")
	assert.Equal(t, []int{1, 2, 3, 4}, f.Calls())
}

func TestController_SingleFlight(t *testing.T) {
	f := &scriptedFetcher{responses: []response{ok(1, 3, 1)}, gate: make(chan struct{})}
	c := newController(t, f)

	require.True(t, c.RequestNextPage(context.Background()))
	for i := 0; i < 10; i++ {
		assert.False(t, c.RequestNextPage(context.Background()), "request while fetching is dropped")
	}
	assert.Equal(t, StatusFetching, c.Snapshot().Status)

	f.gate <- struct{}{}
	nextEvent(t, c)
	assert.Equal(t, []int{1}, f.Calls())
}

func TestController_SingleFlightUnderConcurrentCallers(t *testing.T) {
	f := &scriptedFetcher{responses: []response{ok(1, 3, 1)}, gate: make(chan struct{})}
	c := newController(t, f)

	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.RequestNextPage(context.Background()) {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, started)

	close(f.gate)
	nextEvent(t, c)
	assert.Equal(t, []int{1}, f.Calls())
}

func TestController_ResetThenSinglePageHasNoMore(t *testing.T) {
	f := &scriptedFetcher{responses: []response{ok(1, 3, 1, 2), ok(1, 1, 9)}}
	c := newController(t, f)

	require.True(t, c.RequestNextPage(context.Background()))
	nextEvent(t, c)

	require.True(t, c.Reset(context.Background()))
	ev := nextEvent(t, c)
	assert.Equal(t, PageAppended, ev.Kind)

	snap := c.Snapshot()
	assert.Equal(t, []int64{9}, ids(snap.Items), "reset drops earlier items")
	assert.False(t, snap.Cursor.HasMore)
	assert.Equal(t, []int{1, 1}, f.Calls())
}

func TestController_EmptyFirstPageSettles(t *testing.T) {
	f := &scriptedFetcher{responses: []response{ok(1, 1)}}
	c := newController(t, f)

	require.True(t, c.RequestNextPage(context.Background()))
	ev := nextEvent(t, c)
	assert.Empty(t, ev.Items)

	snap := c.Snapshot()
	assert.True(t, snap.Empty())
	assert.Equal(t, StatusIdle, snap.Status)
	assert.False(t, snap.Cursor.HasMore)
}

func TestController_UnauthorizedLeavesStateAndEmitsOnce(t *testing.T) {
	unauthorized := apierr.FromResponse("fetch posts", 401, []byte(`{"message":"Unauthenticated."}`))
	f := &scriptedFetcher{responses: []response{ok(1, 3, 1, 2), fail(unauthorized)}}
	c := newController(t, f)

	require.True(t, c.RequestNextPage(context.Background()))
	nextEvent(t, c)
	before := c.Snapshot()

	require.True(t, c.RequestNextPage(context.Background()))
	ev := nextEvent(t, c)
	assert.Equal(t, SessionExpired, ev.Kind)
	assert.Equal(t, 2, ev.Page)
	assert.True(t, apierr.IsUnauthorized(ev.Err))
	assertNoEvent(t, c)

	after := c.Snapshot()
	assert.Equal(t, ids(before.Items), ids(after.Items))
	assert.Equal(t, before.Cursor, after.Cursor)
	assert.Equal(t, StatusIdle, after.Status)
}

func TestController_MissingTokenSkipsFetcher(t *testing.T) {
	f := &scriptedFetcher{}
	c := New[post](f, staticTokens{})
	t.Cleanup(c.Close)

	require.True(t, c.RequestNextPage(context.Background()))
	ev := nextEvent(t, c)
	assert.Equal(t, SessionExpired, ev.Kind)
	assert.True(t, apierr.IsUnauthorized(ev.Err))
	assert.Empty(t, f.Calls())
	assert.Equal(t, initialCursor(), c.Snapshot().Cursor)
}

func TestController_FailureIsRetryableOnSamePage(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"server", apierr.FromResponse("fetch posts", 500, nil)},
		{"network", apierr.Network("fetch posts", errors.New("connection refused"))},
		{"unprocessable", apierr.FromResponse("fetch posts", 422, []byte(`{"message":"bad page","errors":{"page":["invalid"]}}`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFetcher{responses: []response{ok(1, 3, 1), fail(tt.err), ok(2, 3, 2)}}
			c := newController(t, f)

			require.True(t, c.RequestNextPage(context.Background()))
			nextEvent(t, c)

			require.True(t, c.RequestNextPage(context.Background()))
			ev := nextEvent(t, c)
			assert.Equal(t, FetchFailed, ev.Kind)
			assert.ErrorIs(t, ev.Err, tt.err)

			snap := c.Snapshot()
			assert.Equal(t, StatusError, snap.Status)
			assert.Equal(t, 2, snap.Cursor.CurrentPage, "cursor unchanged")
			assert.Equal(t, tt.err, snap.Err)

			require.True(t, c.RequestNextPage(context.Background()), "error state accepts a new request")
			ev = nextEvent(t, c)
			assert.Equal(t, PageAppended, ev.Kind)
			assert.Equal(t, []int{1, 2, 2}, f.Calls(), "retry re-requests the same page")
			assert.Nil(t, c.Snapshot().Err)
		})
	}
}

func TestController_ResetDiscardsInFlightResult(t *testing.T) {
	f := &scriptedFetcher{gate: make(chan struct{})}
	c := newController(t, f)

	require.True(t, c.RequestNextPage(context.Background()))
	require.Eventually(t, func() bool { return len(f.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	f.mu.Lock()
	f.responses = []response{ok(1, 2, 5)}
	f.mu.Unlock()
	require.True(t, c.Reset(context.Background()), "reset starts a new fetch even while one is in flight")

	require.Eventually(t, func() bool { return len(f.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	close(f.gate)

	ev := nextEvent(t, c)
	assert.Equal(t, PageAppended, ev.Kind)
	assert.Equal(t, []int64{5}, ids(c.Items()))
	assertNoEvent(t, c)
}

func TestController_ResetDropsUnreadEvents(t *testing.T) {
	f := &scriptedFetcher{responses: []response{ok(1, 1, 1, 2), ok(1, 1, 9)}}
	c := newController(t, f)

	require.True(t, c.RequestNextPage(context.Background()))
	require.Eventually(t, func() bool { return len(c.Events()) == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, c.Reset(context.Background()))
	ev := nextEvent(t, c)
	assert.Equal(t, PageAppended, ev.Kind)
	assert.Equal(t, []int64{9}, ids(ev.Items), "event from before the reset is not delivered")
	assert.Equal(t, []int64{9}, ids(c.Items()))
	assertNoEvent(t, c)
}

func TestController_ResetReleasesBlockedSender(t *testing.T) {
	f := &scriptedFetcher{responses: []response{
		ok(1, 3, 1),
		fail(apierr.FromResponse("fetch posts", 500, nil)),
		ok(1, 1, 7),
	}}
	c := New[post](f, staticTokens{token: "tok"}, WithEventBuffer(1))
	t.Cleanup(c.Close)

	require.True(t, c.RequestNextPage(context.Background()))
	require.Eventually(t, func() bool { return len(c.Events()) == 1 }, time.Second, 5*time.Millisecond)

	// The second result cannot be delivered until the buffer drains.
	require.True(t, c.RequestNextPage(context.Background()))
	require.Eventually(t, func() bool { return c.Snapshot().Status == StatusError }, time.Second, 5*time.Millisecond)

	done := make(chan bool)
	go func() { done <- c.Reset(context.Background()) }()
	select {
	case started := <-done:
		assert.True(t, started)
	case <-time.After(2 * time.Second):
		t.Fatal("Reset blocked behind an undelivered event")
	}

	ev := nextEvent(t, c)
	assert.Equal(t, PageAppended, ev.Kind)
	assert.Equal(t, []int64{7}, ids(ev.Items))
	assert.Equal(t, []int{1, 2, 1}, f.Calls())
	assertNoEvent(t, c)
}

func TestController_EventPageReportsServedPage(t *testing.T) {
	f := &scriptedFetcher{responses: []response{ok(3, 4, 1)}}
	c := newController(t, f)

	require.True(t, c.RequestNextPage(context.Background()))
	ev := nextEvent(t, c)
	assert.Equal(t, 3, ev.Page)
	assert.Equal(t, 4, c.Snapshot().Cursor.CurrentPage)
}

func TestController_ServerPageZeroFallsBackToRequestedPage(t *testing.T) {
	f := &scriptedFetcher{responses: []response{ok(0, 2, 1)}}
	c := newController(t, f)

	require.True(t, c.RequestNextPage(context.Background()))
	nextEvent(t, c)
	snap := c.Snapshot()
	assert.Equal(t, 2, snap.Cursor.CurrentPage)
	assert.True(t, snap.Cursor.HasMore)
}

func TestController_Remove(t *testing.T) {
	f := &scriptedFetcher{responses: []response{ok(1, 1, 1, 2, 3)}}
	c := newController(t, f)

	require.True(t, c.RequestNextPage(context.Background()))
	nextEvent(t, c)

	assert.True(t, c.Remove(2))
	assert.False(t, c.Remove(2))
	assert.Equal(t, []int64{1, 3}, ids(c.Items()))
}

func TestController_CloseCancelsAndClosesEvents(t *testing.T) {
	f := &scriptedFetcher{gate: make(chan struct{})}
	c := New[post](f, staticTokens{token: "tok"})

	require.True(t, c.RequestNextPage(context.Background()))
	require.Eventually(t, func() bool { return len(f.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	_, open := <-c.Events()
	assert.False(t, open, "events closed without delivering the canceled fetch")
	assert.False(t, c.RequestNextPage(context.Background()))
	assert.False(t, c.Reset(context.Background()))
	c.Close()
}

func TestController_FetcherFunc(t *testing.T) {
	var gotToken string
	fetcher := FetcherFunc[post](func(_ context.Context, token string, page int) (Page[post], error) {
		gotToken = token
		return Page[post]{Items: posts(int64(page)), CurrentPage: page, LastPage: page}, nil
	})
	c := New[post](fetcher, staticTokens{token: "abc"}, WithEventBuffer(1))
	t.Cleanup(c.Close)

	require.True(t, c.RequestNextPage(context.Background()))
	nextEvent(t, c)
	assert.Equal(t, "abc", gotToken)
	assert.Equal(t, []int64{1}, ids(c.Items()))
}

func TestStatusAndKindStrings(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "fetching", StatusFetching.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "page appended", PageAppended.String())
	assert.Equal(t, "session expired", SessionExpired.String())
	assert.Equal(t, "fetch failed", FetchFailed.String())
}
