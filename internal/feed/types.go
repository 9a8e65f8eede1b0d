package feed

import "context"

// Item is anything with a stable identity inside a feed.
type Item interface {
	ItemID() int64
}

// Page is one page of results as reported by the server.
type Page[T Item] struct {
	Items       []T
	CurrentPage int
	LastPage    int
}

// Fetcher loads one page of a feed.
type Fetcher[T Item] interface {
	FetchPage(ctx context.Context, token string, page int) (Page[T], error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc[T Item] func(ctx context.Context, token string, page int) (Page[T], error)

// FetchPage calls f.
func (f FetcherFunc[T]) FetchPage(ctx context.Context, token string, page int) (Page[T], error) {
	return f(ctx, token, page)
}

// TokenSource supplies the bearer token for each fetch.
// The second result is false when no session exists.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Status is the controller's fetch state.
type Status int

const (
	StatusIdle Status = iota
	StatusFetching
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Cursor tracks which page to request next.
// Before the first successful fetch HasMore is optimistically true.
type Cursor struct {
	CurrentPage int
	LastPage    int
	HasMore     bool
}

func initialCursor() Cursor {
	return Cursor{CurrentPage: 1, LastPage: 1, HasMore: true}
}

// EventKind identifies an Event.
type EventKind int

const (
	PageAppended EventKind = iota
	SessionExpired
	FetchFailed
)

func (k EventKind) String() string {
	switch k {
	case PageAppended:
		return "page appended"
	case SessionExpired:
		return "session expired"
	case FetchFailed:
		return "fetch failed"
	default:
		return "unknown"
	}
}

// Event reports the outcome of one fetch.
//
// PageAppended carries only the items that were new to the feed, and Page is
// the page the server reports it served (the requested page when the server
// does not say). For SessionExpired and FetchFailed, Page is the requested page
// and Err is set.
type Event[T Item] struct {
	Kind  EventKind
	Items []T
	Page  int
	Err   error

	gen uint64
}

// Snapshot is a consistent copy of controller state.
type Snapshot[T Item] struct {
	Items  []T
	Cursor Cursor
	Status Status
	Err    error
}

// Empty reports a settled feed with nothing in it, as opposed to one still loading.
func (s Snapshot[T]) Empty() bool {
	return s.Status == StatusIdle && !s.Cursor.HasMore && len(s.Items) == 0
}
