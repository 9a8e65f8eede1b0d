// Package feed pages through a server-side collection on behalf of a view.
//
// A Controller keeps the merged items, the page cursor and a fetch status.
// It issues at most one fetch at a time, drops duplicate ids when pages
// overlap, and reports every outcome on its Events channel:
//
//   - PageAppended: a page merged; Items holds only the newly seen items
//   - SessionExpired: the server answered 401 or no token was available
//   - FetchFailed: any other failure; the cursor is unchanged so the next
//     RequestNextPage retries the same page
//
// The controller performs no retries and never clears the session. Both are
// left to the caller.
package feed
