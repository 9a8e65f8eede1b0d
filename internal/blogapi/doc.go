// Package blogapi provides an HTTP client for the blog REST API.
//
// # Overview
//
// The client covers every endpoint quill talks to: the paginated post feed,
// single posts, post creation and deletion, and the account endpoints
// (login, register, logout, profile read, update and delete). Responses are
// decoded into the types in types.go, which mirror the API's JSON schema.
//
// # Architecture
//
//   - client.go: request building, pacing and response classification
//   - types.go: data structures mirroring the API schema
//   - image.go: attachment preparation before upload
//
// # Client Usage
//
//	client, err := blogapi.NewClient("127.0.0.1:8000", blogapi.Options{
//		Timeout:           10 * time.Second,
//		RequestsPerSecond: 5,
//	})
//	if err != nil {
//		return err
//	}
//
//	page, err := client.FetchPosts(ctx, token, 1)
//	if apierr.IsUnauthorized(err) {
//		// session expired
//	}
//
// # Authentication
//
// Authenticated calls take the bearer token explicitly. The client holds no
// session state; callers read the token from their session store for every
// call so that a sign-out is observed immediately.
//
// # Error Handling
//
// Every failure is reported as an *apierr.Error:
//
//   - transport failures, canceled contexts and limiter waits: KindNetwork
//   - HTTP 401: KindUnauthorized
//   - HTTP 422: KindUnprocessable with per-field messages
//   - any other non-2xx status or an undecodable body: KindServer
//
// # Request Pacing
//
// A token bucket from golang.org/x/time/rate paces outgoing requests so that
// rapid scrolling cannot flood the server. Every request carries a random
// X-Request-ID header that is also written to the debug log.
//
// # Uploads
//
// PrepareImage re-encodes attachments as JPEG, honouring EXIF orientation and
// shrinking large photos before CreatePost sends them as multipart form data.
package blogapi
