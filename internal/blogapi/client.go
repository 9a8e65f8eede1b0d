package blogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/quillfeed/quill/internal/apierr"
)

// API is the set of blog endpoints quill consumes.
// It is implemented by *Client and can be faked in tests.
type API interface {
	FetchPosts(ctx context.Context, token string, page int) (PostPage, error)
	GetPost(ctx context.Context, token string, id int64) (Post, error)
	CreatePost(ctx context.Context, token string, post NewPost) (Post, error)
	DeletePost(ctx context.Context, token string, id int64) error
	Login(ctx context.Context, creds Credentials) (AuthResponse, error)
	Register(ctx context.Context, reg Registration) (AuthResponse, error)
	Logout(ctx context.Context, token string) error
	GetUser(ctx context.Context, token string) (User, error)
	UpdateUser(ctx context.Context, token string, update UserUpdate) (User, error)
	DeleteUser(ctx context.Context, token string) error
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Client talks to the blog HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// Options tune a Client. Zero values use defaults.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Logger            *slog.Logger
	HTTPClient        *http.Client
}

const (
	defaultBaseURL   = "http://127.0.0.1:8000"
	defaultUserAgent = "quill/0.1"
	requestTimeout   = 10 * time.Second
	defaultBurst     = 4
	maxErrorBody     = 64 << 10
)

// NewClient builds a Client for the API rooted at baseURL.
func NewClient(baseURL string, opts Options) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = requestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:   base,
		http:      httpClient,
		userAgent: defaultUserAgent,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
	}, nil
}

// FetchPosts retrieves one page of the post feed.
func (c *Client) FetchPosts(ctx context.Context, token string, page int) (PostPage, error) {
	if page < 1 {
		page = 1
	}
	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	rel := &url.URL{Path: "/api/posts", RawQuery: values.Encode()}
	var payload PostPage
	if err := c.doURL(ctx, "fetch posts", http.MethodGet, rel, token, nil, "", &payload); err != nil {
		return PostPage{}, err
	}
	return payload, nil
}

// GetPost retrieves a single post with its author and comments.
func (c *Client) GetPost(ctx context.Context, token string, id int64) (Post, error) {
	var payload Post
	if err := c.do(ctx, "get post", http.MethodGet, postPath(id), token, nil, &payload); err != nil {
		return Post{}, err
	}
	return payload, nil
}

// CreatePost uploads a new post as multipart form data.
func (c *Client) CreatePost(ctx context.Context, token string, post NewPost) (Post, error) {
	body, contentType, err := encodeNewPost(post)
	if err != nil {
		return Post{}, fmt.Errorf("encode post: %w", err)
	}
	var payload Post
	rel := &url.URL{Path: "/api/posts"}
	if err := c.doURL(ctx, "create post", http.MethodPost, rel, token, body, contentType, &payload); err != nil {
		return Post{}, err
	}
	return payload, nil
}

// DeletePost removes a post owned by the authenticated user.
func (c *Client) DeletePost(ctx context.Context, token string, id int64) error {
	return c.do(ctx, "delete post", http.MethodDelete, postPath(id), token, nil, nil)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (AuthResponse, error) {
	var payload AuthResponse
	if err := c.do(ctx, "login", http.MethodPost, "/api/login", "", creds, &payload); err != nil {
		return AuthResponse{}, err
	}
	return payload, nil
}

// Register creates an account and returns its bearer token.
func (c *Client) Register(ctx context.Context, reg Registration) (AuthResponse, error) {
	var payload AuthResponse
	if err := c.do(ctx, "register", http.MethodPost, "/api/register", "", reg, &payload); err != nil {
		return AuthResponse{}, err
	}
	return payload, nil
}

// Logout revokes the token server-side.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, "logout", http.MethodGet, "/api/logout", token, nil, nil)
}

// GetUser retrieves the authenticated user's profile.
func (c *Client) GetUser(ctx context.Context, token string) (User, error) {
	var payload User
	if err := c.do(ctx, "get user", http.MethodGet, "/api/user", token, nil, &payload); err != nil {
		return User{}, err
	}
	return payload, nil
}

// UpdateUser changes the authenticated user's profile.
func (c *Client) UpdateUser(ctx context.Context, token string, update UserUpdate) (User, error) {
	var payload User
	if err := c.do(ctx, "update user", http.MethodPut, "/api/user", token, update, &payload); err != nil {
		return User{}, err
	}
	return payload, nil
}

// DeleteUser deletes the authenticated user's account.
func (c *Client) DeleteUser(ctx context.Context, token string) error {
	return c.do(ctx, "delete user", http.MethodDelete, "/api/user", token, nil, nil)
}

func postPath(id int64) string {
	return "/api/posts/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, op, method, path, token string, in, dest any) error {
	rel := &url.URL{Path: path}
	if in == nil {
		return c.doURL(ctx, op, method, rel, token, nil, "", dest)
	}
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	return c.doURL(ctx, op, method, rel, token, bytes.NewReader(data), "application/json", dest)
}

func (c *Client) doURL(ctx context.Context, op, method string, rel *url.URL, token string, body io.Reader, contentType string, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return apierr.Network(op, err)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", "op", op, "request_id", requestID, "error", err)
		return apierr.Network(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("api request",
		"op", op,
		"method", method,
		"path", rel.String(),
		"status", resp.StatusCode,
		"request_id", requestID,
		"elapsed", time.Since(started),
	)

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apierr.FromResponse(op, resp.StatusCode, errBody)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return apierr.Malformed(op, resp.StatusCode, err)
	}
	return nil
}

func encodeNewPost(post NewPost) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("title", post.Title); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("body", post.Body); err != nil {
		return nil, "", err
	}
	name := post.Image.Name
	if name == "" {
		name = "image.jpg"
	}
	contentType := post.Image.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(post.Image.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
