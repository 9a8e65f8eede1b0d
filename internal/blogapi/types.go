package blogapi

import (
	"strings"
	"time"
)

const apiTimestampLayout = "2006-01-02 15:04:05"

// Author is the user attached to a post.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Like is a single like on a comment.
type Like struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
}

// Comment is a comment attached to a post.
type Comment struct {
	ID        int64  `json:"id"`
	Comment   string `json:"comment"`
	UserID    int64  `json:"user_id"`
	CreatedAt string `json:"created_at"`
	Likes     []Like `json:"likes"`
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (c Comment) ParsedCreatedAt() time.Time {
	return parseTime(c.CreatedAt)
}

// Post mirrors the post resource.
type Post struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	Image         string    `json:"image"`
	TruncatedBody string    `json:"truncated_body"`
	Author        *Author   `json:"author"`
	Comments      []Comment `json:"comments"`
}

// ItemID identifies the post within a feed.
func (p Post) ItemID() int64 { return p.ID }

// Summary returns the truncated body when the API sent one.
func (p Post) Summary() string {
	if s := strings.TrimSpace(p.TruncatedBody); s != "" {
		return s
	}
	return p.Body
}

// AuthorEmail returns the author's email or "" when the post has no author.
func (p Post) AuthorEmail() string {
	if p.Author == nil {
		return ""
	}
	return p.Author.Email
}

// PostPage mirrors one page of GET /api/posts.
type PostPage struct {
	CurrentPage int    `json:"current_page"`
	Data        []Post `json:"data"`
	LastPage    int    `json:"last_page"`
	PerPage     int    `json:"per_page"`
	Total       int    `json:"total"`
}

// User is the authenticated account.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token   string `json:"token"`
	User    User   `json:"user"`
	Message string `json:"message"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register payload.
type Registration struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// UserUpdate is the PUT /api/user payload. An empty password keeps the current one.
type UserUpdate struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// Image is an upload-ready attachment.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewPost is the multipart POST /api/posts payload.
type NewPost struct {
	Title string
	Body  string
	Image Image
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(apiTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
