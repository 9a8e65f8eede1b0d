package account

import (
	"context"
	"errors"
	"strings"

	"github.com/quillfeed/quill/internal/apierr"
	"github.com/quillfeed/quill/internal/blogapi"
)

var errMissingToken = errors.New("response carried no token")

// Draft is a post as typed by the user, before upload.
type Draft struct {
	Title     string
	Body      string
	ImageName string
	ImageData []byte
}

// Post fetches a single post with its comments.
func (s *Service) Post(ctx context.Context, id int64) (blogapi.Post, error) {
	token, err := s.token(ctx, "get post")
	if err != nil {
		return blogapi.Post{}, err
	}
	return s.api.GetPost(ctx, token, id)
}

// CreatePost validates draft locally, prepares its image and uploads it.
// Missing fields are reported as an Unprocessable error with per-field
// messages, the same shape the server uses.
func (s *Service) CreatePost(ctx context.Context, draft Draft, maxImageDim int) (blogapi.Post, error) {
	title := strings.TrimSpace(draft.Title)
	body := strings.TrimSpace(draft.Body)

	fields := map[string][]string{}
	if title == "" {
		fields["title"] = []string{"Title is required."}
	}
	if body == "" {
		fields["body"] = []string{"Body is required."}
	}
	if len(draft.ImageData) == 0 {
		fields["image"] = []string{"An image is required."}
	}
	if len(fields) > 0 {
		return blogapi.Post{}, apierr.Invalid("create post", fields)
	}

	token, err := s.token(ctx, "create post")
	if err != nil {
		return blogapi.Post{}, err
	}
	img, err := blogapi.PrepareImage(draft.ImageName, draft.ImageData, maxImageDim)
	if err != nil {
		return blogapi.Post{}, apierr.Invalid("create post", map[string][]string{
			"image": {"The image could not be read: " + err.Error()},
		})
	}
	post, err := s.api.CreatePost(ctx, token, blogapi.NewPost{Title: title, Body: body, Image: img})
	if err != nil {
		return blogapi.Post{}, err
	}
	s.logger.Info("post created", "post_id", post.ID, "image_bytes", len(img.Data))
	return post, nil
}

// DeletePost deletes a post. The server enforces ownership; CanDelete mirrors
// that check for the UI.
func (s *Service) DeletePost(ctx context.Context, id int64) error {
	token, err := s.token(ctx, "delete post")
	if err != nil {
		return err
	}
	if err := s.api.DeletePost(ctx, token, id); err != nil {
		return err
	}
	s.logger.Info("post deleted", "post_id", id)
	return nil
}

// CanDelete reports whether the signed-in user wrote post.
func (s *Service) CanDelete(ctx context.Context, post blogapi.Post) bool {
	if !s.session.Authenticated(ctx) {
		return false
	}
	email := s.session.User(ctx).Email
	return email != "" && strings.EqualFold(email, post.AuthorEmail())
}
