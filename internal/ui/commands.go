package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quillfeed/quill/internal/account"
	"github.com/quillfeed/quill/internal/apierr"
	"github.com/quillfeed/quill/internal/blogapi"
	"github.com/quillfeed/quill/internal/feed"
	"github.com/quillfeed/quill/internal/session"
	"github.com/quillfeed/quill/internal/state"
)

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type feedEventMsg feed.Event[blogapi.Post]

type feedClosedMsg struct{}

type authDoneMsg struct {
	user     session.User
	err      error
	register bool
}

type postLoadedMsg struct {
	id   int64
	post blogapi.Post
	err  error
}

type postCreatedMsg struct {
	post blogapi.Post
	err  error
}

type postDeletedMsg struct {
	id  int64
	err error
}

type profileLoadedMsg struct {
	user session.User
	err  error
}

type profileSavedMsg struct {
	user session.User
	err  error
}

// signedOutMsg follows sign-out or account deletion.
type signedOutMsg struct {
	deleted bool
	err     error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// waitForFeedEvent blocks on the next controller event. It is re-issued
// after every event so exactly one reader is waiting at a time.
func waitForFeedEvent(events <-chan feed.Event[blogapi.Post]) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return feedClosedMsg{}
		}
		return feedEventMsg(ev)
	}
}

func loginCmd(ctx context.Context, svc *account.Service, email, password string) tea.Cmd {
	return func() tea.Msg {
		user, err := svc.Login(ctx, email, password)
		return authDoneMsg{user: user, err: err}
	}
}

func registerCmd(ctx context.Context, svc *account.Service, reg blogapi.Registration) tea.Cmd {
	return func() tea.Msg {
		user, err := svc.Register(ctx, reg)
		return authDoneMsg{user: user, err: err, register: true}
	}
}

func loadPostCmd(ctx context.Context, svc *account.Service, id int64) tea.Cmd {
	return func() tea.Msg {
		post, err := svc.Post(ctx, id)
		return postLoadedMsg{id: id, post: post, err: err}
	}
}

// createPostCmd reads the image from disk and uploads the post. An
// unreadable file is reported against the image field.
func createPostCmd(ctx context.Context, svc *account.Service, title, body, imagePath string, maxDim int) tea.Cmd {
	return func() tea.Msg {
		draft := account.Draft{Title: title, Body: body}
		if imagePath != "" {
			data, err := os.ReadFile(expandHome(imagePath))
			if err != nil {
				return postCreatedMsg{err: apierr.Invalid("create post", map[string][]string{
					"image": {fmt.Sprintf("Cannot read %s.", filepath.Base(imagePath))},
				})}
			}
			draft.ImageName = filepath.Base(imagePath)
			draft.ImageData = data
		}
		post, err := svc.CreatePost(ctx, draft, maxDim)
		return postCreatedMsg{post: post, err: err}
	}
}

func deletePostCmd(ctx context.Context, svc *account.Service, id int64) tea.Cmd {
	return func() tea.Msg {
		return postDeletedMsg{id: id, err: svc.DeletePost(ctx, id)}
	}
}

func loadProfileCmd(ctx context.Context, svc *account.Service) tea.Cmd {
	return func() tea.Msg {
		user, err := svc.Profile(ctx)
		return profileLoadedMsg{user: user, err: err}
	}
}

func saveProfileCmd(ctx context.Context, svc *account.Service, update blogapi.UserUpdate) tea.Cmd {
	return func() tea.Msg {
		user, err := svc.UpdateProfile(ctx, update)
		return profileSavedMsg{user: user, err: err}
	}
}

func logoutCmd(ctx context.Context, svc *account.Service) tea.Cmd {
	return func() tea.Msg {
		return signedOutMsg{err: svc.Logout(ctx)}
	}
}

func deleteAccountCmd(ctx context.Context, svc *account.Service) tea.Cmd {
	return func() tea.Msg {
		return signedOutMsg{deleted: true, err: svc.DeleteAccount(ctx)}
	}
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
