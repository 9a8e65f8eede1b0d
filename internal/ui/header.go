package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quillfeed/quill/internal/apierr"
	"github.com/quillfeed/quill/internal/feed"
)

// renderHeader renders the status bar: identity, connection health and feed state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newBarPainter(m.theme.Surface)
	compact := m.width < 80

	parts := []string{bg.text("quill", styles.Logo)}

	user := m.account.Session().User(m.ctx)
	switch {
	case m.snapshot.SessionExpired:
		parts = append(parts, styles.StatusStyle(badgeExpired).Render("EXPIRED"))
	case m.snapshot.IsOffline():
		parts = append(parts, styles.StatusStyle(badgeOffline).Render("OFFLINE"))
	case user.Email != "":
		parts = append(parts, styles.StatusStyle(badgeOnline).Render("●"))
	}

	if user.Email != "" {
		label := user.Name
		if label == "" || !compact {
			label = strings.TrimSpace(user.Name + " <" + user.Email + ">")
		}
		parts = append(parts, bg.text(truncate(label, 40), styles.Text))
	} else {
		parts = append(parts, bg.text("signed out", styles.MutedText))
	}

	if m.view == ViewFeed || m.view == ViewDetail {
		snap := m.feed.Snapshot()
		parts = append(parts,
			bg.text("Posts:", styles.MutedText)+bg.gap(1)+
				bg.text(fmt.Sprintf("%d", len(snap.Items)), styles.Text))
		if !compact && snap.Cursor.LastPage > 0 {
			parts = append(parts,
				bg.text("Page:", styles.MutedText)+bg.gap(1)+
					bg.text(fmt.Sprintf("%d/%d", snap.Cursor.CurrentPage-1, snap.Cursor.LastPage), styles.Text))
		}
		switch snap.Status {
		case feed.StatusFetching:
			parts = append(parts, bg.text(m.spinner.View(), styles.InfoText))
		case feed.StatusError:
			parts = append(parts, styles.StatusStyle(badgeError).Render("ERROR"))
		}
	}

	if m.notice != "" {
		style := styles.WarningText
		if m.noticeIsError {
			style = styles.DangerText
		}
		limit := 60
		if compact {
			limit = 30
		}
		parts = append(parts, bg.text(truncate(m.notice, limit), style))
	}

	return bg.fill(bg.join(parts, "  "), m.theme.Text, m.width)
}

// errorText returns a short human description of an API failure.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	if msg := apierr.Message(err); msg != "" {
		return msg
	}
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	switch apiErr.Kind {
	case apierr.KindNetwork:
		return classifyConnectionError(err)
	case apierr.KindUnauthorized:
		return "Not signed in"
	case apierr.KindUnprocessable:
		return "Please fix the highlighted fields"
	default:
		if apiErr.Status > 0 {
			return fmt.Sprintf("Server error (%d)", apiErr.Status)
		}
		return "Unexpected server response"
	}
}

// classifyConnectionError returns a short description of a transport failure.
func classifyConnectionError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "Server offline"
	case strings.Contains(msg, "no such host"):
		return "Host not found"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "Request timed out"
	default:
		return "Network error"
	}
}

// renderCommandBar renders the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newBarPainter(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.view {
	case ViewLogin:
		commands = []cmd{{"enter", "Sign in"}, {"tab", "Next"}, {"ctrl+r", "Register"}, {"ctrl+c", "Quit"}}
	case ViewRegister:
		commands = []cmd{{"enter", "Create"}, {"tab", "Next"}, {"esc", "Sign in"}, {"ctrl+c", "Quit"}}
	case ViewDetail:
		commands = []cmd{{"j/k", "Scroll"}, {"esc", "Back"}}
		if m.detail.loaded && m.account.CanDelete(m.ctx, m.detail.post) {
			commands = append(commands, cmd{"d", "Delete"})
		}
	case ViewCompose:
		commands = []cmd{{"tab", "Next"}, {"ctrl+s", "Publish"}, {"esc", "Cancel"}}
	case ViewProfile:
		commands = []cmd{{"enter", "Save"}, {"ctrl+o", "Sign out"}, {"ctrl+x", "Delete account"}, {"esc", "Back"}}
	default:
		commands = []cmd{{"j/k", "Navigate"}, {"enter", "Open"}, {"n", "New"}, {"r", "Refresh"}, {"p", "Profile"}, {"?", "More"}}
	}

	colon := bg.sep(":")
	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.text(c.key, styles.AccentText)+colon+bg.text(c.desc, styles.MutedText))
	}
	if !m.isFormView() {
		segments = append(segments,
			bg.text("T", styles.AccentText)+colon+bg.text(m.theme.Name, styles.FaintText))
	}

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.gap(2)))
}
