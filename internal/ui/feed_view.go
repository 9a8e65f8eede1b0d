package ui

import (
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quillfeed/quill/internal/blogapi"
	"github.com/quillfeed/quill/internal/feed"
)

// rowsPerPost is the height of one post in the list: title, summary,
// author and a blank separator.
const rowsPerPost = 4

func (m Model) handleFeedKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	snap := m.feed.Snapshot()
	count := len(snap.Items)

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		m.moveSelection(1, count)
	case "k", "up":
		m.moveSelection(-1, count)
	case "ctrl+d", "pgdown":
		m.moveSelection(m.visiblePosts(), count)
	case "ctrl+u", "pgup":
		m.moveSelection(-m.visiblePosts(), count)
	case "g", "home":
		m.moveSelection(-count, count)
	case "G", "end":
		m.moveSelection(count, count)
	case "r":
		m.setNotice("", false)
		return m.enterFeed()
	case "R":
		if snap.Status == feed.StatusError {
			m.setNotice("", false)
			m.feed.RequestNextPage(m.ctx)
		}
		return m, nil
	case "enter":
		if count == 0 {
			return m, nil
		}
		m.clampSelection(count)
		return m.openDetail(snap.Items[m.selected])
	case "n":
		m.view = ViewCompose
		return m, m.compose.reset()
	case "p":
		return m.openProfile()
	default:
		return m, nil
	}

	m.maybeLoadMore(count)
	return m, nil
}

func (m *Model) moveSelection(delta, count int) {
	if count == 0 {
		m.selected = 0
		m.offset = 0
		return
	}
	m.selected += delta
	m.clampSelection(count)
}

func (m *Model) clampSelection(count int) {
	if m.selected >= count {
		m.selected = count - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	visible := m.visiblePosts()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+visible {
		m.offset = m.selected - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m Model) visiblePosts() int {
	// Reserve one row for the list footer.
	n := (m.bodyHeight() - 1) / rowsPerPost
	if n < 1 {
		return 1
	}
	return n
}

// maybeLoadMore requests the next page once the selection nears the end of
// the loaded posts or the list does not yet fill the screen. The controller
// ignores the request while a fetch is running or when nothing is left.
func (m *Model) maybeLoadMore(count int) {
	if m.view != ViewFeed {
		return
	}
	if count < m.visiblePosts() || m.selected >= count-prefetchMargin {
		m.feed.RequestNextPage(m.ctx)
	}
}

func (m Model) handleFeedEvent(ev feed.Event[blogapi.Post]) (Model, tea.Cmd) {
	next := waitForFeedEvent(m.feed.Events())

	switch ev.Kind {
	case feed.SessionExpired:
		if !m.signedInView() {
			return m, next
		}
		expired, cmd := m.expireSession()
		return expired, tea.Batch(next, cmd)

	case feed.FetchFailed:
		m.logger.Warn("feed fetch failed", "page", ev.Page, "error", ev.Err)
		m.setNotice(errorText(ev.Err), true)

	case feed.PageAppended:
		if m.noticeIsError {
			m.setNotice("", false)
		}
		count := len(m.feed.Items())
		m.clampSelection(count)
		m.maybeLoadMore(count)
	}
	return m, next
}

func (m Model) renderFeed() string {
	styles := m.theme.Styles()
	snap := m.feed.Snapshot()

	if len(snap.Items) == 0 {
		switch {
		case snap.Empty():
			return "\n  " + styles.MutedText.Render("No posts yet. Press n to write the first one.")
		case snap.Status == feed.StatusError:
			return "\n  " + styles.DangerText.Render("Couldn't load posts: "+errorText(snap.Err)) +
				"\n  " + styles.FaintText.Render("Press R to retry.")
		default:
			return "\n  " + styles.InfoText.Render(m.spinner.View()+" Loading posts...")
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	end := m.offset + m.visiblePosts()
	if end > len(snap.Items) {
		end = len(snap.Items)
	}
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderPostRow(snap.Items[i], i == m.selected, width))
	}

	switch {
	case snap.Status == feed.StatusFetching:
		b.WriteString("  " + styles.InfoText.Render(m.spinner.View()+" Loading more..."))
	case snap.Status == feed.StatusError:
		b.WriteString("  " + styles.DangerText.Render("Couldn't load more: "+errorText(snap.Err)+". Press R to retry."))
	case !snap.Cursor.HasMore:
		b.WriteString("  " + styles.FaintText.Render("End of feed"))
	}
	return b.String()
}

func (m Model) renderPostRow(post blogapi.Post, selected bool, width int) string {
	styles := m.theme.Styles()

	marker := "  "
	title := styles.Text.Bold(true)
	if selected {
		marker = styles.AccentText.Render("▌ ")
		title = styles.Selected.Bold(true)
	}

	author := "unknown author"
	if post.Author != nil {
		author = post.Author.Name
		if author == "" {
			author = post.Author.Email
		}
	}
	meta := author
	if n := len(post.Comments); n == 1 {
		meta += " · 1 comment"
	} else if n > 1 {
		meta += " · " + strconv.Itoa(n) + " comments"
	}

	var b strings.Builder
	b.WriteString(marker + title.Render(padRight(truncate(post.Title, width), width)) + "\n")
	b.WriteString("  " + styles.MutedText.Render(truncate(singleLine(post.Summary()), width)) + "\n")
	b.WriteString("  " + styles.FaintText.Render(truncate(meta, width)) + "\n")
	b.WriteString("\n")
	return b.String()
}
