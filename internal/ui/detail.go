package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quillfeed/quill/internal/apierr"
	"github.com/quillfeed/quill/internal/blogapi"
)

// openDetail shows the list copy of post straight away and loads the full
// post with comments in the background.
func (m Model) openDetail(post blogapi.Post) (Model, tea.Cmd) {
	m.view = ViewDetail
	m.detail.post = post
	m.detail.loaded = false
	m.detail.confirm = false
	m.detail.vp.SetContent(m.detailContent())
	m.detail.vp.GotoTop()
	return m, loadPostCmd(m.ctx, m.account, post.ID)
}

func (m Model) handlePostLoaded(msg postLoadedMsg) (Model, tea.Cmd) {
	if m.view != ViewDetail || msg.id != m.detail.post.ID {
		return m, nil
	}
	if msg.err != nil {
		if apierr.IsNotFound(msg.err) {
			m.feed.Remove(msg.id)
			m.view = ViewFeed
			m.clampSelection(len(m.feed.Items()))
			m.setNotice("That post no longer exists.", true)
			return m, nil
		}
		return m.failure(msg.err)
	}
	m.detail.post = msg.post
	m.detail.loaded = true
	m.detail.vp.SetContent(m.detailContent())
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.detail.confirm {
		m.detail.confirm = false
		if msg.String() == "y" && !m.busy {
			m.busy = true
			return m, deletePostCmd(m.ctx, m.account, m.detail.post.ID)
		}
		return m, nil
	}

	switch msg.String() {
	case "esc", "backspace", "q":
		m.view = ViewFeed
		return m, nil
	case "d":
		if m.detail.loaded && m.account.CanDelete(m.ctx, m.detail.post) {
			m.detail.confirm = true
		}
		return m, nil
	case "g", "home":
		m.detail.vp.GotoTop()
		return m, nil
	case "G", "end":
		m.detail.vp.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.detail.vp, cmd = m.detail.vp.Update(msg)
	return m, cmd
}

func (m Model) handlePostDeleted(msg postDeletedMsg) (Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		return m.failure(msg.err)
	}
	m.feed.Remove(msg.id)
	if m.view == ViewDetail && m.detail.post.ID == msg.id {
		m.view = ViewFeed
	}
	m.clampSelection(len(m.feed.Items()))
	m.setNotice("Post deleted.", false)
	return m, nil
}

func (m Model) renderDetail() string {
	view := m.detail.vp.View()
	if !m.detail.confirm {
		return view
	}
	styles := m.theme.Styles()
	prompt := styles.DangerText.Render("Delete \"" + truncate(m.detail.post.Title, 40) + "\"?")
	prompt += "  " + styles.MutedText.Render("y to confirm, any other key to cancel")
	return lipgloss.JoinVertical(lipgloss.Left, prompt, view)
}

func (m Model) detailContent() string {
	styles := m.theme.Styles()
	post := m.detail.post
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(wrap.Render(post.Title)))
	b.WriteString("\n")
	if post.Author != nil {
		b.WriteString(styles.MutedText.Render("by " + post.Author.Name + " <" + post.Author.Email + ">"))
		b.WriteString("\n")
	}
	if post.Image != "" {
		b.WriteString(styles.FaintText.Render("image " + truncateMiddle(post.Image, width-6)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	body := post.Body
	if body == "" {
		body = post.Summary()
	}
	b.WriteString(styles.Text.Render(wrap.Render(body)))
	b.WriteString("\n\n")

	if !m.detail.loaded {
		b.WriteString(styles.InfoText.Render(m.spinner.View() + " Loading comments..."))
		return b.String()
	}

	b.WriteString(styles.AccentText.Render(fmt.Sprintf("Comments (%d)", len(post.Comments))))
	b.WriteString("\n")
	if len(post.Comments) == 0 {
		b.WriteString(styles.FaintText.Render("No comments yet."))
		b.WriteString("\n")
	}
	now := time.Now()
	for _, c := range post.Comments {
		meta := relativeTime(c.ParsedCreatedAt(), now)
		if n := len(c.Likes); n > 0 {
			meta = strings.TrimSpace(fmt.Sprintf("%s  ♥ %d", meta, n))
		}
		b.WriteString(styles.Text.Render(wrap.Render("• " + c.Comment)))
		b.WriteString("\n")
		if meta != "" {
			b.WriteString("  " + styles.FaintText.Render(meta))
			b.WriteString("\n")
		}
	}
	return b.String()
}
