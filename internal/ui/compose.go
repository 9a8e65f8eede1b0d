package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quillfeed/quill/internal/apierr"
)

const (
	composeTitle = iota
	composeBody
	composeImage
	composeFields
)

// composeState is the new-post form. The body is a multi-line textarea so
// it cannot share the single-line form helper.
type composeState struct {
	title   textinput.Model
	body    textarea.Model
	image   textinput.Model
	focus   int
	errors  map[string][]string
	message string
}

func newCompose() composeState {
	title := textinput.New()
	title.Placeholder = "Title"
	title.Prompt = ""
	title.CharLimit = 255

	body := textarea.New()
	body.Placeholder = "Write something..."
	body.ShowLineNumbers = false
	body.SetHeight(8)

	image := textinput.New()
	image.Placeholder = "~/Pictures/photo.jpg"
	image.Prompt = ""

	return composeState{title: title, body: body, image: image}
}

func (c *composeState) resize(width int) {
	w := width - 8
	if w > 80 {
		w = 80
	}
	if w < 20 {
		w = 20
	}
	c.title.Width = w
	c.image.Width = w
	c.body.SetWidth(w)
}

func (c *composeState) focusField(i int) tea.Cmd {
	c.focus = (i + composeFields) % composeFields
	c.title.Blur()
	c.body.Blur()
	c.image.Blur()
	switch c.focus {
	case composeBody:
		return c.body.Focus()
	case composeImage:
		return c.image.Focus()
	default:
		return c.title.Focus()
	}
}

func (c *composeState) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch c.focus {
	case composeBody:
		c.body, cmd = c.body.Update(msg)
	case composeImage:
		c.image, cmd = c.image.Update(msg)
	default:
		c.title, cmd = c.title.Update(msg)
	}
	return cmd
}

func (c *composeState) reset() tea.Cmd {
	c.title.Reset()
	c.body.Reset()
	c.image.Reset()
	c.errors = nil
	c.message = ""
	return c.focusField(composeTitle)
}

func (c *composeState) setError(err error) {
	c.errors = apierr.FieldErrors(err)
	c.message = errorText(err)
}

func (m Model) handleComposeKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = ViewFeed
		return m, nil
	case "tab":
		return m, m.compose.focusField(m.compose.focus + 1)
	case "shift+tab":
		return m, m.compose.focusField(m.compose.focus - 1)
	case "enter":
		if m.compose.focus != composeBody {
			return m, m.compose.focusField(m.compose.focus + 1)
		}
	case "ctrl+s":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.compose.errors = nil
		m.compose.message = ""
		return m, createPostCmd(m.ctx, m.account,
			m.compose.title.Value(),
			m.compose.body.Value(),
			strings.TrimSpace(m.compose.image.Value()),
			m.maxDim)
	}
	return m, m.compose.update(msg)
}

func (m Model) handlePostCreated(msg postCreatedMsg) (Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		if apierr.IsUnauthorized(msg.err) {
			return m.expireSession()
		}
		m.compose.setError(msg.err)
		return m, nil
	}
	m.logger.Info("post published", "id", msg.post.ID)
	m.setNotice("Post published.", false)
	return m.enterFeed()
}

func (m Model) renderCompose() string {
	styles := m.theme.Styles()
	c := m.compose

	box := func(idx int, content string) string {
		style := styles.Input
		if c.focus == idx {
			style = styles.FocusedInput
		}
		return style.Render(content)
	}
	errs := func(key string) string {
		var b strings.Builder
		for _, msg := range c.errors[key] {
			b.WriteString(styles.DangerText.Render("  "+msg) + "\n")
		}
		return b.String()
	}

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("New post") + "\n\n")
	b.WriteString(styles.MutedText.Render("Title") + "\n")
	b.WriteString(box(composeTitle, c.title.View()) + "\n")
	b.WriteString(errs("title"))
	b.WriteString(styles.MutedText.Render("Body") + "\n")
	b.WriteString(box(composeBody, c.body.View()) + "\n")
	b.WriteString(errs("body"))
	b.WriteString(styles.MutedText.Render("Image file") + "\n")
	b.WriteString(box(composeImage, c.image.View()) + "\n")
	b.WriteString(errs("image"))

	if c.message != "" && len(c.errors) == 0 {
		b.WriteString("\n" + styles.DangerText.Render(c.message) + "\n")
	}
	if m.busy {
		b.WriteString("\n" + styles.InfoText.Render(m.spinner.View()+" Publishing..."))
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}
