package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quillfeed/quill/internal/blogapi"
)

func (m Model) handleLoginKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.String() == "ctrl+r" {
		m.view = ViewRegister
		m.register.clearErrors()
		m.register.setValue("email", m.login.value("email"))
		return m, m.register.focusField(0)
	}
	cmd, submit := handleFormKey(&m.login, msg)
	if !submit || m.busy {
		return m, cmd
	}
	m.busy = true
	m.login.clearErrors()
	m.setNotice("", false)
	return m, loginCmd(m.ctx, m.account, m.login.value("email"), m.login.value("password"))
}

func (m Model) handleRegisterKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.view = ViewLogin
		return m, m.login.focusField(0)
	}
	cmd, submit := handleFormKey(&m.register, msg)
	if !submit || m.busy {
		return m, cmd
	}
	m.busy = true
	m.register.clearErrors()
	m.setNotice("", false)
	return m, registerCmd(m.ctx, m.account, blogapi.Registration{
		Name:                 strings.TrimSpace(m.register.value("name")),
		Email:                strings.TrimSpace(m.register.value("email")),
		Password:             m.register.value("password"),
		PasswordConfirmation: m.register.value("password_confirmation"),
	})
}

// handleAuthDone finishes sign-in or registration. A rejected login is a
// form error here, not an expired session.
func (m Model) handleAuthDone(msg authDoneMsg) (Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		if msg.register {
			m.register.setError(msg.err)
		} else {
			m.login.setError(msg.err)
			m.login.setValue("password", "")
		}
		return m, nil
	}

	m.login.reset()
	m.register.reset()
	if m.store != nil {
		user := msg.user
		m.store.Update(&user, nil)
	}
	m.snapshot.SessionExpired = false
	m.setNotice("Signed in as "+msg.user.Email, false)
	m.logger.Info("signed in", "email", msg.user.Email, "register", msg.register)
	return m.enterFeed()
}

func (m Model) renderAuth(f form, hint string) string {
	styles := m.theme.Styles()
	width := m.width
	if width > 64 {
		width = 64
	}

	content := f.view(styles, width)
	if m.busy {
		content += "\n" + styles.InfoText.Render(m.spinner.View()+" Working...")
	}
	content += "\n" + styles.FaintText.Render(hint)

	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Width(width).Render(content))
}
