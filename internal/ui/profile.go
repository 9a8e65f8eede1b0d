package ui

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quillfeed/quill/internal/apierr"
	"github.com/quillfeed/quill/internal/blogapi"
	"github.com/quillfeed/quill/internal/session"
	"github.com/quillfeed/quill/internal/state"
)

// openProfile fills the form from the cached identity and refreshes it
// from the server.
func (m Model) openProfile() (Model, tea.Cmd) {
	m.view = ViewProfile
	m.confirmDestroy = false
	m.profile.clearErrors()
	user := m.account.Session().User(m.ctx)
	m.profile.setValue("name", user.Name)
	m.profile.setValue("email", user.Email)
	m.profile.setValue("password", "")
	return m, tea.Batch(m.profile.focusField(0), loadProfileCmd(m.ctx, m.account))
}

func (m Model) handleProfileLoaded(msg profileLoadedMsg) (Model, tea.Cmd) {
	if errors.Is(msg.err, session.ErrSignedOut) {
		return m, nil
	}
	if msg.err != nil {
		if apierr.IsUnauthorized(msg.err) {
			return m.expireSession()
		}
		m.profile.setError(msg.err)
		return m, nil
	}
	if m.view == ViewProfile {
		m.profile.setValue("name", msg.user.Name)
		m.profile.setValue("email", msg.user.Email)
	}
	return m, nil
}

func (m Model) handleProfileKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.confirmDestroy {
		m.confirmDestroy = false
		if msg.String() == "y" && !m.busy {
			m.busy = true
			return m, deleteAccountCmd(m.ctx, m.account)
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.view = ViewFeed
		return m, nil
	case "ctrl+o":
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, logoutCmd(m.ctx, m.account)
	case "ctrl+x":
		m.confirmDestroy = true
		return m, nil
	}

	cmd, submit := handleFormKey(&m.profile, msg)
	if !submit || m.busy {
		return m, cmd
	}
	m.busy = true
	m.profile.clearErrors()
	return m, saveProfileCmd(m.ctx, m.account, blogapi.UserUpdate{
		Name:     strings.TrimSpace(m.profile.value("name")),
		Email:    strings.TrimSpace(m.profile.value("email")),
		Password: m.profile.value("password"),
	})
}

func (m Model) handleProfileSaved(msg profileSavedMsg) (Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		if apierr.IsUnauthorized(msg.err) {
			return m.expireSession()
		}
		m.profile.setError(msg.err)
		return m, nil
	}
	m.profile.setValue("password", "")
	if m.store != nil {
		user := msg.user
		m.store.Update(&user, nil)
	}
	m.setNotice("Profile updated.", false)
	return m, nil
}

// handleSignedOut finishes sign-out and account deletion. Sign-out always
// succeeds locally; a failed deletion keeps the user where they are.
func (m Model) handleSignedOut(msg signedOutMsg) (Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		if msg.deleted {
			return m.failure(msg.err)
		}
		m.logger.Warn("sign out", "error", msg.err)
	}
	if m.store != nil {
		m.store.Reset()
	}
	m.snapshot = state.Snapshot{}
	m.view = ViewLogin
	if msg.deleted {
		m.setNotice("Account deleted.", false)
	} else {
		m.setNotice("Signed out.", false)
	}
	return m, m.login.reset()
}

func (m Model) renderProfile() string {
	styles := m.theme.Styles()
	width := m.width - 4
	if width > 64 {
		width = 64
	}

	content := m.profile.view(styles, width)
	if m.busy {
		content += "\n" + styles.InfoText.Render(m.spinner.View()+" Working...")
	}
	if m.confirmDestroy {
		content += "\n" + styles.DangerText.Render("Delete your account and all of its posts?") +
			"  " + styles.MutedText.Render("y to confirm, any other key to cancel")
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(content)
}
