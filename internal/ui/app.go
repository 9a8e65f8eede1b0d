package ui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quillfeed/quill/internal/account"
	"github.com/quillfeed/quill/internal/apierr"
	"github.com/quillfeed/quill/internal/blogapi"
	"github.com/quillfeed/quill/internal/feed"
	"github.com/quillfeed/quill/internal/logging"
	"github.com/quillfeed/quill/internal/session"
	"github.com/quillfeed/quill/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewLogin View = iota
	ViewRegister
	ViewFeed
	ViewDetail
	ViewCompose
	ViewProfile
)

// PrefTheme is the PREFS key holding the selected theme name.
const PrefTheme = "theme"

// prefetchMargin is how close to the end of the list the selection may get
// before the next page is requested.
const prefetchMargin = 3

// Options configures the UI.
type Options struct {
	Context            context.Context
	Account            *account.Service
	Feed               *feed.Controller[blogapi.Post]
	Store              *state.Store
	Prefs              session.Store
	ThemeName          string
	UploadMaxDimension int
	PollTick           time.Duration
	Logger             *slog.Logger
}

type detailState struct {
	post    blogapi.Post
	loaded  bool
	confirm bool
	vp      viewport.Model
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx      context.Context
	account  *account.Service
	feed     *feed.Controller[blogapi.Post]
	store    *state.Store
	prefs    session.Store
	logger   *slog.Logger
	maxDim   int
	pollTick time.Duration

	theme    Theme
	view     View
	width    int
	height   int
	ready    bool
	showHelp bool
	spinner  spinner.Model
	busy     bool

	snapshot      state.Snapshot
	notice        string
	noticeIsError bool

	// Feed list
	selected int
	offset   int

	detail         detailState
	login          form
	register       form
	profile        form
	confirmDestroy bool
	compose        composeState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = DefaultTheme
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := Model{
		ctx:      ctx,
		account:  opts.Account,
		feed:     opts.Feed,
		store:    opts.Store,
		prefs:    opts.Prefs,
		logger:   logger,
		maxDim:   opts.UploadMaxDimension,
		pollTick: pollTick,
		theme:    GetTheme(themeName),
		spinner:  sp,
		view:     ViewLogin,
		login: newForm("Sign in",
			newField("email", "Email", "you@example.com", false),
			newField("password", "Password", "", true),
		),
		register: newForm("Create account",
			newField("name", "Name", "", false),
			newField("email", "Email", "you@example.com", false),
			newField("password", "Password", "", true),
			newField("password_confirmation", "Confirm password", "", true),
		),
		profile: newForm("Profile",
			newField("name", "Name", "", false),
			newField("email", "Email", "", false),
			newField("password", "New password", "leave blank to keep", true),
		),
		compose: newCompose(),
		detail:  detailState{vp: viewport.New(0, 0)},
	}
	if m.account.Session().Authenticated(ctx) {
		m.view = ViewFeed
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.pollTick),
		waitForFeedEvent(m.feed.Events()),
		m.spinner.Tick,
		textinput.Blink,
	}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.view == ViewFeed {
		m.feed.Reset(m.ctx)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case tickMsg:
		if m.store == nil {
			return m, tickCmd(m.pollTick)
		}
		return m, tea.Batch(tickCmd(m.pollTick), fetchSnapshotCmd(m.store))

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		if m.snapshot.SessionExpired && m.signedInView() {
			return m.expireSession()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case feedEventMsg:
		return m.handleFeedEvent(feed.Event[blogapi.Post](msg))

	case feedClosedMsg:
		return m, nil

	case authDoneMsg:
		return m.handleAuthDone(msg)
	case postLoadedMsg:
		return m.handlePostLoaded(msg)
	case postCreatedMsg:
		return m.handlePostCreated(msg)
	case postDeletedMsg:
		return m.handlePostDeleted(msg)
	case profileLoadedMsg:
		return m.handleProfileLoaded(msg)
	case profileSavedMsg:
		return m.handleProfileSaved(msg)
	case signedOutMsg:
		return m.handleSignedOut(msg)
	}

	// Cursor blink and other component messages go to the focused input.
	return m, m.updateFocusedInput(msg)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	header := m.renderHeader()
	bar := m.renderCommandBar()

	var body string
	switch m.view {
	case ViewLogin:
		body = m.renderAuth(m.login, "New here? Press ctrl+r to create an account.")
	case ViewRegister:
		body = m.renderAuth(m.register, "Press esc to return to sign in.")
	case ViewDetail:
		body = m.renderDetail()
	case ViewCompose:
		body = m.renderCompose()
	case ViewProfile:
		body = m.renderProfile()
	default:
		body = m.renderFeed()
	}

	height := m.bodyHeight()
	body = lipgloss.NewStyle().Width(m.width).Height(height).MaxHeight(height).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, bar)
}

func (m Model) bodyHeight() int {
	h := m.height - 2
	if h < 1 {
		return 1
	}
	return h
}

func (m *Model) resize() {
	m.detail.vp.Width = m.width
	m.detail.vp.Height = m.bodyHeight()
	m.compose.resize(m.width)
	if m.view == ViewDetail {
		m.detail.vp.SetContent(m.detailContent())
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if !m.isFormView() {
		switch msg.String() {
		case "?", "h":
			m.showHelp = true
			return m, nil
		case "T":
			m.cycleTheme()
			return m, nil
		}
	}

	switch m.view {
	case ViewLogin:
		return m.handleLoginKey(msg)
	case ViewRegister:
		return m.handleRegisterKey(msg)
	case ViewDetail:
		return m.handleDetailKey(msg)
	case ViewCompose:
		return m.handleComposeKey(msg)
	case ViewProfile:
		return m.handleProfileKey(msg)
	default:
		return m.handleFeedKey(msg)
	}
}

func (m Model) isFormView() bool {
	switch m.view {
	case ViewLogin, ViewRegister, ViewCompose, ViewProfile:
		return true
	}
	return false
}

func (m Model) signedInView() bool {
	return m.view != ViewLogin && m.view != ViewRegister
}

func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	switch m.view {
	case ViewLogin:
		return m.login.update(msg)
	case ViewRegister:
		return m.register.update(msg)
	case ViewProfile:
		return m.profile.update(msg)
	case ViewCompose:
		return m.compose.update(msg)
	}
	return nil
}

// cycleTheme switches to the next theme and remembers it in preferences.
func (m *Model) cycleTheme() {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	if m.prefs == nil {
		return
	}
	if err := m.prefs.Set(m.ctx, PrefTheme, m.theme.Name); err != nil {
		m.logger.Warn("save theme preference", "theme", m.theme.Name, "error", err)
	}
}

func (m *Model) setNotice(text string, isError bool) {
	m.notice = text
	m.noticeIsError = isError
}

// expireSession drops the stored session and sends the user to sign in.
// Every authenticated operation ends up here on 401.
func (m Model) expireSession() (Model, tea.Cmd) {
	if err := m.account.Session().Clear(m.ctx); err != nil {
		m.logger.Warn("clear expired session", "error", err)
	}
	if m.store != nil {
		m.store.Reset()
	}
	m.snapshot = state.Snapshot{}
	m.busy = false
	m.confirmDestroy = false
	m.detail.confirm = false
	m.view = ViewLogin
	m.login.clearErrors()
	m.login.setValue("password", "")
	m.setNotice("Session expired. Please sign in again.", true)
	m.logger.Info("session expired")
	return m, m.login.focusField(0)
}

// failure routes an error from an authenticated operation: 401 expires the
// session, anything else is shown as a notice.
func (m Model) failure(err error) (Model, tea.Cmd) {
	m.busy = false
	if apierr.IsUnauthorized(err) {
		return m.expireSession()
	}
	m.setNotice(errorText(err), true)
	return m, nil
}

// enterFeed shows the feed and starts it again from page one.
func (m Model) enterFeed() (Model, tea.Cmd) {
	m.view = ViewFeed
	m.selected = 0
	m.offset = 0
	m.feed.Reset(m.ctx)
	return m, nil
}

// Run starts the Bubble Tea program and blocks until it exits or the
// context is canceled.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
