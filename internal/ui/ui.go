// Package ui is the terminal front end: a login form, the chat screen and an
// admin screen over the document registry, routed by authentication state.
package ui

import (
	"context"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"docchat/internal/api"
	"docchat/internal/chat"
	"docchat/internal/demo"
	"docchat/internal/registry"
	"docchat/internal/search"
	"docchat/internal/state"
	"docchat/internal/watch"
)

// Deps collects everything the UI operates on. All fields are required.
type Deps struct {
	Client   *api.Client
	Store    *state.Store
	Chat     *chat.Manager
	Registry *registry.Registry
	Monitor  *watch.Monitor
	Demo     *demo.Store
	Search   *search.Index

	// HistoryPath is where entered chat lines persist across runs. Empty
	// disables persistence.
	HistoryPath string
}

// App is the root Bubble Tea model.
type App struct {
	deps Deps

	// ctx scopes all background polling to the current login. Logout cancels
	// it, which stops any in-flight upload or demo-ingestion loop.
	ctx    context.Context
	cancel context.CancelFunc

	identity *state.Identity
	adminNav bool

	login loginModel
	chat  chatModel
	admin adminModel

	width  int
	height int
	status string
}

func NewApp(deps Deps) App {
	ctx, cancel := context.WithCancel(context.Background())
	return App{
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		login:  newLoginModel(),
		chat:   newChatModel(deps.HistoryPath),
		admin:  newAdminModel(),
	}
}

// ========== Messages ==========

type bootstrapDoneMsg struct{ identity state.Identity }
type bootstrapFailedMsg struct{ err error }
type loginDoneMsg struct {
	identity state.Identity
	err      error
}
type logoutDoneMsg struct{ err error }
type queryDoneMsg struct{ err error }
type refreshDoneMsg struct{ err error }
type sessionPickedMsg struct{ err error }
type clearDoneMsg struct {
	all bool
	err error
}
type searchDoneMsg struct {
	hits []search.Hit
	err  error
}
type uploadDoneMsg struct {
	filename string
	err      error
}
type demoDoneMsg struct {
	enabled bool
	err     error
}
type systemStatusMsg struct {
	status *api.SystemStatus
	err    error
}

// pulseMsg drives re-renders while uploads or demo ingestion run in the
// background.
type pulseMsg struct{}

func pulse() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg { return pulseMsg{} })
}

// ========== Model ==========

func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if _, ok := a.deps.Store.Credentials(); ok {
		cmds = append(cmds, a.bootstrapCmd())
	}
	return tea.Batch(cmds...)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.cancel()
			return a, tea.Quit
		}

	case bootstrapDoneMsg:
		id := msg.identity
		a.identity = &id
		a.status = ""
		return a, nil

	case bootstrapFailedMsg:
		// Fail closed: the stored credentials are already gone, land on
		// login as if none had existed.
		log.Printf("session restore failed: %v", msg.err)
		a.identity = nil
		a.login.err = nil
		return a, nil

	case loginDoneMsg:
		return a.handleLoginDone(msg)

	case logoutDoneMsg:
		if msg.err != nil {
			log.Printf("logout: %v", msg.err)
		}
		return a.resetToLogin(), nil

	case pulseMsg:
		if a.deps.Monitor.Busy() || a.admin.demoIngesting {
			return a, pulse()
		}
		return a, nil
	}

	switch routeView(a.identity != nil, a.adminNav) {
	case ViewLogin:
		return a.updateLogin(msg)
	case ViewAdmin:
		return a.updateAdmin(msg)
	default:
		return a.updateChat(msg)
	}
}

func (a App) View() string {
	switch routeView(a.identity != nil, a.adminNav) {
	case ViewLogin:
		return a.viewLogin()
	case ViewAdmin:
		return a.viewAdmin()
	default:
		return a.viewChat()
	}
}

// ========== Session lifecycle ==========

// bootstrapCmd resurrects a persisted login. Any failure along the way drops
// the stored credentials so the next start is a clean login.
func (a App) bootstrapCmd() tea.Cmd {
	ctx := a.ctx
	deps := a.deps
	return func() tea.Msg {
		profile, err := deps.Client.Profile(ctx)
		if err != nil {
			deps.Store.ClearCredentials()
			return bootstrapFailedMsg{err: err}
		}
		if err := deps.Chat.Restore(ctx); err != nil {
			deps.Store.ClearCredentials()
			return bootstrapFailedMsg{err: err}
		}
		if err := deps.Registry.Refresh(ctx); err != nil {
			deps.Store.ClearCredentials()
			return bootstrapFailedMsg{err: err}
		}
		return bootstrapDoneMsg{identity: state.Identity{
			Username: profile.Username,
			IsAdmin:  profile.IsAdmin,
		}}
	}
}

func (a App) handleLoginDone(msg loginDoneMsg) (tea.Model, tea.Cmd) {
	a.login.busy = false
	if msg.err != nil {
		a.login.err = msg.err
		return a, nil
	}
	id := msg.identity
	a.identity = &id
	a.login = newLoginModel()
	a.chat = newChatModel(a.deps.HistoryPath)
	return a, nil
}

func (a App) logoutCmd() tea.Cmd {
	ctx := context.Background()
	deps := a.deps
	return func() tea.Msg {
		err := deps.Client.Logout(ctx)
		deps.Chat.Reset()
		return logoutDoneMsg{err: err}
	}
}

// resetToLogin drops everything scoped to the login: background polling,
// chat state, navigation. Demo-mode flags survive on purpose.
func (a App) resetToLogin() App {
	a.cancel()
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.deps.Registry.Reset()
	a.identity = nil
	a.adminNav = false
	a.login = newLoginModel()
	a.chat = newChatModel(a.deps.HistoryPath)
	a.admin = newAdminModel()
	a.status = ""
	return a
}
