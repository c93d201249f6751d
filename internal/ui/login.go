package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"docchat/internal/state"
)

type loginModel struct {
	input [2]textinput.Model // username, password
	focus int
	busy  bool
	err   error
}

func newLoginModel() loginModel {
	user := textinput.New()
	user.Placeholder = "username"
	user.Prompt = "Username> "
	user.CharLimit = 0
	user.Width = 40
	user.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.Prompt = "Password> "
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '*'
	pass.CharLimit = 0
	pass.Width = 40

	return loginModel{input: [2]textinput.Model{user, pass}}
}

func (a App) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && !a.login.busy {
		switch key.String() {
		case "tab", "shift+tab", "up", "down":
			a.login.focus = (a.login.focus + 1) % 2
			var cmds []tea.Cmd
			for i := range a.login.input {
				if i == a.login.focus {
					cmds = append(cmds, a.login.input[i].Focus())
				} else {
					a.login.input[i].Blur()
				}
			}
			return a, tea.Batch(cmds...)

		case "enter":
			username := strings.TrimSpace(a.login.input[0].Value())
			password := a.login.input[1].Value()
			if username == "" || password == "" {
				return a, nil
			}
			a.login.busy = true
			a.login.err = nil
			return a, a.loginCmd(username, password)
		}
	}

	var cmd tea.Cmd
	a.login.input[a.login.focus], cmd = a.login.input[a.login.focus].Update(msg)
	return a, cmd
}

// loginCmd authenticates and then pulls the initial session and document
// state, so the chat screen is ready the moment it appears.
func (a App) loginCmd(username, password string) tea.Cmd {
	ctx := a.ctx
	deps := a.deps
	return func() tea.Msg {
		resp, err := deps.Client.Login(ctx, username, password)
		if err != nil {
			return loginDoneMsg{err: err}
		}
		if err := deps.Chat.Restore(ctx); err != nil {
			return loginDoneMsg{err: err}
		}
		if err := deps.Registry.Refresh(ctx); err != nil {
			return loginDoneMsg{err: err}
		}
		return loginDoneMsg{identity: state.Identity{
			Username: resp.User.Username,
			IsAdmin:  resp.User.IsAdmin,
		}}
	}
}

func (a App) viewLogin() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("docchat") + "\n\n")
	b.WriteString("Sign in to your document assistant.\n\n")
	b.WriteString(a.login.input[0].View() + "\n")
	b.WriteString(a.login.input[1].View() + "\n\n")
	if a.login.busy {
		b.WriteString(faintStyle.Render("Signing in...") + "\n")
	}
	if a.login.err != nil {
		b.WriteString(errorStyle.Render("Login failed: "+a.login.err.Error()) + "\n")
	}
	b.WriteString("\n" + faintStyle.Render("Enter to sign in. Tab switches fields. Ctrl+C quits."))
	return b.String()
}
