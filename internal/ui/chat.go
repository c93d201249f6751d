package ui

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/chat"
	"docchat/internal/search"
)

type chatModel struct {
	input       textinput.Model
	spin        spinner.Model
	history     []string
	histIndex   int
	historyPath string

	showSessions bool
	searchHits   []search.Hit
	searchQuery  string
	notice       string
	noticeIsErr  bool
}

func newChatModel(historyPath string) chatModel {
	in := textinput.New()
	in.Placeholder = "Ask about your document, or /help"
	in.Prompt = "You> "
	in.CharLimit = 0
	in.Width = 60
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	h := loadInputHistory(historyPath)
	return chatModel{
		input:       in,
		spin:        s,
		history:     h,
		histIndex:   len(h),
		historyPath: historyPath,
	}
}

func loadInputHistory(path string) []string {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (c *chatModel) appendInputHistory(line string) {
	c.history = append(c.history, line)
	c.histIndex = len(c.history)
	if c.historyPath == "" {
		return
	}
	f, err := os.OpenFile(c.historyPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err == nil {
		fmt.Fprintln(f, line)
		f.Close()
	}
}

// ========== Update ==========

func (a App) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if a.chat.histIndex > 0 {
				a.chat.histIndex--
				a.chat.input.SetValue(a.chat.history[a.chat.histIndex])
				a.chat.input.CursorEnd()
			}
			return a, nil

		case "down":
			if a.chat.histIndex < len(a.chat.history)-1 {
				a.chat.histIndex++
				a.chat.input.SetValue(a.chat.history[a.chat.histIndex])
				a.chat.input.CursorEnd()
			} else {
				a.chat.histIndex = len(a.chat.history)
				a.chat.input.SetValue("")
			}
			return a, nil

		case "enter":
			line := strings.TrimSpace(a.chat.input.Value())
			if line == "" {
				return a, nil
			}
			a.chat.input.SetValue("")
			a.chat.appendInputHistory(line)
			a.chat.notice = ""
			a.chat.noticeIsErr = false
			a.chat.searchHits = nil
			return a.runChatLine(line)
		}

	case queryDoneMsg:
		if msg.err != nil {
			// Only pre-flight failures land here; backend failures become
			// transcript messages.
			a.chat.notice = msg.err.Error()
			a.chat.noticeIsErr = true
		}
		return a, nil

	case sessionPickedMsg:
		if msg.err != nil {
			a.chat.notice = "Could not open session: " + msg.err.Error()
			a.chat.noticeIsErr = true
		} else {
			a.chat.showSessions = false
		}
		return a, nil

	case clearDoneMsg:
		if msg.err != nil {
			a.chat.notice = "Clear failed: " + msg.err.Error()
			a.chat.noticeIsErr = true
		} else if msg.all {
			a.chat.notice = "All sessions cleared."
		} else {
			a.chat.notice = "Session cleared."
		}
		return a, nil

	case searchDoneMsg:
		if msg.err != nil {
			a.chat.notice = "Search failed: " + msg.err.Error()
			a.chat.noticeIsErr = true
		} else {
			a.chat.searchHits = msg.hits
		}
		return a, nil

	case uploadDoneMsg:
		if msg.err != nil {
			a.chat.notice = fmt.Sprintf("Upload %s failed: %v", msg.filename, msg.err)
			a.chat.noticeIsErr = true
		} else {
			a.chat.notice = fmt.Sprintf("Uploaded %s.", msg.filename)
		}
		return a, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.chat.input, cmd = a.chat.input.Update(msg)
	cmds = append(cmds, cmd)
	a.chat.spin, cmd = a.chat.spin.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

// runChatLine dispatches one entered line: slash commands act on the app,
// anything else is a question for the active document.
func (a App) runChatLine(line string) (tea.Model, tea.Cmd) {
	if !strings.HasPrefix(line, "/") {
		return a, tea.Batch(a.sendCmd(line), a.chat.spin.Tick)
	}

	cmd, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "new":
		a.deps.Chat.NewSession()
		a.chat.showSessions = false
		return a, nil

	case "sessions":
		a.chat.showSessions = !a.chat.showSessions
		return a, nil

	case "select":
		if rest == "" {
			a.chat.notice = "Usage: /select <number|session-id>"
			a.chat.noticeIsErr = true
			return a, nil
		}
		id := rest
		if n, err := strconv.Atoi(rest); err == nil {
			sessions := a.deps.Chat.Sessions()
			if n < 1 || n > len(sessions) {
				a.chat.notice = fmt.Sprintf("No session %d.", n)
				a.chat.noticeIsErr = true
				return a, nil
			}
			id = sessions[n-1].ID
		}
		return a, a.selectSessionCmd(id)

	case "search":
		if rest == "" {
			a.chat.notice = "Usage: /search <query>"
			a.chat.noticeIsErr = true
			return a, nil
		}
		a.chat.searchQuery = rest
		return a, a.searchCmd(rest)

	case "clear":
		return a, a.clearCmd(false)

	case "clearall":
		return a, a.clearCmd(true)

	case "upload":
		if rest == "" {
			a.chat.notice = "Usage: /upload <path>"
			a.chat.noticeIsErr = true
			return a, nil
		}
		return a, tea.Batch(a.uploadCmd(rest), pulse())

	case "admin":
		if a.identity == nil || !a.identity.IsAdmin {
			a.chat.notice = "Admin access required."
			a.chat.noticeIsErr = true
			return a, nil
		}
		a.adminNav = true
		return a, a.refreshCmd()

	case "logout":
		return a, a.logoutCmd()

	case "help":
		a.chat.notice = "Commands: /new /sessions /select /search /clear /clearall /upload /admin /logout"
		return a, nil
	}

	a.chat.notice = "Unknown command /" + cmd + ". Try /help."
	a.chat.noticeIsErr = true
	return a, nil
}

// ========== Commands ==========

func (a App) sendCmd(text string) tea.Cmd {
	ctx := a.ctx
	mgr := a.deps.Chat
	return func() tea.Msg {
		return queryDoneMsg{err: mgr.SendMessage(ctx, text)}
	}
}

func (a App) selectSessionCmd(id string) tea.Cmd {
	ctx := a.ctx
	mgr := a.deps.Chat
	return func() tea.Msg {
		return sessionPickedMsg{err: mgr.SelectSession(ctx, id)}
	}
}

func (a App) clearCmd(all bool) tea.Cmd {
	ctx := a.ctx
	mgr := a.deps.Chat
	return func() tea.Msg {
		if all {
			return clearDoneMsg{all: true, err: mgr.ClearAll(ctx)}
		}
		return clearDoneMsg{err: mgr.ClearActive(ctx)}
	}
}

func (a App) searchCmd(query string) tea.Cmd {
	mgr := a.deps.Chat
	idx := a.deps.Search
	return func() tea.Msg {
		if err := idx.Rebuild(mgr.Sessions()); err != nil {
			return searchDoneMsg{err: err}
		}
		hits, err := idx.Search(query, 10)
		return searchDoneMsg{hits: hits, err: err}
	}
}

func (a App) uploadCmd(path string) tea.Cmd {
	ctx := a.ctx
	mon := a.deps.Monitor
	return func() tea.Msg {
		err := mon.Upload(ctx, path)
		return uploadDoneMsg{filename: filepath.Base(path), err: err}
	}
}

// ========== View ==========

func (a App) viewChat() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("docchat"))
	if a.identity != nil {
		b.WriteString(faintStyle.Render("  signed in as " + a.identity.Username))
	}
	if a.deps.Demo.Enabled() {
		b.WriteString("  " + activeStyle.Render("[demo]"))
	}
	b.WriteString("\n")

	if doc := a.deps.Chat.ActiveDocument(); doc != nil {
		b.WriteString(faintStyle.Render("Active document: ") + doc.Filename + "\n\n")
	} else {
		b.WriteString(faintStyle.Render("No active document. /upload a file to get started.") + "\n\n")
	}

	if a.chat.showSessions {
		b.WriteString(a.renderSessions())
	}
	if a.chat.searchHits != nil {
		b.WriteString(a.renderSearchHits())
	}

	if sess := a.deps.Chat.Active(); sess != nil {
		for _, m := range sess.Messages {
			b.WriteString(renderMessage(m) + "\n\n")
		}
	}

	if a.deps.Chat.Sending() {
		b.WriteString(assistantStyle.Render("Assistant:") + " " + a.chat.spin.View() + "Thinking...\n\n")
	}

	b.WriteString(a.renderUploads())

	if a.chat.notice != "" {
		style := faintStyle
		if a.chat.noticeIsErr {
			style = errorStyle
		}
		b.WriteString(style.Render(a.chat.notice) + "\n")
	}

	b.WriteString(a.chat.input.View())
	b.WriteString("\n" + faintStyle.Render("/help for commands. Up/Down for input history."))
	return b.String()
}

func renderMessage(m chat.Message) string {
	if m.Role == chat.RoleUser {
		return userStyle.Render("You:") + " " + m.Content
	}
	line := assistantStyle.Render("Assistant:") + " " + m.Content
	if m.Error {
		line = assistantStyle.Render("Assistant:") + " " + errorStyle.Render(m.Content)
	}
	if m.Confidence != nil {
		meta := fmt.Sprintf("confidence %.2f", *m.Confidence)
		if m.SourcesUsed != nil {
			meta += fmt.Sprintf(", %d sources", *m.SourcesUsed)
		}
		line += "\n" + faintStyle.Render("("+meta+")")
	}
	return line
}

func (a App) renderSessions() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sessions") + "\n")
	active := a.deps.Chat.Active()
	for i, s := range a.deps.Chat.Sessions() {
		marker := "  "
		if active != nil && s.ID == active.ID {
			marker = activeStyle.Render("> ")
		}
		b.WriteString(fmt.Sprintf("%s%d. %s (%d messages)\n", marker, i+1, s.ID, len(s.Messages)))
	}
	b.WriteString(faintStyle.Render("/select <number> to switch") + "\n\n")
	return b.String()
}

func (a App) renderSearchHits() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Search: "+a.chat.searchQuery) + "\n")
	if len(a.chat.searchHits) == 0 {
		b.WriteString(faintStyle.Render("No matches.") + "\n\n")
		return b.String()
	}
	for _, h := range a.chat.searchHits {
		content := h.Content
		if len(content) > 120 {
			content = content[:120] + "..."
		}
		b.WriteString(fmt.Sprintf("  [%s] %s: %s\n", h.SessionID, h.Role, content))
	}
	b.WriteString("\n")
	return b.String()
}

func (a App) renderUploads() string {
	entries := a.deps.Monitor.Entries()
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		switch e.Status {
		case "completed":
			b.WriteString(activeStyle.Render(fmt.Sprintf("✓ %s processed", e.Filename)) + "\n")
		case "error":
			b.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %s", e.Filename, e.Message)) + "\n")
		default:
			b.WriteString(faintStyle.Render(fmt.Sprintf("… %s %s %d%%", e.Filename, e.Status, e.Progress)) + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}
