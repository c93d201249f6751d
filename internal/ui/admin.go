package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"docchat/internal/api"
	"docchat/internal/registry"
)

type adminModel struct {
	selected      int
	demoIngesting bool
	uploading     bool
	uploadInput   textinput.Model
	system        *api.SystemStatus
	notice        string
	noticeIsErr   bool
}

type adminActionMsg struct{ err error }

func newAdminModel() adminModel {
	in := textinput.New()
	in.Placeholder = "/path/to/document.pdf"
	in.Prompt = "Upload> "
	in.CharLimit = 0
	in.Width = 60
	return adminModel{uploadInput: in}
}

// ========== Update ==========

func (a App) updateAdmin(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.admin.uploading {
		return a.updateAdminUpload(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		docs := a.deps.Registry.Documents()
		switch msg.String() {
		case "esc", "q":
			a.adminNav = false
			return a, nil

		case "up", "k":
			if a.admin.selected > 0 {
				a.admin.selected--
			}
			return a, nil

		case "down", "j":
			if a.admin.selected < len(docs)-1 {
				a.admin.selected++
			}
			return a, nil

		case "enter", "a":
			if len(docs) == 0 {
				return a, nil
			}
			a.admin.notice = ""
			return a, a.setActiveCmd(a.admin.selected)

		case "i":
			if len(docs) == 0 {
				return a, nil
			}
			a.admin.notice = ""
			return a, a.toggleIngestedCmd(a.admin.selected)

		case "r":
			a.admin.notice = ""
			return a, a.refreshCmd()

		case "d":
			return a.toggleDemo()

		case "u":
			a.admin.uploading = true
			a.admin.uploadInput.SetValue("")
			return a, a.admin.uploadInput.Focus()

		case "s":
			return a, a.systemStatusCmd()
		}

	case refreshDoneMsg:
		if msg.err != nil {
			a.admin.notice = "Refresh failed: " + msg.err.Error()
			a.admin.noticeIsErr = true
		}
		if n := len(a.deps.Registry.Documents()); a.admin.selected >= n && n > 0 {
			a.admin.selected = n - 1
		}
		return a, nil

	case adminActionMsg:
		if msg.err != nil {
			a.admin.notice = msg.err.Error()
			a.admin.noticeIsErr = true
		}
		return a, nil

	case demoDoneMsg:
		a.admin.demoIngesting = false
		if msg.err != nil {
			a.admin.notice = "Demo mode: " + msg.err.Error()
			a.admin.noticeIsErr = true
		} else if msg.enabled {
			a.admin.notice = "Demo documents ready."
			a.admin.noticeIsErr = false
		} else {
			a.admin.notice = "Demo mode off."
			a.admin.noticeIsErr = false
		}
		return a, nil

	case systemStatusMsg:
		if msg.err != nil {
			a.admin.notice = "Status check failed: " + msg.err.Error()
			a.admin.noticeIsErr = true
		} else {
			a.admin.system = msg.status
		}
		return a, nil

	case uploadDoneMsg:
		if msg.err != nil {
			a.admin.notice = fmt.Sprintf("Upload %s failed: %v", msg.filename, msg.err)
			a.admin.noticeIsErr = true
		} else {
			a.admin.notice = fmt.Sprintf("Uploaded %s.", msg.filename)
			a.admin.noticeIsErr = false
		}
		return a, nil
	}

	return a, nil
}

func (a App) updateAdminUpload(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			a.admin.uploading = false
			a.admin.uploadInput.Blur()
			return a, nil
		case "enter":
			path := strings.TrimSpace(a.admin.uploadInput.Value())
			a.admin.uploading = false
			a.admin.uploadInput.Blur()
			if path == "" {
				return a, nil
			}
			a.admin.notice = ""
			return a, tea.Batch(a.uploadCmd(path), pulse())
		}
	}
	var cmd tea.Cmd
	a.admin.uploadInput, cmd = a.admin.uploadInput.Update(msg)
	return a, cmd
}

func (a App) toggleDemo() (tea.Model, tea.Cmd) {
	enable := !a.deps.Demo.Enabled()
	if err := a.deps.Demo.SetEnabled(enable); err != nil {
		a.admin.notice = "Demo mode: " + err.Error()
		a.admin.noticeIsErr = true
		return a, nil
	}
	if enable {
		a.admin.demoIngesting = true
		a.admin.notice = "Preparing demo documents..."
		a.admin.noticeIsErr = false
		return a, tea.Batch(a.demoCmd(true), pulse())
	}
	return a, a.demoCmd(false)
}

// ========== Commands ==========

func (a App) refreshCmd() tea.Cmd {
	ctx := a.ctx
	reg := a.deps.Registry
	return func() tea.Msg {
		return refreshDoneMsg{err: reg.Refresh(ctx)}
	}
}

func (a App) setActiveCmd(index int) tea.Cmd {
	ctx := a.ctx
	reg := a.deps.Registry
	return func() tea.Msg {
		return adminActionMsg{err: reg.SetActive(ctx, index)}
	}
}

func (a App) toggleIngestedCmd(index int) tea.Cmd {
	ctx := a.ctx
	reg := a.deps.Registry
	return func() tea.Msg {
		return adminActionMsg{err: reg.ToggleIngested(ctx, index)}
	}
}

func (a App) demoCmd(enable bool) tea.Cmd {
	ctx := a.ctx
	reg := a.deps.Registry
	return func() tea.Msg {
		if enable {
			return demoDoneMsg{enabled: true, err: reg.EnsureDemoIngested(ctx)}
		}
		return demoDoneMsg{enabled: false, err: reg.ResetDemo(ctx)}
	}
}

func (a App) systemStatusCmd() tea.Cmd {
	ctx := a.ctx
	client := a.deps.Client
	return func() tea.Msg {
		status, err := client.SystemStatus(ctx)
		return systemStatusMsg{status: status, err: err}
	}
}

// ========== View ==========

func (a App) viewAdmin() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("docchat admin") + "\n\n")

	demoLabel := "off"
	if a.deps.Demo.Enabled() {
		demoLabel = activeStyle.Render("on")
	}
	b.WriteString(faintStyle.Render("Demo mode: ") + demoLabel)
	if a.admin.demoIngesting {
		b.WriteString(faintStyle.Render("  (ingesting demo documents...)"))
	}
	b.WriteString("\n\n")

	docs := a.deps.Registry.Documents()
	if len(docs) == 0 {
		b.WriteString(faintStyle.Render("No documents yet. Press u to upload one.") + "\n")
	}
	for i, d := range docs {
		b.WriteString(renderDocRow(d, i == a.admin.selected) + "\n")
	}
	b.WriteString("\n")

	b.WriteString(a.renderUploads())

	if a.admin.uploading {
		b.WriteString(a.admin.uploadInput.View() + "\n")
		b.WriteString(faintStyle.Render("Enter to upload, Esc to cancel.") + "\n")
	}

	if a.admin.system != nil {
		s := a.admin.system
		b.WriteString(faintStyle.Render(fmt.Sprintf(
			"System: %s, %d documents processed, %d active sessions",
			s.SystemHealth, s.DocumentsProcessed, s.ActiveSessions)) + "\n")
	}

	if a.admin.notice != "" {
		style := faintStyle
		if a.admin.noticeIsErr {
			style = errorStyle
		}
		b.WriteString(style.Render(a.admin.notice) + "\n")
	}

	b.WriteString("\n" + faintStyle.Render("↑/↓ select · a set active · i toggle ingested · u upload · d demo · r refresh · s status · esc back"))
	return b.String()
}

func renderDocRow(d registry.Document, selected bool) string {
	marker := " "
	if d.IsActive {
		marker = activeStyle.Render("●")
	}
	ingested := " "
	if d.Ingested {
		ingested = "✓"
	}
	row := fmt.Sprintf("%s [%s] %-40s %-12s %8s", marker, ingested, d.Filename, d.Status, humanSize(d.Size))
	if selected {
		return selectedStyle.Render(row)
	}
	return row
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
