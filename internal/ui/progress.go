// Package ui renders compile progress in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"aotc/internal/compile"
)

type progressModel struct {
	title   string
	events  <-chan compile.Event
	spinner spinner.Model
	prog    progress.Model
	types   []typeItem
	index   map[string]int
	queued  int
	settled int
	summary string
	width   int
	done    bool
}

// typeItem tracks one class: how many of its elements were queued and how
// many finished.
type typeItem struct {
	name    string
	status  string
	queued  int
	settled int
	failed  bool
}

type eventMsg compile.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders per-class
// compile progress from events until the channel closes.
func NewProgressModel(title string, events <-chan compile.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		index:   make(map[string]int),
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(compile.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		model, cmd := m.prog.Update(msg)
		m.prog = model.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%d/%d elements)", m.title, m.settled, m.queued)
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	const statusWidth = 12
	nameWidth := max(m.width-statusWidth-12, 20)
	for _, item := range m.types {
		status := styleStatus(item.status).Render(fmt.Sprintf("%*s", statusWidth, item.status))
		fmt.Fprintf(&b, "  %s %s %d/%d\n", status, truncate(item.name, nameWidth), item.settled, item.queued)
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	if m.summary != "" {
		b.WriteString(m.summary)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) item(name string) *typeItem {
	idx, ok := m.index[name]
	if !ok {
		idx = len(m.types)
		m.types = append(m.types, typeItem{name: name, status: "queued"})
		m.index[name] = idx
	}
	return &m.types[idx]
}

func (m *progressModel) applyEvent(ev compile.Event) tea.Cmd {
	if ev.Stage == compile.StageCompleted {
		m.summary = fmt.Sprintf("finished in %s", ev.Elapsed.Round(time.Millisecond))
		if ev.Err != nil {
			m.summary = fmt.Sprintf("stopped after %s: %v", ev.Elapsed.Round(time.Millisecond), ev.Err)
		}
		return nil
	}
	if ev.Type == "" {
		return nil
	}
	item := m.item(ev.Type)
	switch ev.Stage {
	case compile.StageQueued:
		item.queued++
		m.queued++
	case compile.StageDone, compile.StageFailed:
		item.settled++
		m.settled++
		if ev.Stage == compile.StageFailed {
			item.failed = true
		}
	}
	item.status = statusLabel(item, ev.Stage)

	if m.queued == 0 {
		return nil
	}
	return m.prog.SetPercent(float64(m.settled) / float64(m.queued))
}

func statusLabel(item *typeItem, stage compile.Stage) string {
	if item.failed {
		return "error"
	}
	if item.queued > 0 && item.settled == item.queued {
		return "done"
	}
	switch stage {
	case compile.StageVerify:
		return "verifying"
	case compile.StageResolve:
		return "resolving"
	case compile.StagePrepare:
		return "preparing"
	case compile.StageCompile, compile.StageDone:
		return "compiling"
	}
	return item.status
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "verifying", "resolving", "preparing", "compiling":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
