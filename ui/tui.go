package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/franksops/s3xfer/engine"
)

const refreshInterval = 250 * time.Millisecond

// TUIModel implements the tea.Model interface
type TUIModel struct {
	state    *UIState
	snap     Snapshot
	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model

	// onQuit runs when the user quits, to cancel the transfers.
	onQuit func()

	width  int
	height int

	// Styles
	titleStyle   lipgloss.Style
	infoStyle    lipgloss.Style
	streamStyle  lipgloss.Style
	helpStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
}

// tickMsg triggers a refresh from the shared state.
type tickMsg time.Time

// DoneMsg tells the model the round has finished.
type DoneMsg struct{}

func NewTUIModel(state *UIState, onQuit func()) TUIModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	prog := progress.New(progress.WithDefaultGradient())

	return TUIModel{
		state:        state,
		snap:         state.Snapshot(),
		spinner:      s,
		progress:     prog,
		onQuit:       onQuit,
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		streamStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		helpStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m TUIModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 14

		headerHeight := 5
		footerHeight := 2
		m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)

	case tickMsg:
		m.snap = m.state.Snapshot()
		cmds = append(cmds, tick())

	case DoneMsg:
		m.state.Finish()
		m.snap = m.state.Snapshot()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m TUIModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	snap := m.snap
	var sb strings.Builder

	// Header
	header := fmt.Sprintf("%s s3xfer %s", m.spinner.View(), m.titleStyle.Render(snap.Title))
	sb.WriteString(header + "\n")

	// Global Progress
	percent := snap.Percent()
	opsInfo := fmt.Sprintf("ETA: %s | Workers: %d | Files: %d/%d | %s / %s | %s",
		formatETA(percent, snap.ThroughputBPms(), snap.TotalBytes, snap.CompletedBytes),
		snap.Workers,
		snap.CompletedFiles, snap.TotalFiles,
		engine.HumanSize(snap.CompletedBytes), engine.HumanSize(snap.TotalBytes),
		formatSpeed(snap.ThroughputBPms()*1000))
	sb.WriteString(m.infoStyle.Render(opsInfo) + "\n")
	sb.WriteString(m.progress.ViewAs(percent) + "\n\n")

	// Recently finished
	sb.WriteString("Recent:\n")
	var recent strings.Builder
	if len(snap.Recent) == 0 {
		recent.WriteString(m.infoStyle.Render("Waiting for the first transfer..."))
	} else {
		for i := len(snap.Recent) - 1; i >= 0; i-- {
			recent.WriteString(m.renderFinished(snap.Recent[i]) + "\n")
		}
	}
	m.viewport.SetContent(recent.String())
	sb.WriteString(m.viewport.View())

	// Footer
	help := m.helpStyle.Render("q/ctrl+c: cancel transfers")
	switch {
	case snap.Done && snap.FailedFiles > 0:
		help = m.errorStyle.Render(fmt.Sprintf("%d transfer(s) failed", snap.FailedFiles))
	case snap.Done:
		help = m.successStyle.Render("Transfers complete!")
	}
	sb.WriteString("\n" + help)

	return sb.String()
}

func (m TUIModel) renderFinished(f FinishedJob) string {
	path := f.Path
	if len(path) > 60 {
		path = "..." + path[len(path)-57:]
	}
	switch f.Status {
	case engine.StatusFailed:
		return m.errorStyle.Render("FAIL ") + path
	case engine.StatusSkipped:
		return m.infoStyle.Render("SKIP ") + path
	case engine.StatusResumed:
		return m.infoStyle.Render("DONE ") + path
	}
	return m.streamStyle.Render(fmt.Sprintf("%-10s", engine.HumanSize(f.Bytes))) + " " + path
}

func formatSpeed(bytesPerSec float64) string {
	if bytesPerSec >= 1024*1024*1024 {
		return fmt.Sprintf("%.2f GB/s", bytesPerSec/(1024*1024*1024))
	} else if bytesPerSec >= 1024*1024 {
		return fmt.Sprintf("%.2f MB/s", bytesPerSec/(1024*1024))
	} else if bytesPerSec >= 1024 {
		return fmt.Sprintf("%.2f KB/s", bytesPerSec/1024)
	}
	return fmt.Sprintf("%.0f B/s", bytesPerSec)
}

func formatETA(progress float64, bytesPerMs float64, totalBytes, completedBytes int64) string {
	if progress == 0 || bytesPerMs <= 0 || totalBytes == 0 {
		return "Calculating..."
	}

	remainingBytes := totalBytes - completedBytes
	if remainingBytes <= 0 {
		return "0s"
	}

	remainingMs := float64(remainingBytes) / bytesPerMs
	d := time.Duration(remainingMs) * time.Millisecond

	if d.Hours() > 24 {
		return "> 1d"
	}

	return d.Round(time.Second).String()
}
