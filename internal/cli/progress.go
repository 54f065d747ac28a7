package cli

import (
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/lkoehler/docintake-go/internal/pipeline"
)

const pollInterval = 100 * time.Millisecond

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the pipeline state.
type tickMsg time.Time

// progressUpdateMsg carries a fresh pipeline snapshot.
type progressUpdateMsg pipeline.Progress

// progressModel is the bubbletea model for commit progress.
type progressModel struct {
	pipe     *pipeline.Pipeline
	prog     pipeline.Progress
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
}

func newProgressModel(p *pipeline.Pipeline) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		pipe:     p,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchProgress()

	case progressUpdateMsg:
		m.prog = pipeline.Progress(msg)

		switch m.prog.Phase {
		case pipeline.PhaseComplete, pipeline.PhaseError:
			m.done = true
			return m, tea.Quit
		}
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return ""
	}

	var pct float64
	if m.prog.Total > 0 {
		pct = float64(m.prog.Processed) / float64(m.prog.Total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.prog.Phase))
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d Dateien", m.prog.Processed, m.prog.Total)
	if m.prog.QueueDepth > 0 {
		counts += fmt.Sprintf(" (+%d Auswahlen in Warteschlange)", m.prog.QueueDepth)
	}

	hint := m.theme.hintStyle().Render("Ctrl+C beendet die Anzeige, die Übertragung läuft weiter")

	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, hint)
}

// fetchProgress polls the pipeline. Runs as a command to keep Update
// non-blocking.
func (m progressModel) fetchProgress() tea.Cmd {
	return func() tea.Msg {
		return progressUpdateMsg(m.pipe.Progress())
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runProgressTUI shows the commit progress display until the pipeline
// reaches a terminal phase or the user quits.
func runProgressTUI(p *pipeline.Pipeline) error {
	model := newProgressModel(p)
	prog := tea.NewProgram(model)
	_, err := prog.Run()
	return err
}
