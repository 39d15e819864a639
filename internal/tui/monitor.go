package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"moodscope/internal/analysis"
)

// SensitivityStep is how far one key press moves the gain.
const SensitivityStep = 0.05

const barWidth = 30

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A0A0A0")).
			Width(10)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	moodColors = map[analysis.Mood]lipgloss.Color{
		analysis.Calm:        lipgloss.Color("#5FAFD7"),
		analysis.Happy:       lipgloss.Color("#FFD75F"),
		analysis.Energetic:   lipgloss.Color("#FF5F5F"),
		analysis.Melancholic: lipgloss.Color("#AF87FF"),
	}
)

// Controller is the part of a session the monitor drives.
type Controller interface {
	SetSensitivity(v float64)
	Sensitivity() float64
}

// ResultMsg carries one analysis result into the program.
type ResultMsg analysis.AnalysisResult

// feedClosedMsg ends the program when the result feed is closed.
type feedClosedMsg struct{}

type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("+", "=", "up"),
		key.WithHelp("+", "more sensitive"),
	),
	Down: key.NewBinding(
		key.WithKeys("-", "_", "down"),
		key.WithHelp("-", "less sensitive"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Monitor is the Bubble Tea model for the live mood display.
type Monitor struct {
	ctl     Controller
	results <-chan analysis.AnalysisResult
	keys    keyMap
	help    help.Model

	last   analysis.AnalysisResult
	frames int
	width  int
	source string
}

// NewMonitor builds a monitor reading from results. source names the input
// in the title.
func NewMonitor(ctl Controller, results <-chan analysis.AnalysisResult, source string) Monitor {
	return Monitor{
		ctl:     ctl,
		results: results,
		keys:    defaultKeys,
		help:    help.New(),
		source:  source,
	}
}

// Init starts listening for results.
func (m Monitor) Init() tea.Cmd {
	return waitForResult(m.results)
}

func waitForResult(results <-chan analysis.AnalysisResult) tea.Cmd {
	if results == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-results
		if !ok {
			return feedClosedMsg{}
		}
		return ResultMsg(r)
	}
}

// Update handles results, window changes and keys.
func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case ResultMsg:
		m.last = analysis.AnalysisResult(msg)
		m.frames++
		return m, waitForResult(m.results)

	case feedClosedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.nudge(SensitivityStep)
		case key.Matches(msg, m.keys.Down):
			m.nudge(-SensitivityStep)
		}
	}
	return m, nil
}

// nudge moves the sensitivity, rounding to the step grid so repeated
// presses do not accumulate float error.
func (m Monitor) nudge(delta float64) {
	v := m.ctl.Sensitivity() + delta
	m.ctl.SetSensitivity(math.Round(v/SensitivityStep) * SensitivityStep)
}

// View renders the current state.
func (m Monitor) View() string {
	var sb strings.Builder

	title := "moodscope"
	if m.source != "" {
		title += " · " + m.source
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")

	if m.frames == 0 {
		sb.WriteString(infoStyle.Render("Waiting for audio..."))
		sb.WriteString("\n\n")
	} else {
		r := m.last
		mood := lipgloss.NewStyle().Bold(true).Foreground(moodColors[r.Mood]).
			Render(strings.ToUpper(r.Mood.String()))
		fmt.Fprintf(&sb, "%s %s  confidence %.2f\n", labelStyle.Render("Mood"), mood, r.MoodConfidence)
		fmt.Fprintf(&sb, "%s %.1f Hz\n\n", labelStyle.Render("Dominant"), r.DominantFrequency)

		f := r.Features
		for _, row := range []struct {
			name  string
			value float64
		}{
			{"Energy", f.Energy},
			{"RMS", f.RMS},
			{"ZCR", f.ZCR},
			{"Centroid", f.SpectralCentroid},
			{"Flatness", f.SpectralFlatness},
			{"Rolloff", f.SpectralRolloff},
		} {
			fmt.Fprintf(&sb, "%s %s %.3f\n", labelStyle.Render(row.name), bar(row.value), row.value)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "%s %s %.2f\n", labelStyle.Render("Gain"), bar(m.ctl.Sensitivity()), m.ctl.Sensitivity())
	fmt.Fprintf(&sb, "%s %d\n\n", labelStyle.Render("Frames"), m.frames)
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

// bar draws v in [0,1] as a fixed-width meter.
func bar(v float64) string {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	filled := int(math.Round(v * barWidth))
	return barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", barWidth-filled)
}
