// SPDX-License-Identifier: MIT

// Package tui renders pipeline updates as terminal bar charts.
package tui

import (
	"fmt"
	"math"
	"strings"

	"micscope/internal/pipeline"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Eighth-block elements for the top cell of a bar.
var barBlocks = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

const (
	defaultChartHeight = 8
	minChartHeight     = 3
	barGap             = " "
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	labelStyle    = lipgloss.NewStyle().Bold(true)
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	waveformStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	specLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	specMidStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	specHighStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
)

var quitKeys = key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit"))

// UpdateMsg delivers a pipeline update to the model.
type UpdateMsg pipeline.Update

// StatusMsg replaces the status line.
type StatusMsg string

// Model is the visualizer view: a waveform chart, a spectrum chart
// and the raw min/max readout.
type Model struct {
	title   string
	update  pipeline.Update
	status  string
	width   int
	height  int
	updates uint64
}

// NewModel returns a model that shows zero charts until the first update.
func NewModel(title string, buckets int) Model {
	return Model{
		title: title,
		update: pipeline.Update{
			Waveform: make([]float64, buckets),
			Spectrum: make([]float64, buckets),
		},
		status: "Waiting for microphone...",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case UpdateMsg:
		m.update = pipeline.Update(msg)
		m.updates++
		if m.update.State == pipeline.Streaming {
			m.status = ""
		}
	case StatusMsg:
		m.status = string(msg)
	case tea.KeyMsg:
		if key.Matches(msg, quitKeys) {
			return m, tea.Quit
		}
	}
	return m, nil
}

// chartHeight splits the terminal between the two charts.
func (m Model) chartHeight() int {
	if m.height == 0 {
		return defaultChartHeight
	}
	// Title, two labels, readout, status and help take six rows.
	return max(minChartHeight, (m.height-6)/2)
}

// View implements tea.Model.
func (m Model) View() string {
	h := m.chartHeight()
	u := m.update

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render("Waveform"))
	sb.WriteString("\n")
	sb.WriteString(renderChart(u.WaveformBars(), h, m.barWidth(len(u.Waveform)), waveformColor))
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render("Spectrum"))
	sb.WriteString("\n")
	sb.WriteString(renderChart(u.SpectrumBars(), h, m.barWidth(len(u.Spectrum)), spectrumColor))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("min %.0f  max %.0f  [%s #%d]", u.Min, u.Max, u.State, u.Seq))
	sb.WriteString("\n")
	if m.status != "" {
		sb.WriteString(statusStyle.Render(m.status))
		sb.WriteString("\n")
	}
	sb.WriteString(infoStyle.Render(quitKeys.Help().Key + ": " + quitKeys.Help().Desc))
	return sb.String()
}

// barWidth fits n bars into the terminal width.
func (m Model) barWidth(n int) int {
	if m.width == 0 || n == 0 {
		return 2
	}
	return max(1, (m.width-(n-1)*len(barGap))/n)
}

func waveformColor(float64) lipgloss.Style {
	return waveformStyle
}

func spectrumColor(level float64) lipgloss.Style {
	switch {
	case level > 0.75:
		return specHighStyle
	case level > 0.45:
		return specMidStyle
	default:
		return specLowStyle
	}
}

// renderChart draws bars (fractions in [0, 1]) as a chart height rows
// tall. Each bar is width cells wide; the top cell uses eighth blocks.
func renderChart(bars []float64, height, width int, color func(float64) lipgloss.Style) string {
	levels := len(barBlocks) - 1
	rows := make([]string, height)
	for r := range height {
		// Row 0 is the top of the chart.
		floor := (height - 1 - r) * levels

		var sb strings.Builder
		for i, bar := range bars {
			if i > 0 {
				sb.WriteString(barGap)
			}
			bar = math.Max(0, math.Min(1, bar))
			fill := int(math.Round(bar*float64(height*levels))) - floor
			idx := max(0, min(fill, levels))
			sb.WriteString(color(bar).Render(strings.Repeat(barBlocks[idx], width)))
		}
		rows[r] = sb.String()
	}
	return strings.Join(rows, "\n")
}
