package console

import "charm.land/lipgloss/v2"

// Palette
var (
	primary   = lipgloss.Color("#8B5CF6") // purple
	secondary = lipgloss.Color("#14B8A6") // teal
	accent    = lipgloss.Color("#F97316") // orange
	success   = lipgloss.Color("#22C55E")
	failure   = lipgloss.Color("#F43F5E")
	text      = lipgloss.Color("#F8FAFC")
	textDim   = lipgloss.Color("#94A3B8")
	border    = lipgloss.Color("#334155")
)

var (
	stageStyle = lipgloss.NewStyle().
			Foreground(secondary).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(text).
			Bold(true)

	optionKeyStyle = lipgloss.NewStyle().
			Foreground(primary).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			Foreground(text)

	infoStyle = lipgloss.NewStyle().
			Foreground(text)

	hintStyle = lipgloss.NewStyle().
			Foreground(textDim).
			Italic(true)

	correctStyle = lipgloss.NewStyle().
			Foreground(success).
			Bold(true)

	incorrectStyle = lipgloss.NewStyle().
			Foreground(failure).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(accent)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(1, 2)
)
