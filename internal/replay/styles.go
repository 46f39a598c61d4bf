// Package replay renders recorded sessions as a readable timeline.
package replay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Event color scheme - each concern keeps one consistent color.
var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - timestamps, metadata

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")) // White bold - headers

	flowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")) // White - assistant/user text

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")) // Blue - tool calls

	planStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")) // Magenta - routing and plans

	approvalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("208")) // Orange - approval gate

	reflectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")) // Cyan - reflection hints

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // Red

	seqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(5).
			Align(lipgloss.Right)

	divider = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(strings.Repeat("━", 60))
)
