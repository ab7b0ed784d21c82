package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed    = lipgloss.Color("#FF5555")
	ColorGreen  = lipgloss.Color("#50FA7B")
	ColorYellow = lipgloss.Color("#F1FA8C")
	ColorCyan   = lipgloss.Color("#8BE9FD")
	ColorPurple = lipgloss.Color("#BD93F9")
	ColorGray   = lipgloss.Color("#666666")
	ColorWhite  = lipgloss.Color("#F8F8F2")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPurple)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	TimerStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	LiveDotStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	SystemEntryStyle = lipgloss.NewStyle().
				Foreground(ColorGray)

	AnalyzingEntryStyle = lipgloss.NewStyle().
				Foreground(ColorCyan)

	ListeningEntryStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	FeedbackEntryStyle = lipgloss.NewStyle().
				Foreground(ColorWhite)

	ErrorEntryStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	ErrorBarStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Background(ColorRed).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorGray)
)
