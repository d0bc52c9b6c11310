package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette inspired by standard terminal dark themes.
var (
	ColorPrimary = lipgloss.Color("255") // White
	ColorAccent  = lipgloss.Color("39")  // Blue / Cyan
	ColorSuccess = lipgloss.Color("42")  // Green
	ColorError   = lipgloss.Color("196") // Red
	ColorWarning = lipgloss.Color("214") // Orange
	ColorDim     = lipgloss.Color("240") // Dimmed text
)

var (
	StyleNormal = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleDimmed = lipgloss.NewStyle().Foreground(ColorDim)
	StyleTitle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).MarginBottom(1)
	StylePrompt = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	StyleUser   = lipgloss.NewStyle().Bold(true).Foreground(ColorDim)
	StyleAnswer = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleSQL    = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleError  = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
)
