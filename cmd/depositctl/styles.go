package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/manifoldco/promptui"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4444")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00BFFF")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	headerStyle  = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#5F5FFF"))
)

const (
	iconCheck = "✓"
	iconError = "✗"
)

func successMessage(format string, args ...interface{}) string {
	return successStyle.Render(iconCheck) + " " + fmt.Sprintf(format, args...)
}

func errorMessage(err error) string {
	return errorStyle.Render(iconError+" error:") + " " + err.Error()
}

func renderHeader(title string) string {
	return headerStyle.Render(" " + title + " ")
}

// field renders one "label: value" line of a detail view.
func field(label, value string) string {
	if value == "" {
		value = mutedStyle.Render("-")
	}
	return labelStyle.Render(fmt.Sprintf("%-12s", label+":")) + " " + value
}

func promptPassword(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("password cannot be empty")
			}
			return nil
		},
	}
	return prompt.Run()
}
