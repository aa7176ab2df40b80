// Package style carries the color palette and rendering helpers shared by
// every govm subcommand, so `install`, `list`, and `status` all look like
// one tool.
package style

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/compat"
	"gopkg.in/yaml.v3"
)

// Color palette - standardized across the application
var (
	MidnightColor  = "#0D1B2A"
	NavyColor      = "#1B263B"
	LanternColor   = "#F4D58D"
	ChameleonColor = "#3A7D44"
	ForestColor    = "#1E5128"
	SunsetColor    = "#D88A60"
	OffWhiteColor  = "#F8F9FA"
	WarmGrayColor  = "#CED4DA"
	ErrorBaseColor = "#2D1B1B"

	LightLanternColor  = "#E6A645"
	LightWarmGrayColor = "#8B949E"
	LightOffWhiteColor = "#F1F3F4"

	ErrorColor = compat.AdaptiveColor{
		Light: lipgloss.Color(SunsetColor),
		Dark:  lipgloss.Color(SunsetColor),
	}

	WarningColor = compat.AdaptiveColor{
		Light: lipgloss.Color(LightLanternColor),
		Dark:  lipgloss.Color(LanternColor),
	}

	SuccessColor = compat.AdaptiveColor{
		Light: lipgloss.Color(ForestColor),
		Dark:  lipgloss.Color(ChameleonColor),
	}

	InfoColor = compat.AdaptiveColor{
		Light: lipgloss.Color(NavyColor),
		Dark:  lipgloss.Color(LanternColor),
	}

	MutedColor = compat.AdaptiveColor{
		Light: lipgloss.Color(LightWarmGrayColor),
		Dark:  lipgloss.Color(WarmGrayColor),
	}

	AccentColor = compat.AdaptiveColor{
		Light: lipgloss.Color(ChameleonColor),
		Dark:  lipgloss.Color(LanternColor),
	}

	CodeColor = compat.AdaptiveColor{
		Light: lipgloss.Color(MidnightColor),
		Dark:  lipgloss.Color(MidnightColor),
	}

	PrimaryTextColor = compat.AdaptiveColor{
		Light: lipgloss.Color(MidnightColor),
		Dark:  lipgloss.Color(OffWhiteColor),
	}

	PrimaryBgColor = compat.AdaptiveColor{
		Light: lipgloss.Color(OffWhiteColor),
		Dark:  lipgloss.Color(MidnightColor),
	}

	ErrorBgColor = compat.AdaptiveColor{
		Light: lipgloss.Color(OffWhiteColor),
		Dark:  lipgloss.Color(ErrorBaseColor),
	}
)

var (
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(MutedColor)
	AccentStyle  = lipgloss.NewStyle().Foreground(AccentColor)

	ActiveMarkerStyle = lipgloss.NewStyle().Foreground(AccentColor).Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryTextColor)

	VersionStyle = lipgloss.NewStyle().
			Foreground(PrimaryTextColor).
			Bold(true)
)

// PrintJSON outputs data as formatted JSON.
func PrintJSON(w io.Writer, data interface{}) {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		fmt.Fprintf(w, "error encoding JSON: %v\n", err)
	}
}

// PrintYAML outputs data as YAML.
func PrintYAML(w io.Writer, data interface{}) {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		fmt.Fprintf(w, "error encoding YAML: %v\n", err)
	}
	encoder.Close()
}

func SuccessIcon() string { return SuccessStyle.Render("✓") }
func ErrorIcon() string   { return ErrorStyle.Render("✗") }
func WarningIcon() string { return WarningStyle.Render("⚠") }
func InfoIcon() string    { return InfoStyle.Render("ℹ") }

// Success prints a success message with styling.
func Success(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", SuccessIcon(), SuccessStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message with styling.
func Error(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", ErrorIcon(), ErrorStyle.Render(fmt.Sprintf(format, args...)))
}

// Warning prints a warning message with styling.
func Warning(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", WarningIcon(), WarningStyle.Render(fmt.Sprintf(format, args...)))
}

// Info prints an info message with styling.
func Info(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", InfoIcon(), InfoStyle.Render(fmt.Sprintf(format, args...)))
}
