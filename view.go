package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m model) View() string {
	cfg := config.Get()

	elapsed, total := m.position(time.Now())
	var progress float64
	if total > 0 {
		progress = float64(elapsed) / float64(total)
	}

	color := lipgloss.Color(m.color)
	highlight := lipgloss.NewStyle().Foreground(color)
	white := lipgloss.NewStyle().Foreground(lipgloss.Color("15")) // ANSI white

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(1, 2)

	labelStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var textContent strings.Builder
	var progressBarContent string

	textContent.WriteString(highlight.Render("󰓃 Now Playing") + "\n\n")

	switch {
	case m.lastError != nil:
		textContent.WriteString(errorStyle.Render("Error: "+m.lastError.Error()) + "\n\n")
		textContent.WriteString(dimStyle.Render("Press r to retry"))

	case m.stopped != nil:
		reason := "Bridge stopped"
		if !m.stopped.Requested && m.stopped.Exit != nil {
			reason = m.stopped.Exit.Error()
		}
		textContent.WriteString(mutedStyle.Render(reason) + "\n\n")
		textContent.WriteString(dimStyle.Render("Press r to restart"))

	case !m.haveState:
		textContent.WriteString(mutedStyle.Render("Nothing playing") + "\n\n")
		textContent.WriteString(dimStyle.Render("Start playing music to begin"))

	default:
		addLine := func(label, value string) {
			if value != "" {
				fmt.Fprintf(&textContent, "%s %s\n", labelStyle.Render(label), value)
			}
		}

		maxLen := m.maxTextLength(cfg)
		texts := m.trackTexts()
		addLine("󰎈 ", scrollText(texts[0], maxLen, m.scrollOffset))
		addLine("󰠃 ", scrollText(texts[1], maxLen, m.scrollOffset))
		addLine("󰀥 ", scrollText(texts[2], maxLen, m.scrollOffset))

		status := playbackStatus(m.state)
		statusIcon := "󰐊 " // play icon (default)
		if status == "Paused" {
			statusIcon = "󰏤 "
		}
		addLine(statusIcon, status)
		addLine("󰓇 ", scrollText(m.sourceName, maxLen, m.scrollOffset))
		if badges := modeBadges(m.state); badges != "" {
			textContent.WriteString(dimStyle.Render(badges) + "\n")
		}
		if m.commandErr != nil {
			textContent.WriteString(errorStyle.Render(m.commandErr.Error()) + "\n")
		}

		if progress > 0 {
			// Bar width calculated from max_width, leaving room for timestamps
			barWidth := cfg.UI.MaxWidth - 17
			filled := min(int(float64(barWidth)*progress), barWidth)
			progressBar := highlight.Render(strings.Repeat("█", filled)) +
				white.Render(strings.Repeat("─", barWidth-filled))

			progressBarContent = fmt.Sprintf(
				"\n%s %s/%s",
				progressBar,
				highlight.Render(formatDuration(elapsed)),
				highlight.Render(formatDuration(total)),
			)
		}
	}

	// Combine artwork and text content
	var topSection string
	if m.artworkEncoded != "" && m.supportsKitty && cfg.Artwork.Enabled {
		// Add padding to the left of text to make room for the image
		paddedText := lipgloss.NewStyle().
			PaddingLeft(cfg.Artwork.Padding).
			Render(textContent.String())
		topSection = m.artworkEncoded + paddedText
	} else if m.supportsKitty {
		// No artwork - delete any existing image
		topSection = kittyDeleteAll + textContent.String()
	} else {
		topSection = textContent.String()
	}

	contentStr := borderStyle.
		Width(cfg.UI.MaxWidth).
		Render(topSection + progressBarContent)

	var helpText string
	if m.showHelp {
		helpText = lipgloss.NewStyle().
			Width(cfg.UI.MaxWidth).
			Align(lipgloss.Center).
			Render(lipgloss.JoinHorizontal(
				lipgloss.Center,
				"Play/Pause: "+highlight.Render("p"),
				"  Next: "+highlight.Render("n"),
				"  Previous: "+highlight.Render("b"),
				"  Stop: "+highlight.Render("s"),
				"  Seek: "+highlight.Render("←/→"),
				"  Toggle Art: "+highlight.Render("a"),
				"  Restart: "+highlight.Render("r"),
				"  Quit: "+highlight.Render("q"),
				"  Hide: "+highlight.Render("?"),
			))
	} else {
		helpText = mutedStyle.Render("Press ? for help")
	}

	fullUI := lipgloss.JoinVertical(lipgloss.Center, contentStr, "\n"+helpText)

	return lipgloss.Place(
		m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		fullUI,
	)
}
