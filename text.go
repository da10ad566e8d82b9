package main

import (
	"fmt"
	"strings"
	"time"

	"goplaying/mediaremote"
)

// scrollSeparator is appended to scrolling text before it wraps around
const scrollSeparator = "  •  "

// formatTime converts seconds to MM:SS format
func formatTime(seconds int64) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// formatDuration is formatTime for a time.Duration, truncated to seconds
func formatDuration(d time.Duration) string {
	return formatTime(int64(d / time.Second))
}

// scrollText returns a scrolling window of text with smooth looping
func scrollText(text string, max int, offset int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	fullText := append(runes, []rune(scrollSeparator)...)
	textLen := len(fullText)
	offset = offset % textLen

	result := make([]rune, 0, max)
	for i := 0; i < max; i++ {
		result = append(result, fullText[(offset+i)%textLen])
	}
	return string(result)
}

// playbackStatus renders the play state of a snapshot
func playbackStatus(st mediaremote.PlaybackState) string {
	playing, ok := st.IsPlaying()
	switch {
	case !ok:
		return ""
	case playing:
		return "Playing"
	default:
		return "Paused"
	}
}

// modeBadges lists the active shuffle and repeat modes, e.g. "shuffle songs · repeat all"
func modeBadges(st mediaremote.PlaybackState) string {
	var badges []string
	if s, ok := st.ShuffleMode(); ok && s != mediaremote.ShuffleOff {
		badges = append(badges, "shuffle "+s.String())
	}
	if r, ok := st.RepeatMode(); ok && r != mediaremote.RepeatOff {
		badges = append(badges, "repeat "+r.String())
	}
	return strings.Join(badges, " · ")
}
