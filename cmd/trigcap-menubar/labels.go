package main

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/engine"
	"github.com/aayushbajaj/trigcap/internal/permission"
	"github.com/aayushbajaj/trigcap/internal/storage"
)

const titleContentLen = 18

// menuTitle is the text shown in the menu bar.
func menuTitle(snap engine.Snapshot) string {
	switch {
	case snap.Permission == permission.StateDenied:
		return "⌨️ ⚠︎"
	case snap.Monitor.Degraded:
		return "⌨️ !"
	}

	var parts []string
	if snap.Session.Active() {
		parts = append(parts, fmt.Sprintf("✎ %s", clip(snap.Session.Content, titleContentLen)))
	}
	if snap.Timer.Running {
		parts = append(parts, fmt.Sprintf("⏱ %s", formatClock(snap.Timer.Elapsed)))
	}
	if len(parts) == 0 {
		return "⌨️"
	}
	return strings.Join(parts, " | ")
}

// statusLine describes the listener for the first menu row.
func statusLine(snap engine.Snapshot) string {
	switch {
	case snap.Permission == permission.StateDenied:
		return "Waiting for Input Monitoring access"
	case snap.Monitor.Degraded:
		return "Listener degraded, re-arming"
	case !snap.Monitor.Running:
		return "Listener stopped"
	}
	return fmt.Sprintf("Listening (%d triggers)", len(snap.Triggers))
}

func sessionLine(s capture.Snapshot) string {
	if !s.Active() {
		return "No capture in progress"
	}
	line := fmt.Sprintf("Capturing %s after %q", s.Kind, s.Pattern)
	if s.Remaining > 0 {
		line += fmt.Sprintf(", %ds left", int(s.Remaining.Round(time.Second).Seconds()))
	}
	return line
}

func timerLine(snap engine.Snapshot) string {
	t := snap.Timer
	if !t.Running {
		return "No timer running"
	}
	line := fmt.Sprintf("%s: %s", t.Name, formatClock(t.Elapsed))
	if len(t.Tags) > 0 {
		line += " #" + strings.Join(t.Tags, " #")
	}
	return line
}

func todayLine(d *storage.DayStats) string {
	if d == nil {
		return "Today: --"
	}
	return fmt.Sprintf("Today: %d notes, %d tasks, %s tracked",
		d.Notes, d.Tasks, formatClock(time.Duration(d.TimerSeconds)*time.Second))
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func clip(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:max-1]), " ") + "…"
}
