// Package tui is the live terminal dashboard for a running engine.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/engine"
	"github.com/aayushbajaj/trigcap/internal/permission"
	"github.com/aayushbajaj/trigcap/internal/storage"
	"github.com/aayushbajaj/trigcap/internal/timer"
)

const (
	actionTimeout   = 2 * time.Second
	recentLimit     = 5
	suggestionLimit = 5
)

// Controller is the part of the engine the dashboard drives.
type Controller interface {
	Snapshot(ctx context.Context) (engine.Snapshot, error)
	Commit(ctx context.Context) error
	Cancel(ctx context.Context) error
	StopTimer(ctx context.Context) (*capture.Record, error)
	ResolveConflict(ctx context.Context, d timer.Decision) (timer.Resolution, error)
	AddTag(ctx context.Context, tag string) error
	RenameTimer(ctx context.Context, name string) error
}

// Store supplies history.
type Store interface {
	GetTodayStats() (*storage.DayStats, error)
	GetHistoricalStats(days int) ([]storage.DayStats, error)
	ListCaptures(f storage.Filter) ([]capture.Record, error)
	KnownTags() ([]string, error)
}

type snapshotMsg struct {
	snap engine.Snapshot
	err  error
}

type statsMsg struct {
	today  *storage.DayStats
	week   []storage.DayStats
	recent []capture.Record
	known  []string
	err    error
}

type actionMsg struct {
	status string
	err    error
}

type tickMsg time.Time

// Model is the bubbletea model.
type Model struct {
	ctrl    Controller
	store   Store
	changes <-chan changeMsg

	snap   *engine.Snapshot
	today  *storage.DayStats
	week   []storage.DayStats
	recent []capture.Record
	known  []string

	tagMode     bool
	tagInput    string
	suggestions []string
	selected    int

	renameMode  bool
	renameInput string

	status string
	err    error
	width  int
	height int
}

// New returns a dashboard. ctrl and store may be nil.
func New(ctrl Controller, store Store) Model {
	return Model{ctrl: ctrl, store: store}
}

// WithFeed makes the model refresh whenever feed reports an engine change.
func (m Model) WithFeed(feed *Feed) Model {
	m.changes = feed.ch
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchSnapshot(), m.fetchStats(), tick(), m.waitForChange())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) fetchSnapshot() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if ctrl == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		snap, err := ctrl.Snapshot(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m Model) fetchStats() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		if store == nil {
			return nil
		}
		today, err := store.GetTodayStats()
		if err != nil {
			return statsMsg{err: err}
		}
		week, err := store.GetHistoricalStats(7)
		if err != nil {
			return statsMsg{err: err}
		}
		recent, err := store.ListCaptures(storage.Filter{Limit: recentLimit})
		if err != nil {
			return statsMsg{err: err}
		}
		known, err := store.KnownTags()
		if err != nil {
			return statsMsg{err: err}
		}
		return statsMsg{today: today, week: week, recent: recent, known: known}
	}
}

func (m Model) action(fn func(ctx context.Context, ctrl Controller) (string, error)) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if ctrl == nil {
			return actionMsg{err: engine.ErrNotRunning}
		}
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		status, err := fn(ctx, ctrl)
		return actionMsg{status: status, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.tagMode {
			return m.updateTagMode(msg)
		}
		if m.renameMode {
			return m.updateRenameMode(msg)
		}
		return m.updateNormal(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(m.fetchSnapshot(), tick())

	case changeMsg:
		cmds := []tea.Cmd{m.fetchSnapshot(), m.waitForChange()}
		if msg.stats {
			cmds = append(cmds, m.fetchStats())
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		if msg.err != nil {
			m.status = "engine: " + msg.err.Error()
			return m, nil
		}
		snap := msg.snap
		m.snap = &snap

	case statsMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.today = msg.today
		m.week = msg.week
		m.recent = msg.recent
		m.known = msg.known
		m.refreshSuggestions()

	case actionMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = msg.status
		}
		return m, m.fetchSnapshot()
	}

	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "r":
		return m, tea.Batch(m.fetchSnapshot(), m.fetchStats())

	case "tab":
		SetTheme(nextTheme())
		m.status = "Theme: " + CurrentTheme.Name

	case "enter":
		return m, m.action(func(ctx context.Context, c Controller) (string, error) {
			return "Committed", c.Commit(ctx)
		})

	case "x":
		return m, m.action(func(ctx context.Context, c Controller) (string, error) {
			return "Cancelled", c.Cancel(ctx)
		})

	case "s":
		return m, m.action(func(ctx context.Context, c Controller) (string, error) {
			rec, err := c.StopTimer(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Stopped %q after %s", rec.Content, formatElapsed(rec.Duration())), nil
		})

	case "y", "n":
		if m.snap == nil || m.snap.Timer.Pending == nil {
			return m, nil
		}
		d := timer.DecisionCancelNew
		if msg.String() == "y" {
			d = timer.DecisionStopAndReplace
		}
		return m, m.action(func(ctx context.Context, c Controller) (string, error) {
			res, err := c.ResolveConflict(ctx, d)
			if err != nil {
				return "", err
			}
			if res.Started {
				return "Replaced running timer", nil
			}
			return "Kept running timer", nil
		})

	case "t":
		if m.snap == nil || !m.snap.Timer.Running {
			m.status = "No timer running"
			return m, nil
		}
		m.tagMode = true
		m.tagInput = ""
		m.refreshSuggestions()

	case "e":
		if m.snap == nil || !m.snap.Timer.Running {
			m.status = "No timer running"
			return m, nil
		}
		m.renameMode = true
		m.renameInput = m.snap.Timer.Name
	}
	return m, nil
}

func (m Model) updateRenameMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.renameMode = false
	case tea.KeyBackspace:
		if r := []rune(m.renameInput); len(r) > 0 {
			m.renameInput = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.renameInput += " "
	case tea.KeyRunes:
		m.renameInput += string(msg.Runes)
	case tea.KeyEnter:
		name := strings.TrimSpace(m.renameInput)
		m.renameMode = false
		if name == "" {
			m.status = "Timer name cannot be empty"
			return m, nil
		}
		return m, m.action(func(ctx context.Context, c Controller) (string, error) {
			return fmt.Sprintf("Renamed timer to %q", name), c.RenameTimer(ctx, name)
		})
	}
	return m, nil
}

func (m Model) updateTagMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.tagMode = false
		return m, nil
	case tea.KeyBackspace:
		if r := []rune(m.tagInput); len(r) > 0 {
			m.tagInput = string(r[:len(r)-1])
		}
	case tea.KeyUp:
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case tea.KeyDown:
		if m.selected < len(m.suggestions)-1 {
			m.selected++
		}
		return m, nil
	case tea.KeyEnter:
		tag := strings.TrimSpace(m.tagInput)
		if len(m.suggestions) > 0 && m.selected < len(m.suggestions) {
			tag = m.suggestions[m.selected]
		}
		m.tagMode = false
		if tag == "" {
			return m, nil
		}
		return m, m.action(func(ctx context.Context, c Controller) (string, error) {
			return "Tagged #" + tag, c.AddTag(ctx, tag)
		})
	case tea.KeySpace:
		m.tagInput += " "
	case tea.KeyRunes:
		m.tagInput += string(msg.Runes)
	default:
		return m, nil
	}
	m.refreshSuggestions()
	return m, nil
}

func (m *Model) refreshSuggestions() {
	m.selected = 0
	if !m.tagMode {
		m.suggestions = nil
		return
	}
	var applied map[string]bool
	if m.snap != nil {
		applied = make(map[string]bool, len(m.snap.Timer.Tags))
		for _, t := range m.snap.Timer.Tags {
			applied[strings.ToLower(t)] = true
		}
	}
	var candidates []string
	for _, t := range m.known {
		if !applied[strings.ToLower(t)] {
			candidates = append(candidates, t)
		}
	}
	m.suggestions = timer.SuggestTags(m.tagInput, candidates, suggestionLimit)
}

func (m Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err)
	}
	if m.snap == nil && m.today == nil {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Trigger Capture"))
	b.WriteString("\n")

	left := lipgloss.JoinVertical(lipgloss.Left, m.renderEngine(), "", m.renderTimer())
	right := lipgloss.JoinVertical(lipgloss.Left, m.renderToday(), "", m.renderWeek())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxStyle.Render(left), " ", boxStyle.Render(right)))
	b.WriteString("\n")

	if len(m.recent) > 0 {
		b.WriteString(boxStyle.Render(m.renderRecent()))
		b.WriteString("\n")
	}
	if m.tagMode {
		b.WriteString(m.renderTagInput())
		b.WriteString("\n")
	}
	if m.renameMode {
		b.WriteString(labelStyle.Render("Name: ") + m.renameInput + "▏")
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(mutedStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(m.help()))
	return b.String()
}

func (m Model) help() string {
	if m.tagMode {
		return "type to filter • ↑/↓ select • enter add • esc back"
	}
	if m.renameMode {
		return "enter rename • esc back"
	}
	if m.snap != nil && m.snap.Timer.Pending != nil {
		return "y stop & replace • n keep current • q quit"
	}
	return "enter commit • x cancel • s stop timer • t tag • e rename • r refresh • tab theme • q quit"
}

func row(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-11s", label)) + value
}

func (m Model) renderEngine() string {
	lines := []string{sectionStyle.Render("Engine")}
	if m.snap == nil {
		return strings.Join(append(lines, mutedStyle.Render("not connected")), "\n")
	}
	s := m.snap

	perm := s.Permission.String()
	switch s.Permission {
	case permission.StateGranted:
		perm = okStyle.Render(perm)
	case permission.StateDenied:
		perm = alertStyle.Render(perm)
	}
	lines = append(lines, row("Permission", perm))

	listener := "stopped"
	switch {
	case s.Monitor.Degraded:
		listener = alertStyle.Render("degraded")
	case s.Monitor.Running:
		listener = okStyle.Render("listening")
	}
	if s.Monitor.Dropped > 0 {
		listener += mutedStyle.Render(fmt.Sprintf(" (%s dropped)", formatNumber(int64(s.Monitor.Dropped))))
	}
	lines = append(lines, row("Listener", listener))

	if s.Pending != "" {
		lines = append(lines, row("Typed", s.Pending))
	}

	sess := s.Session
	if !sess.Active() {
		lines = append(lines, row("Session", mutedStyle.Render("idle")))
		return strings.Join(lines, "\n")
	}
	state := sess.Status.String()
	if sess.Suspended {
		state += " (composing)"
	}
	lines = append(lines,
		row("Session", valueStyle.Render(sess.Kind.String())+" "+state),
		row("Trigger", sess.Pattern),
		row("Content", sess.Content+mutedStyle.Render("▏")),
		row("Remaining", fmt.Sprintf("%.1fs", sess.Remaining.Seconds())),
	)
	return strings.Join(lines, "\n")
}

func (m Model) renderTimer() string {
	lines := []string{sectionStyle.Render("Timer")}
	if m.snap == nil || !m.snap.Timer.Running {
		lines = append(lines, mutedStyle.Render("none running"))
	} else {
		t := m.snap.Timer
		lines = append(lines,
			row("Event", valueStyle.Render(t.Name)),
			row("Elapsed", formatElapsed(t.Elapsed)),
		)
		if len(t.Tags) > 0 {
			lines = append(lines, row("Tags", "#"+strings.Join(t.Tags, " #")))
		}
	}
	if m.snap != nil && m.snap.Timer.Pending != nil {
		p := m.snap.Timer.Pending
		lines = append(lines, "", alertStyle.Render(fmt.Sprintf("Start %q? %q has run %s.",
			p.Requested, p.Current.Name, formatElapsed(p.Current.Elapsed))))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderToday() string {
	lines := []string{sectionStyle.Render("Today")}
	if m.today == nil {
		return strings.Join(append(lines, mutedStyle.Render("no history")), "\n")
	}
	lines = append(lines,
		row("Notes", formatNumber(int64(m.today.Notes))),
		row("Tasks", formatNumber(int64(m.today.Tasks))),
		row("Timers", fmt.Sprintf("%s (%s)", formatNumber(int64(m.today.Timers)),
			formatElapsed(time.Duration(m.today.TimerSeconds)*time.Second))),
	)
	return strings.Join(lines, "\n")
}

func (m Model) renderWeek() string {
	return sectionStyle.Render("This Week") + "\n" + m.renderWeeklyGraph()
}

func (m Model) renderWeeklyGraph() string {
	if len(m.week) == 0 {
		return "No data"
	}

	maxTotal := 0
	for _, d := range m.week {
		if d.Total() > maxTotal {
			maxTotal = d.Total()
		}
	}
	if maxTotal == 0 {
		return "No activity this week"
	}

	bars := []rune("▁▂▃▄▅▆▇█")
	var graph, labels strings.Builder
	for _, d := range m.week {
		idx := 0
		if d.Total() > 0 {
			idx = d.Total() * (len(bars) - 1) / maxTotal
			if idx == 0 {
				idx = 1
			}
		}
		graph.WriteString(barStyle.Render(strings.Repeat(string(bars[idx]), 2)))
		graph.WriteString(" ")

		label := "  "
		if t, err := time.Parse("2006-01-02", d.Date); err == nil {
			label = t.Format("Mon")[:2]
		}
		labels.WriteString(mutedStyle.Render(label))
		labels.WriteString(" ")
	}
	return graph.String() + "\n" + labels.String()
}

func (m Model) renderRecent() string {
	lines := []string{sectionStyle.Render("Recent")}
	for _, rec := range m.recent {
		content := rec.Content
		if r := []rune(content); len(r) > 48 {
			content = string(r[:47]) + "…"
		}
		lines = append(lines, fmt.Sprintf("%s %-5s %s",
			mutedStyle.Render(rec.Started.Format("15:04")), rec.Kind, content))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTagInput() string {
	lines := []string{labelStyle.Render("Tag: ") + m.tagInput + "▏"}
	for i, s := range m.suggestions {
		if i == m.selected {
			lines = append(lines, selectedStyle.Render("› #"+s))
		} else {
			lines = append(lines, "  #"+s)
		}
	}
	return strings.Join(lines, "\n")
}

func formatNumber(n int64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
