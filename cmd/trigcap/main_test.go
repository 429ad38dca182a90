package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/config"
	"github.com/aayushbajaj/trigcap/internal/storage"
	"github.com/aayushbajaj/trigcap/internal/timer"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConflictPolicy(t *testing.T) {
	c := timer.Conflict{Current: timer.Current{Name: "standup", Elapsed: 90 * time.Second}, Requested: "review"}

	replace, err := conflictPolicy("replace", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, timer.DecisionStopAndReplace, replace(c))

	keep, err := conflictPolicy("KEEP", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, timer.DecisionCancelNew, keep(c))

	var prompt bytes.Buffer
	ask, err := conflictPolicy("ask", strings.NewReader("y\n\n"), &prompt)
	require.NoError(t, err)
	assert.Equal(t, timer.DecisionStopAndReplace, ask(c))
	assert.Contains(t, prompt.String(), `"standup" has been running for 1m30s`)
	assert.Equal(t, timer.DecisionCancelNew, ask(c), "empty answer keeps the running timer")

	_, err = conflictPolicy("maybe", nil, nil)
	assert.Error(t, err)
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	got, err := parseSince("48h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), got)

	got, err = parseSince("2026-03-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local), got)

	_, err = parseSince("last week", now)
	assert.Error(t, err)
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\tc", 10))
	assert.Equal(t, "abcd…", oneLine("abcdefgh", 5))
}

func TestTriggersCommands(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "--config", cfgPath, "triggers", "add", "--id", "todo", "--kind", "task", "++")
	require.NoError(t, err)
	assert.Contains(t, out, `Added task trigger "++" (todo)`)

	_, err = execute(t, "--config", cfgPath, "triggers", "add", "//")
	assert.ErrorIs(t, err, trigger.ErrPrefixCollision)

	_, err = execute(t, "--config", cfgPath, "triggers", "disable", "todo")
	require.NoError(t, err)

	cfg, err := config.ReadFile(cfgPath)
	require.NoError(t, err)
	def, ok := cfg.Trigger("todo")
	require.True(t, ok)
	assert.False(t, def.Enabled)
	assert.Len(t, cfg.Triggers, len(trigger.Defaults())+1)

	out, err = execute(t, "--config", cfgPath, "triggers", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "todo")
	assert.Contains(t, out, "false")

	_, err = execute(t, "--config", cfgPath, "triggers", "remove", "nope")
	assert.ErrorIs(t, err, config.ErrTriggerNotFound)

	out, err = execute(t, "--config", cfgPath, "triggers", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "4 triggers, 3 enabled")
}

func TestCapturesCommands(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "trigcap.db")
	store, err := storage.NewWithPath(dbPath)
	require.NoError(t, err)

	now := time.Now().Truncate(time.Millisecond)
	require.NoError(t, store.SaveCapture(capture.Record{
		ID: "n1", Kind: trigger.KindNote, Content: "buy milk", Started: now.Add(-time.Minute), Finished: now.Add(-time.Minute),
	}))
	require.NoError(t, store.SaveCapture(capture.Record{
		ID: "t1", Kind: trigger.KindTimer, Content: "standup", Tags: []string{"work"},
		Started: now.Add(-20 * time.Minute), Finished: now.Add(-5 * time.Minute),
	}))
	require.NoError(t, store.Close())

	base := []string{"--config", filepath.Join(dir, "config.toml"), "--db", dbPath}

	out, err := execute(t, append(base, "captures", "list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "buy milk")
	assert.Contains(t, out, "15m0s")

	out, err = execute(t, append(base, "captures", "list", "--kind", "timer", "--json")...)
	require.NoError(t, err)
	var recs []capture.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "standup", recs[0].Content)

	out, err = execute(t, append(base, "captures", "show", "t1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Tags:     #work")

	out, err = execute(t, append(base, "captures", "export", "--yaml")...)
	require.NoError(t, err)
	assert.Contains(t, out, "content: buy milk")

	out, err = execute(t, append(base, "timer", "tags", "wo")...)
	require.NoError(t, err)
	assert.Equal(t, "#work\n", out)

	_, err = execute(t, append(base, "captures", "delete", "n1")...)
	require.NoError(t, err)
	_, err = execute(t, append(base, "captures", "show", "n1")...)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
