package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/trigger"
)

const sampleTOML = `
capture_timeout_seconds = 30
commit_on_return = false

[[triggers]]
id = "n"
pattern = "::n"
kind = "note"
enabled = true

[[triggers]]
id = "t"
pattern = "::t"
kind = "timer"
enabled = true

[notifications]
on_capture = false
`

const sampleYAML = `
capture_timeout_seconds: 20
remove_trigger_text: true
triggers:
  - id: todo
    pattern: "+++"
    kind: task
    enabled: true
logging:
  level: debug
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10*time.Second, cfg.Timeout())
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, sampleTOML)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.CaptureTimeoutSeconds)
	assert.False(t, cfg.CommitOnReturn)
	assert.True(t, cfg.IMECompositionSupport, "unset keys keep their defaults")
	assert.False(t, cfg.Notifications.OnCapture)
	assert.True(t, cfg.Notifications.OnDegraded)
	require.Len(t, cfg.Triggers, 2)
	assert.Equal(t, trigger.KindTimer, cfg.Triggers[1].Kind)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.CaptureTimeoutSeconds)
	assert.True(t, cfg.RemoveTriggerText)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Triggers, 1)
	assert.Equal(t, trigger.KindTask, cfg.Triggers[0].Kind)
}

func TestLoadWithoutTriggersKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "capture_timeout_seconds = 15\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, trigger.Defaults(), cfg.Triggers)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	writeFile(t, bad, "capture_timeout_seconds = = 3")
	_, err := Load(bad)
	assert.Error(t, err)

	collide := filepath.Join(dir, "collide.toml")
	writeFile(t, collide, `
[[triggers]]
id = "a"
pattern = ";;"
kind = "note"
enabled = true

[[triggers]]
id = "b"
pattern = ";;;"
kind = "task"
enabled = true
`)
	_, err = Load(collide)
	assert.ErrorIs(t, err, trigger.ErrPrefixCollision)

	zero := filepath.Join(dir, "zero.toml")
	writeFile(t, zero, "capture_timeout_seconds = 0\n")
	_, err = Load(zero)
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvTimeout, " 45 ")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.CaptureTimeoutSeconds)

	t.Setenv(EnvTimeout, "soon")
	cfg, err = Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.CaptureTimeoutSeconds)

	t.Setenv(EnvConfig, "/tmp/elsewhere.yaml")
	assert.Equal(t, "/tmp/elsewhere.yaml", Path())
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.toml", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := Default()
			cfg.CaptureTimeoutSeconds = 25
			_, err := cfg.AddTrigger(trigger.Definition{Pattern: "!!!", Kind: trigger.KindTask, Enabled: true})
			require.NoError(t, err)

			require.NoError(t, Save(cfg, path))
			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "no temp files left behind")
		})
	}
}

func TestTriggerEditing(t *testing.T) {
	cfg := Default()

	added, err := cfg.AddTrigger(trigger.Definition{Pattern: "@@@", Kind: trigger.KindNote, Enabled: true})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Len(t, cfg.Triggers, 4)

	_, err = cfg.AddTrigger(trigger.Definition{Pattern: "//", Kind: trigger.KindNote, Enabled: true})
	assert.ErrorIs(t, err, trigger.ErrPrefixCollision)
	assert.Len(t, cfg.Triggers, 4, "rejected add leaves the set alone")

	require.NoError(t, cfg.UpdateTrigger(added.ID, func(d *trigger.Definition) { d.Pattern = "@@" }))
	got, ok := cfg.Trigger(added.ID)
	require.True(t, ok)
	assert.Equal(t, "@@", got.Pattern)

	err = cfg.UpdateTrigger(added.ID, func(d *trigger.Definition) { d.Pattern = ",,," })
	assert.ErrorIs(t, err, trigger.ErrDuplicatePattern)
	got, _ = cfg.Trigger(added.ID)
	assert.Equal(t, "@@", got.Pattern)

	require.NoError(t, cfg.SetTriggerEnabled("01-note", false))
	got, _ = cfg.Trigger("01-note")
	assert.False(t, got.Enabled)

	require.NoError(t, cfg.RemoveTrigger(added.ID))
	assert.Len(t, cfg.Triggers, 3)
	assert.True(t, errors.Is(cfg.RemoveTrigger(added.ID), ErrTriggerNotFound))
	assert.ErrorIs(t, cfg.SetTriggerEnabled("missing", true), ErrTriggerNotFound)
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Triggers[0].Pattern = "###"
	assert.Equal(t, "///", cfg.Triggers[0].Pattern)
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.CaptureTimeoutSeconds = 7
	cfg.IMECompositionSupport = false
	cfg.RemoveTriggerText = true
	cfg.PermissionPollSeconds = 9

	opts := cfg.EngineOptions()
	assert.Equal(t, 7*time.Second, opts.Timeout)
	assert.False(t, opts.IMEComposition)
	assert.True(t, opts.CommitOnReturn)
	assert.True(t, opts.RemoveTriggerText)
	assert.Equal(t, 9*time.Second, opts.PermissionPoll)
	assert.Equal(t, cfg.Triggers, opts.Triggers)
}

func TestLoaderReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "capture_timeout_seconds = 12\n")

	l := NewLoader(path, zap.NewNop())
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.CaptureTimeoutSeconds)

	var seen atomic.Int64
	l.OnChange(func(c *Config) { seen.Store(int64(c.CaptureTimeoutSeconds)) })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Watch(ctx))

	writeFile(t, path, "capture_timeout_seconds = 33\n")
	assert.Eventually(t, func() bool { return seen.Load() == 33 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 33, l.Config().CaptureTimeoutSeconds)

	// An invalid edit is ignored and the previous config stays current.
	writeFile(t, path, "capture_timeout_seconds = -1\n")
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 33, l.Config().CaptureTimeoutSeconds)

	cancel()
	l.Wait()
}
