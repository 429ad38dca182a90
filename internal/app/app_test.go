package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aayushbajaj/trigcap/internal/config"
	"github.com/aayushbajaj/trigcap/internal/keylogger"
	"github.com/aayushbajaj/trigcap/internal/keymap"
	"github.com/aayushbajaj/trigcap/internal/permission"
	"github.com/aayushbajaj/trigcap/internal/storage"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

type granted struct{}

func (granted) Trusted() bool { return true }
func (granted) Prompt() bool { return true }

func newTestApp(t *testing.T, configBody string) (*App, *keylogger.Simulated, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	if configBody != "" {
		require.NoError(t, os.WriteFile(cfgPath, []byte(configBody), 0644))
	}

	sim := keylogger.NewSimulated(256)
	a, err := New(Options{
		ConfigPath: cfgPath,
		DBPath:     filepath.Join(dir, "trigcap.db"),
		NoLogFile:  true,
		Monitor:    sim,
		Checker:    granted{},
		Translator: keymap.USLayout{},
		Quiet:      true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, sim, cfgPath
}

func start(t *testing.T, a *App, sim *keylogger.Simulated) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, sim.Running, 2*time.Second, 5*time.Millisecond)
	return cancel
}

func TestCapturesArePersisted(t *testing.T) {
	a, sim, _ := newTestApp(t, "")
	start(t, a, sim)

	require.NoError(t, sim.Type("///buy milk\n"))

	require.Eventually(t, func() bool {
		recs, err := a.Store.ListCaptures(storage.Filter{})
		return err == nil && len(recs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	recs, err := a.Store.ListCaptures(storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "buy milk", recs[0].Content)
	assert.Equal(t, trigger.KindNote, recs[0].Kind)
	assert.Equal(t, permission.StateGranted, a.Engine.PermissionState())
}

func TestConfigReloadAppliesTriggers(t *testing.T) {
	a, sim, cfgPath := newTestApp(t, "capture_timeout_seconds = 10\n")
	start(t, a, sim)

	cfg := config.Default()
	cfg.Triggers = []trigger.Definition{{ID: "todo", Pattern: "++", Kind: trigger.KindTask, Enabled: true}}
	require.NoError(t, config.Save(cfg, cfgPath))

	require.Eventually(t, func() bool {
		snap, err := a.Engine.Snapshot(context.Background())
		return err == nil && len(snap.Triggers) == 1 && snap.Triggers[0].Pattern == "++"
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, sim.Type("++renew passport\n"))
	require.Eventually(t, func() bool {
		task := trigger.KindTask
		recs, err := a.Store.ListCaptures(storage.Filter{Kind: &task})
		return err == nil && len(recs) == 1 && recs[0].Content == "renew passport"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("capture_timeout_seconds = 0\n"), 0644))

	_, err := New(Options{
		ConfigPath: cfgPath,
		DBPath:     filepath.Join(dir, "trigcap.db"),
		NoLogFile:  true,
		Monitor:    keylogger.NewSimulated(8),
		Checker:    granted{},
	})
	assert.ErrorIs(t, err, config.ErrInvalidTimeout)
}
