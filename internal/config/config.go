// Package config handles the trigcap configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aayushbajaj/trigcap/internal/engine"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

// Environment overrides.
const (
	EnvConfig  = "TRIGCAP_CONFIG"
	EnvTimeout = "TRIGCAP_TIMEOUT"
)

var (
	ErrTriggerNotFound = errors.New("trigger not found")
	ErrInvalidTimeout  = errors.New("capture timeout must be between 1 and 3600 seconds")
)

// Config is the on-disk configuration.
type Config struct {
	Triggers              []trigger.Definition `toml:"triggers" yaml:"triggers"`
	CaptureTimeoutSeconds int                  `toml:"capture_timeout_seconds" yaml:"capture_timeout_seconds"`
	IMECompositionSupport bool                 `toml:"ime_composition_support" yaml:"ime_composition_support"`
	CommitOnReturn        bool                 `toml:"commit_on_return" yaml:"commit_on_return"`
	RemoveTriggerText     bool                 `toml:"remove_trigger_text" yaml:"remove_trigger_text"`
	PermissionPollSeconds int                  `toml:"permission_poll_seconds" yaml:"permission_poll_seconds"`

	Notifications NotificationsConfig `toml:"notifications" yaml:"notifications"`
	Logging       LoggingConfig       `toml:"logging" yaml:"logging"`
	Storage       StorageConfig       `toml:"storage" yaml:"storage"`
}

// NotificationsConfig selects which events raise a desktop notification.
type NotificationsConfig struct {
	OnCapture  bool `toml:"on_capture" yaml:"on_capture"`
	OnDegraded bool `toml:"on_degraded" yaml:"on_degraded"`
	OnConflict bool `toml:"on_conflict" yaml:"on_conflict"`
}

// LoggingConfig mirrors logging.Options.
type LoggingConfig struct {
	Level   string `toml:"level" yaml:"level"`
	Verbose bool   `toml:"verbose" yaml:"verbose"`
}

// StorageConfig locates the capture database.
type StorageConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Triggers:              trigger.Defaults(),
		CaptureTimeoutSeconds: 10,
		IMECompositionSupport: true,
		CommitOnReturn:        true,
		PermissionPollSeconds: 3,
		Notifications: NotificationsConfig{
			OnCapture:  true,
			OnDegraded: true,
			OnConflict: true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Dir returns ~/.trigcap.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".trigcap"), nil
}

// Path returns the configuration file path, honouring TRIGCAP_CONFIG.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	dir, err := Dir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "config.toml")
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Triggers = append([]trigger.Definition(nil), c.Triggers...)
	return &out
}

// ApplyEnvOverrides applies TRIGCAP_TIMEOUT. Unparseable values are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvTimeout); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.CaptureTimeoutSeconds = n
		}
	}
}

// Validate checks the timeout and the trigger set.
func (c *Config) Validate() error {
	if c.CaptureTimeoutSeconds < 1 || c.CaptureTimeoutSeconds > 3600 {
		return fmt.Errorf("%w: got %d", ErrInvalidTimeout, c.CaptureTimeoutSeconds)
	}
	if c.PermissionPollSeconds < 0 {
		return fmt.Errorf("permission_poll_seconds must not be negative")
	}
	return trigger.Validate(c.Triggers)
}

// Timeout returns the capture timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.CaptureTimeoutSeconds) * time.Second
}

// EngineOptions converts the configuration to engine options.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.Triggers = append([]trigger.Definition(nil), c.Triggers...)
	opts.Timeout = c.Timeout()
	opts.IMEComposition = c.IMECompositionSupport
	opts.CommitOnReturn = c.CommitOnReturn
	opts.RemoveTriggerText = c.RemoveTriggerText
	if c.PermissionPollSeconds > 0 {
		opts.PermissionPoll = time.Duration(c.PermissionPollSeconds) * time.Second
	}
	return opts
}

// Trigger returns the trigger with id.
func (c *Config) Trigger(id string) (trigger.Definition, bool) {
	for _, d := range c.Triggers {
		if d.ID == id {
			return d, true
		}
	}
	return trigger.Definition{}, false
}

// AddTrigger appends def, assigning an ID when empty. The set is validated
// and left unchanged on error.
func (c *Config) AddTrigger(def trigger.Definition) (trigger.Definition, error) {
	if def.ID == "" {
		def.ID = trigger.NewID()
	}
	next := append(append([]trigger.Definition(nil), c.Triggers...), def)
	if err := trigger.Validate(next); err != nil {
		return trigger.Definition{}, err
	}
	c.Triggers = next
	return def, nil
}

// UpdateTrigger applies fn to the trigger with id and validates the result.
func (c *Config) UpdateTrigger(id string, fn func(*trigger.Definition)) error {
	next := append([]trigger.Definition(nil), c.Triggers...)
	for i := range next {
		if next[i].ID != id {
			continue
		}
		fn(&next[i])
		next[i].ID = id
		if err := trigger.Validate(next); err != nil {
			return err
		}
		c.Triggers = next
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTriggerNotFound, id)
}

// RemoveTrigger deletes the trigger with id.
func (c *Config) RemoveTrigger(id string) error {
	for i, d := range c.Triggers {
		if d.ID == id {
			c.Triggers = append(c.Triggers[:i:i], c.Triggers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrTriggerNotFound, id)
}

// SetTriggerEnabled enables or disables the trigger with id.
func (c *Config) SetTriggerEnabled(id string, enabled bool) error {
	return c.UpdateTrigger(id, func(d *trigger.Definition) {
		d.Enabled = enabled
	})
}
