// Package notify raises desktop notifications for engine events.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/engine"
	"github.com/aayushbajaj/trigcap/internal/permission"
	"github.com/aayushbajaj/trigcap/internal/timer"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

const appName = "trigcap"

// Options selects which events are announced.
type Options struct {
	OnCapture  bool
	OnDegraded bool
	OnConflict bool
}

// Notifier is an engine.Sink that shows notifications.
type Notifier struct {
	engine.NopSink
	opts Options
	log  *zap.Logger

	notify func(title, message, icon string) error
	alert  func(title, message, icon string) error
}

// New returns a notifier backed by beeep.
func New(opts Options, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		opts:   opts,
		log:    logger.Named("notify"),
		notify: func(title, message, icon string) error {
			return beeep.Notify(title, message, icon)
		},
		alert: func(title, message, icon string) error {
			return beeep.Alert(title, message, icon)
		},
	}
}

func (n *Notifier) OnCaptureCompleted(rec capture.Record) {
	if !n.opts.OnCapture {
		return
	}
	n.send(n.notify, captureTitle(rec), captureMessage(rec))
}

func (n *Notifier) OnTimerConflict(c timer.Conflict) {
	if !n.opts.OnConflict {
		return
	}
	msg := fmt.Sprintf("%q is running (%s). Stop it and start %q?",
		c.Current.Name, formatDuration(c.Current.Elapsed), c.Requested)
	n.send(n.notify, "Timer already running", msg)
}

func (n *Notifier) OnTimerAbandoned(req capture.TimerRequest) {
	if !n.opts.OnCapture {
		return
	}
	msg := "No name was confirmed before the capture timed out."
	if req.Name != "" {
		msg = fmt.Sprintf("%q was not confirmed before the capture timed out.", truncate(req.Name, 80))
	}
	n.send(n.notify, "Timer not started", msg)
}

func (n *Notifier) OnMonitorDegraded(err error) {
	if !n.opts.OnDegraded {
		return
	}
	n.send(n.alert, "Trigger detection stopped", fmt.Sprintf("Keyboard monitoring could not be restored: %v", err))
}

func (n *Notifier) OnPermissionChanged(s permission.State) {
	if s != permission.StateDenied || !n.opts.OnDegraded {
		return
	}
	n.send(n.alert, "Input Monitoring required",
		"Grant "+appName+" Input Monitoring in System Settings > Privacy & Security.")
}

func (n *Notifier) send(fn func(string, string, string) error, title, message string) {
	if err := fn(title, message, ""); err != nil {
		n.log.Warn("failed to send notification", zap.String("title", title), zap.Error(err))
	}
}

func captureTitle(rec capture.Record) string {
	switch rec.Kind {
	case trigger.KindTask:
		return "Task captured"
	case trigger.KindTimer:
		return "Timer stopped"
	}
	return "Note captured"
}

func captureMessage(rec capture.Record) string {
	content := truncate(rec.Content, 120)
	if rec.Kind != trigger.KindTimer {
		return content
	}
	msg := fmt.Sprintf("%s: %s", content, formatDuration(rec.Duration()))
	if len(rec.Tags) > 0 {
		msg += " #" + strings.Join(rec.Tags, " #")
	}
	return msg
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
