package tui

import (
	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/engine"
	"github.com/aayushbajaj/trigcap/internal/permission"
	"github.com/aayushbajaj/trigcap/internal/timer"
)

type changeMsg struct {
	// stats is set when history may have changed.
	stats bool
}

// Feed is an engine.Sink that wakes the dashboard. Notifications are
// coalesced; the dashboard re-reads the engine snapshot on each wake.
type Feed struct {
	ch chan changeMsg
}

func NewFeed() *Feed {
	return &Feed{ch: make(chan changeMsg, 1)}
}

var _ engine.Sink = (*Feed)(nil)

func (f *Feed) signal(stats bool) {
	select {
	case f.ch <- changeMsg{stats: stats}:
		return
	default:
	}
	if !stats {
		return
	}
	// Upgrade a pending plain wake so the stats refresh is not lost.
	select {
	case <-f.ch:
	default:
	}
	select {
	case f.ch <- changeMsg{stats: true}:
	default:
	}
}

func (f *Feed) OnCaptureCompleted(capture.Record) { f.signal(true) }
func (f *Feed) OnTimerConflict(timer.Conflict) { f.signal(false) }
func (f *Feed) OnTimerAbandoned(capture.TimerRequest) { f.signal(false) }
func (f *Feed) OnSessionChanged(capture.Snapshot) { f.signal(false) }
func (f *Feed) OnTimerChanged(timer.Snapshot) { f.signal(false) }
func (f *Feed) OnMonitorDegraded(error) { f.signal(false) }
func (f *Feed) OnPermissionChanged(permission.State) { f.signal(false) }
