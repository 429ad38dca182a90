//go:build darwin

package main

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa

#import <Cocoa/Cocoa.h>

static int showAlert(const char* messageText, const char* informativeText, const char** buttons, int buttonCount) {
    __block int result = 0;

    void (^showAlertBlock)(void) = ^{
        @autoreleasepool {
            NSAlert *alert = [[NSAlert alloc] init];
            [alert setMessageText:[NSString stringWithUTF8String:messageText]];
            [alert setInformativeText:[NSString stringWithUTF8String:informativeText]];
            [alert setAlertStyle:NSAlertStyleInformational];

            for (int i = 0; i < buttonCount; i++) {
                [alert addButtonWithTitle:[NSString stringWithUTF8String:buttons[i]]];
            }

            [NSApp activateIgnoringOtherApps:YES];
            NSModalResponse response = [alert runModal];
            result = (int)(response - NSAlertFirstButtonReturn);
        }
    };

    if ([NSThread isMainThread]) {
        showAlertBlock();
    } else {
        dispatch_sync(dispatch_get_main_queue(), showAlertBlock);
    }

    return result;
}

static int openFile(const char* path) {
    __block int success = 0;

    void (^openBlock)(void) = ^{
        @autoreleasepool {
            NSURL *fileURL = [NSURL fileURLWithPath:[NSString stringWithUTF8String:path]];
            if (fileURL != nil) {
                success = [[NSWorkspace sharedWorkspace] openURL:fileURL] ? 1 : 0;
            }
        }
    };

    if ([NSThread isMainThread]) {
        openBlock();
    } else {
        dispatch_sync(dispatch_get_main_queue(), openBlock);
    }

    return success;
}
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"fyne.io/systray"
	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/app"
	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/config"
	"github.com/aayushbajaj/trigcap/internal/engine"
	"github.com/aayushbajaj/trigcap/internal/permission"
	"github.com/aayushbajaj/trigcap/internal/report"
	"github.com/aayushbajaj/trigcap/internal/storage"
	"github.com/aayushbajaj/trigcap/internal/timer"
)

// Version is set at build time via ldflags: -X main.Version=$(VERSION)
var Version = "dev"

const tagSlots = 8

var (
	a      *app.App
	ctx    context.Context
	cancel context.CancelFunc

	lastMenuTitle  string
	menuTitleMutex sync.Mutex

	// slotTags maps each tag menu slot to the tag it currently shows.
	slotTags   [tagSlots]string
	slotTagsMu sync.Mutex
)

// Menu item references for dynamic updates
var (
	mStatus     *systray.MenuItem
	mPermission *systray.MenuItem
	mSession    *systray.MenuItem
	mCommit     *systray.MenuItem
	mCancel     *systray.MenuItem
	mTimer      *systray.MenuItem
	mStopTimer  *systray.MenuItem
	mTagTimer   *systray.MenuItem
	mTagItems   [tagSlots]*systray.MenuItem
	mToday      *systray.MenuItem
)

func init() {
	runtime.LockOSThread()
}

func main() {
	var err error
	a, err = app.New(app.Options{Sinks: []engine.Sink{menuSink{}}})
	if err != nil {
		fmt.Fprintf(os.Stderr, "trigcap-menubar: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Log.Info("starting menu bar app", zap.String("version", Version))

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		a.Log.Info("shutting down")
		systray.Quit()
	}()

	systray.Run(onReady, onExit)
}

func onReady() {
	systray.SetTitle("⌨️")
	systray.SetTooltip("Trigger Capture")

	buildMenu()

	if a.Permissions.Request() != permission.StateGranted {
		go showPermissionAlert()
	}

	go func() {
		if err := a.Run(ctx); err != nil {
			a.Log.Error("engine stopped", zap.Error(err))
			systray.Quit()
		}
	}()

	go func() {
		time.Sleep(500 * time.Millisecond)
		refresh()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()
}

func onExit() {
	a.Log.Info("systray exiting")
	cancel()
}

func buildMenu() {
	mStatus = systray.AddMenuItem("Starting...", "")
	mStatus.Disable()
	mPermission = systray.AddMenuItem("Grant Input Monitoring...", "Open System Settings")
	mPermission.Hide()

	systray.AddSeparator()

	mSession = systray.AddMenuItem("No capture in progress", "")
	mSession.Disable()
	mCommit = systray.AddMenuItem("Save Capture Now", "Commit the text typed so far")
	mCancel = systray.AddMenuItem("Discard Capture", "")
	mCommit.Hide()
	mCancel.Hide()

	systray.AddSeparator()

	mTimer = systray.AddMenuItem("No timer running", "")
	mTimer.Disable()
	mStopTimer = systray.AddMenuItem("Stop Timer", "")
	mTagTimer = systray.AddMenuItem("Tag Timer", "Add a recent tag to the running timer")
	for i := range mTagItems {
		mTagItems[i] = mTagTimer.AddSubMenuItem("", "")
		mTagItems[i].Hide()
	}
	mStopTimer.Hide()
	mTagTimer.Hide()

	systray.AddSeparator()

	mToday = systray.AddMenuItem("Today: --", "")
	mToday.Disable()
	mReport := systray.AddMenuItem("View Report", "Open the last 7 days in the browser")
	mConfig := systray.AddMenuItem("Edit Triggers...", "Open the config file")

	systray.AddSeparator()

	mAbout := systray.AddMenuItem("About", "")
	mQuit := systray.AddMenuItem("Quit", "Stop listening for triggers")

	go func() {
		for {
			select {
			case <-mPermission.ClickedCh:
				if err := a.Permissions.OpenSettings(); err != nil {
					a.Log.Warn("failed to open settings", zap.Error(err))
				}
			case <-mCommit.ClickedCh:
				runCommand("commit", func(ctx context.Context) error { return a.Engine.Commit(ctx) })
			case <-mCancel.ClickedCh:
				runCommand("cancel", func(ctx context.Context) error { return a.Engine.Cancel(ctx) })
			case <-mStopTimer.ClickedCh:
				runCommand("stop timer", func(ctx context.Context) error {
					_, err := a.Engine.StopTimer(ctx)
					return err
				})
			case <-mReport.ClickedCh:
				go openReport()
			case <-mConfig.ClickedCh:
				go openConfig()
			case <-mAbout.ClickedCh:
				go showAbout()
			case <-mQuit.ClickedCh:
				go quit()
			}
		}
	}()

	for i := range mTagItems {
		go func(i int) {
			for range mTagItems[i].ClickedCh {
				slotTagsMu.Lock()
				tag := slotTags[i]
				slotTagsMu.Unlock()
				if tag == "" {
					continue
				}
				runCommand("add tag", func(ctx context.Context) error { return a.Engine.AddTag(ctx, tag) })
			}
		}(i)
	}
}

func runCommand(name string, fn func(context.Context) error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := fn(cctx); err != nil {
		a.Log.Warn("menu command failed", zap.String("command", name), zap.Error(err))
	}
	refresh()
}

func refresh() {
	sctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	snap, err := a.Engine.Snapshot(sctx)
	if err != nil {
		return
	}

	setMenuTitle(menuTitle(snap))
	mStatus.SetTitle(statusLine(snap))
	if snap.Permission == permission.StateDenied {
		mPermission.Show()
	} else {
		mPermission.Hide()
	}

	mSession.SetTitle(sessionLine(snap.Session))
	if snap.Session.Status == capture.StatusCapturing {
		mCommit.Show()
		mCancel.Show()
	} else {
		mCommit.Hide()
		mCancel.Hide()
	}

	mTimer.SetTitle(timerLine(snap))
	if snap.Timer.Running {
		mStopTimer.Show()
		mTagTimer.Show()
		updateTagSlots(snap.Timer.Tags)
	} else {
		mStopTimer.Hide()
		mTagTimer.Hide()
	}

	today, _ := a.Store.GetTodayStats()
	mToday.SetTitle(todayLine(today))
}

// updateTagSlots fills the tag submenu with recently used tags that the
// running timer does not carry yet.
func updateTagSlots(applied []string) {
	known, err := a.Store.KnownTags()
	if err != nil {
		return
	}
	have := make(map[string]bool, len(applied))
	for _, t := range applied {
		have[t] = true
	}

	slotTagsMu.Lock()
	defer slotTagsMu.Unlock()
	i := 0
	for _, t := range known {
		if i == tagSlots {
			break
		}
		if have[t] {
			continue
		}
		slotTags[i] = t
		mTagItems[i].SetTitle("#" + t)
		mTagItems[i].Show()
		i++
	}
	for ; i < tagSlots; i++ {
		slotTags[i] = ""
		mTagItems[i].Hide()
	}
}

func setMenuTitle(title string) {
	menuTitleMutex.Lock()
	defer menuTitleMutex.Unlock()

	if title == lastMenuTitle {
		return
	}

	lastMenuTitle = title
	systray.SetTitle(title)
}

// menuSink answers timer conflicts with a native dialog.
type menuSink struct {
	engine.NopSink
}

func (menuSink) OnTimerConflict(c timer.Conflict) {
	go func() {
		response := showAlertDialog("Timer Already Running",
			fmt.Sprintf("%q has been running for %s.\n\nStop it and start %q?",
				c.Current.Name, formatClock(c.Current.Elapsed), c.Requested),
			[]string{"Keep Current", "Stop and Start New"})

		d := timer.DecisionCancelNew
		if response == 1 {
			d = timer.DecisionStopAndReplace
		}
		runCommand("resolve conflict", func(ctx context.Context) error {
			_, err := a.Engine.ResolveConflict(ctx, d)
			return err
		})
	}()
}

func (menuSink) OnCaptureCompleted(capture.Record) { go refresh() }
func (menuSink) OnPermissionChanged(permission.State) { go refresh() }

func openReport() {
	defer func() {
		if r := recover(); r != nil {
			a.Log.Error("panic in openReport", zap.Any("panic", r))
		}
	}()

	const days = 7
	stats, err := a.Store.GetHistoricalStats(days)
	if err != nil {
		a.Log.Warn("failed to load stats", zap.Error(err))
		return
	}
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day()-days+1, 0, 0, 0, 0, time.Local)
	recs, err := a.Store.ListCaptures(storage.Filter{Since: start})
	if err != nil {
		a.Log.Warn("failed to load captures", zap.Error(err))
		return
	}
	path, err := report.WriteAndOpen(report.Data{
		Title:     "Captures, last 7 days",
		Generated: now,
		Captures:  recs,
		Days:      stats,
	}, "")
	if err != nil {
		a.Log.Warn("failed to open report", zap.String("path", path), zap.Error(err))
	}
}

func openConfig() {
	path := a.Loader.Path()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(a.Loader.Config(), path); err != nil {
			a.Log.Warn("failed to write config", zap.Error(err))
			return
		}
	}
	if !openFileNative(path) {
		a.Log.Warn("failed to open config", zap.String("path", path))
	}
}

func showAbout() {
	showAlertDialog("Trigger Capture",
		fmt.Sprintf("Version %s\n\nType a trigger such as /// or ;;; anywhere to capture a note, task or timer.\n\nConfig: %s",
			Version, a.Loader.Path()),
		[]string{"OK"})
}

func quit() {
	response := showAlertDialog("Quit Trigger Capture",
		"This will stop listening for triggers. A running timer is saved.\n\nTo restart, run: open -a trigcap-menubar",
		[]string{"Cancel", "Quit"})

	if response == 1 {
		a.Log.Info("user requested quit")
		if snap, err := a.Engine.Snapshot(ctx); err == nil && snap.Timer.Running {
			runCommand("stop timer", func(ctx context.Context) error {
				_, err := a.Engine.StopTimer(ctx)
				return err
			})
		}
		systray.Quit()
	}
}

func showPermissionAlert() {
	response := showAlertDialog("Input Monitoring Required",
		"Trigger Capture needs Input Monitoring access to see what you type.\n\n"+
			"Open System Settings > Privacy & Security > Input Monitoring and enable trigcap-menubar. "+
			"Listening starts as soon as access is granted.",
		[]string{"Later", "Open System Settings"})
	if response == 1 {
		if err := a.Permissions.OpenSettings(); err != nil {
			a.Log.Warn("failed to open settings", zap.Error(err))
		}
	}
}

// Native alert dialog using Cocoa
func showAlertDialog(messageText, informativeText string, buttons []string) int {
	cMessage := C.CString(messageText)
	cInfo := C.CString(informativeText)
	defer C.free(unsafe.Pointer(cMessage))
	defer C.free(unsafe.Pointer(cInfo))

	cButtons := make([]*C.char, len(buttons))
	for i, b := range buttons {
		cButtons[i] = C.CString(b)
		defer C.free(unsafe.Pointer(cButtons[i]))
	}

	return int(C.showAlert(cMessage, cInfo, &cButtons[0], C.int(len(buttons))))
}

// Open file using native macOS API
func openFileNative(path string) bool {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	return C.openFile(cPath) == 1
}
