package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/app"
	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/engine"
	"github.com/aayushbajaj/trigcap/internal/permission"
	"github.com/aayushbajaj/trigcap/internal/timer"
)

func newRunCmd(g *globalFlags) *cobra.Command {
	var onConflict string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Listen for triggers until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			decide, err := conflictPolicy(onConflict, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			console := &consoleSink{out: cmd.OutOrStdout(), decide: decide}
			a, err := app.New(app.Options{
				ConfigPath: g.config,
				DBPath:     g.db,
				LogLevel:   g.logLevel,
				Verbose:    g.verbose,
				Quiet:      quiet,
				Sinks:      []engine.Sink{console},
			})
			if err != nil {
				return err
			}
			defer a.Close()
			console.setEngine(a.Engine, a.Log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.Permissions.Request() != permission.StateGranted {
				fprintf(cmd, "Input Monitoring is not granted; waiting. Run `trigcap permission open` to grant it.\n")
			}
			fprintf(cmd, "Listening for triggers. Press Ctrl+C to stop.\n")
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&onConflict, "on-conflict", "ask", "Timer conflict policy: ask|replace|keep")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Disable desktop notifications")
	return cmd
}

// conflictPolicy returns the decision function for a timer conflict.
func conflictPolicy(name string, in io.Reader, out io.Writer) (func(timer.Conflict) timer.Decision, error) {
	switch strings.ToLower(name) {
	case "replace":
		return func(timer.Conflict) timer.Decision { return timer.DecisionStopAndReplace }, nil
	case "keep":
		return func(timer.Conflict) timer.Decision { return timer.DecisionCancelNew }, nil
	case "ask":
		reader := bufio.NewReader(in)
		return func(c timer.Conflict) timer.Decision {
			_, _ = fmt.Fprintf(out, "%q has been running for %s. Stop it and start %q? [y/N] ",
				c.Current.Name, c.Current.Elapsed.Round(time.Second), c.Requested)
			line, _ := reader.ReadString('\n')
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y") {
				return timer.DecisionStopAndReplace
			}
			return timer.DecisionCancelNew
		}, nil
	}
	return nil, fmt.Errorf("unknown conflict policy %q", name)
}

// consoleSink prints engine events and answers timer conflicts.
type consoleSink struct {
	engine.NopSink
	out    io.Writer
	decide func(timer.Conflict) timer.Decision

	mu        sync.Mutex
	eng       *engine.Engine
	log       *zap.Logger
	lastTimer time.Time
}

func (s *consoleSink) setEngine(eng *engine.Engine, log *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eng = eng
	s.log = log
}

func (s *consoleSink) OnCaptureCompleted(rec capture.Record) {
	line := fmt.Sprintf("[%s] %s: %s", rec.Finished.Format("15:04:05"), rec.Kind, rec.Content)
	if rec.Kind.IsTimer() {
		line += fmt.Sprintf(" (%s)", rec.Duration().Round(time.Second))
	}
	_, _ = fmt.Fprintln(s.out, line)
}

func (s *consoleSink) OnTimerAbandoned(req capture.TimerRequest) {
	_, _ = fmt.Fprintf(s.out, "Timer not started: %q timed out before Return\n", req.Name)
}

func (s *consoleSink) OnTimerChanged(snap timer.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !snap.Running {
		s.lastTimer = time.Time{}
		return
	}
	if !snap.Started.Equal(s.lastTimer) {
		s.lastTimer = snap.Started
		_, _ = fmt.Fprintf(s.out, "Timer started: %s\n", snap.Name)
	}
}

func (s *consoleSink) OnMonitorDegraded(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Keyboard listener degraded: %v\n", err)
}

func (s *consoleSink) OnPermissionChanged(state permission.State) {
	_, _ = fmt.Fprintf(s.out, "Input Monitoring: %s\n", state)
}

// OnTimerConflict asks off the dispatcher goroutine so later notifications
// keep flowing while the user decides. An answer given after shutdown is
// dropped.
func (s *consoleSink) OnTimerConflict(c timer.Conflict) {
	s.mu.Lock()
	eng, log := s.eng, s.log
	s.mu.Unlock()
	if eng == nil {
		return
	}

	go func() {
		d := s.decide(c)
		if _, err := eng.ResolveConflict(context.Background(), d); err != nil {
			log.Warn("failed to resolve timer conflict", zap.Error(err))
		}
	}()
}
