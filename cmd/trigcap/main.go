// Command trigcap detects typed triggers and captures notes, tasks and
// timers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aayushbajaj/trigcap/internal/config"
	"github.com/aayushbajaj/trigcap/internal/storage"
)

// Version is set at build time via ldflags: -X main.Version=$(VERSION)
var Version = "dev"

type globalFlags struct {
	config   string
	db       string
	verbose  bool
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "trigcap",
		Short:         "Trigger-driven capture of notes, tasks and timers",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&g.config, "config", "", "Config file path (default ~/.trigcap/config.toml, or $TRIGCAP_CONFIG)")
	cmd.PersistentFlags().StringVar(&g.db, "db", "", "Capture database path (default ~/.trigcap/trigcap.db)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log to stderr as well as the log file")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug|info|warn|error")

	cmd.AddCommand(newRunCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newTriggersCmd(g))
	cmd.AddCommand(newCapturesCmd(g))
	cmd.AddCommand(newTimerCmd(g))
	cmd.AddCommand(newPermissionCmd(g))
	cmd.AddCommand(newReportCmd(g))
	return cmd
}

func (g *globalFlags) configPath() string {
	if g.config != "" {
		return g.config
	}
	return config.Path()
}

// openStore opens the capture database named by --db, the config file, or
// the default location, in that order.
func (g *globalFlags) openStore() (*storage.Store, error) {
	path := g.db
	if path == "" {
		cfg, err := config.ReadFile(g.configPath())
		if err != nil {
			return nil, err
		}
		path = cfg.Storage.Path
	}
	if path == "" {
		return storage.New()
	}
	return storage.NewWithPath(path)
}

func fprintf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
