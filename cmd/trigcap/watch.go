package main

import (
	"context"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aayushbajaj/trigcap/internal/app"
	"github.com/aayushbajaj/trigcap/internal/engine"
	"github.com/aayushbajaj/trigcap/internal/tui"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	var theme string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the engine with a live dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			feed := tui.NewFeed()
			a, err := app.New(app.Options{
				ConfigPath: g.config,
				DBPath:     g.db,
				LogLevel:   g.logLevel,
				Sinks:      []engine.Sink{feed},
			})
			if err != nil {
				return err
			}
			defer a.Close()

			if theme != "" {
				tui.SetTheme(theme)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			a.Permissions.Request()
			runErr := make(chan error, 1)
			go func() { runErr <- a.Run(ctx) }()

			model := tui.New(a.Engine, a.Store).WithFeed(feed)
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			cancel()
			if rerr := <-runErr; rerr != nil {
				return rerr
			}
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "Dashboard theme: default|gruvbox|tokyonight|catppuccin")
	return cmd
}
