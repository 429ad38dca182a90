package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/aayushbajaj/trigcap/internal/permission"
)

func newPermissionCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Check or request Input Monitoring access",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print whether keyboard monitoring is allowed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := permission.NewManager(permission.DefaultChecker(), nil)
			fprintf(cmd, "%s\n", m.Recheck())
			return nil
		},
	})

	var wait time.Duration
	request := &cobra.Command{
		Use:   "request",
		Short: "Show the system permission prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := permission.NewManager(permission.DefaultChecker(), nil)
			state := m.Request()
			if state != permission.StateGranted && wait > 0 {
				fprintf(cmd, "Waiting up to %s for access to be granted...\n", wait)
				ctx, cancel := context.WithTimeout(cmd.Context(), wait)
				defer cancel()
				state = m.Poll(ctx, permission.DefaultPollInterval)
			}
			fprintf(cmd, "%s\n", state)
			if state != permission.StateGranted {
				fprintf(cmd, "Grant access under System Settings > Privacy & Security > Input Monitoring.\n")
			}
			return nil
		},
	}
	request.Flags().DurationVar(&wait, "wait", 0, "Keep polling this long for the grant")
	cmd.AddCommand(request)

	cmd.AddCommand(&cobra.Command{
		Use:   "open",
		Short: "Open the Input Monitoring settings pane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return permission.NewManager(permission.DefaultChecker(), nil).OpenSettings()
		},
	})
	return cmd
}
